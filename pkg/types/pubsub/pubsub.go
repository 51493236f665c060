package pubsub

type Publisher interface {
	Publish(data []byte) error
}

type Subscriber interface {
	Subscribe() (<-chan []byte, func())
}

type PubSub interface {
	Publisher
	Subscriber
}
