package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"
)

type submission struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Source string  `json:"source"`
}

type submitResponse struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction"`
	Error       string `json:"error"`
}

type pricesResponse struct {
	Prices map[string]struct {
		Price     float64   `json:"price"`
		Method    string    `json:"method"`
		Source    string    `json:"source"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"prices"`
	Count int `json:"count"`
}

var client = &http.Client{Timeout: 30 * time.Second}

func main() {
	baseURL := flag.String("url", "http://localhost:3001", "oracle API base URL")
	rounds := flag.Int("rounds", 3, "number of submission rounds")
	flag.Parse()

	samples := []submission{
		{Symbol: "BTC", Price: 67000.50, Source: "sample"},
		{Symbol: "ETH", Price: 3100.25, Source: "sample"},
		{Symbol: "SOL", Price: 150.10, Source: "sample"},
		{Symbol: "XLM", Price: 0.1234, Source: "sample"},
	}

	for round := 0; round < *rounds; round++ {
		for _, s := range samples {
			s.Price *= 1 + 0.001*float64(round)
			submit(*baseURL, s)
		}
		time.Sleep(time.Second)
	}

	listPrices(*baseURL)
}

func submit(baseURL string, s submission) {
	body, _ := json.Marshal(s)

	resp, err := client.Post(baseURL+"/submit", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Failed to submit %s: %v", s.Symbol, err)
	}
	defer resp.Body.Close()

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("Failed to decode submit response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("%s %.4f rejected: status %d: %s\n", s.Symbol, s.Price, resp.StatusCode, out.Error)
		return
	}
	fmt.Printf("%s %.4f submitted: tx %s\n", s.Symbol, s.Price, out.Transaction)
}

func listPrices(baseURL string) {
	resp, err := client.Get(baseURL + "/prices")
	if err != nil {
		log.Fatalf("Failed to fetch prices: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Failed to fetch prices: status %d", resp.StatusCode)
	}

	var out pricesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("Failed to decode prices response: %v", err)
	}

	fmt.Printf("\n%d prices tracked\n", out.Count)
	for symbol, p := range out.Prices {
		fmt.Printf("%-5s %14.6f  %-18s %s\n", symbol, p.Price, p.Method, p.Timestamp.Format(time.RFC3339))
	}
}
