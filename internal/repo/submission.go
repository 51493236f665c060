package repo

import (
	"strings"

	"priceoracle/internal/models"
)

const (
	DefaultSubmissionLimit = 50
	MaxSubmissionLimit     = 500
)

type SubmissionFilter struct {
	Symbol string
	Status string
	Limit  int
}

func (r *Repository) CreateSubmission(s *models.Submission) error {
	return r.db.Create(s).Error
}

func (r *Repository) GetSubmissionByID(id int64) (*models.Submission, error) {
	var s models.Submission
	if err := r.db.First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSubmissions returns the newest submissions first.
func (r *Repository) ListSubmissions(filter SubmissionFilter) ([]models.Submission, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultSubmissionLimit
	}
	if limit > MaxSubmissionLimit {
		limit = MaxSubmissionLimit
	}

	query := r.db.Model(&models.Submission{})
	if filter.Symbol != "" {
		query = query.Where("symbol = ?", strings.ToUpper(filter.Symbol))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var out []models.Submission
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) CountSubmissions(status string) (int64, error) {
	var count int64
	query := r.db.Model(&models.Submission{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
