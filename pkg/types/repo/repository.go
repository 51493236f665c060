package repo

import (
	"priceoracle/internal/models"
	"priceoracle/internal/repo"
)

// SubmissionRepository is the audit log of ledger submissions.
type SubmissionRepository interface {
	CreateSubmission(s *models.Submission) error
	ListSubmissions(filter repo.SubmissionFilter) ([]models.Submission, error)
}
