package stat

import (
	"context"

	"anoa.com/homeworktracker/internal/model"
	assignmentRepo "anoa.com/homeworktracker/internal/modules/assignment/repository"
	"anoa.com/homeworktracker/internal/modules/stat/dto"
)

// CountByStatus counts records per status. Statuses with no records are
// absent from the result.
func CountByStatus(records []model.Assignment) map[model.Status]int {
	counts := make(map[model.Status]int)
	for _, r := range records {
		counts[r.Status]++
	}
	return counts
}

// IncompleteBySubject counts records that are not Completed, per subject.
// The result is empty, never nil, when nothing is outstanding.
func IncompleteBySubject(records []model.Assignment) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		if r.Status == model.StatusCompleted {
			continue
		}
		counts[r.Subject]++
	}
	return counts
}

type StatService interface {
	GetSummary(ctx context.Context) (*dto.SummaryResponse, error)
}

type statService struct {
	assignmentRepo assignmentRepo.Repository
}

func NewStatService(assignmentRepo assignmentRepo.Repository) StatService {
	return &statService{
		assignmentRepo: assignmentRepo,
	}
}

// GetSummary recomputes both projections from one fresh snapshot.
func (s *statService) GetSummary(ctx context.Context) (*dto.SummaryResponse, error) {
	records, err := s.assignmentRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	return &dto.SummaryResponse{
		Total:               len(records),
		ByStatus:            CountByStatus(records),
		IncompleteBySubject: IncompleteBySubject(records),
	}, nil
}
