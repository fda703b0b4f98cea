package services

import (
	"context"

	"github.com/qenty/academy/types"
)

// ReportService computes admin views over purchases.
type ReportService struct {
	ownerships OwnershipRepository
}

func NewReportService(ownerships OwnershipRepository) *ReportService {
	return &ReportService{ownerships: ownerships}
}

// Revenue lists non-admin learners with their courses. Total is the sum of
// prices over all of their ownership rows, recomputed on every call.
func (s *ReportService) Revenue(ctx context.Context) (types.RevenueReport, error) {
	learners, err := s.ownerships.ListLearners(ctx)
	if err != nil {
		return types.RevenueReport{}, err
	}

	var total int64
	for _, learner := range learners {
		for _, course := range learner.Courses {
			total += course.Price
		}
	}
	return types.RevenueReport{Learners: learners, Total: total}, nil
}
