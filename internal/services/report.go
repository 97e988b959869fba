package services

import (
	"context"
	"strings"

	"github.com/fanvault/apiserver/internal/events"
	"github.com/fanvault/apiserver/types"
)

// ReportRepository defines persistence operations for content reports.
type ReportRepository interface {
	Create(ctx context.Context, report types.Report) (types.Report, error)
	List(ctx context.Context, status string) ([]types.Report, error)
	Review(ctx context.Context, id int, status, action string, reviewerID int) (types.Report, error)
}

// ReportService encapsulates report use-cases.
type ReportService struct {
	repo ReportRepository
	bus  *events.Bus
}

func NewReportService(repo ReportRepository, bus *events.Bus) *ReportService {
	return &ReportService{repo: repo, bus: bus}
}

// Create files a report for the moderation queue.
func (s *ReportService) Create(ctx context.Context, reporter types.User, targetType string, targetID int, reason string) (types.Report, error) {
	report, err := s.repo.Create(ctx, types.Report{
		ReporterID: reporter.ID,
		TargetType: targetType,
		TargetID:   targetID,
		Reason:     strings.TrimSpace(reason),
		Status:     types.ReportPending,
	})
	if err != nil {
		return types.Report{}, err
	}
	report.ReporterUsername = reporter.Username

	s.bus.Emit(ctx, events.ChannelReportCreated, events.Event{
		Type:       "report.created",
		ActorID:    reporter.ID,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     report.Reason,
	})
	return report, nil
}

func (s *ReportService) List(ctx context.Context, status string) ([]types.Report, error) {
	return s.repo.List(ctx, status)
}

// Review records a moderator's verdict on a report. Concurrent reviews are
// last-writer-wins.
func (s *ReportService) Review(ctx context.Context, reviewer types.User, id int, status, action string) (types.Report, error) {
	report, err := s.repo.Review(ctx, id, status, strings.TrimSpace(action), reviewer.ID)
	if err != nil {
		return types.Report{}, err
	}
	s.bus.Emit(ctx, events.ChannelModerationActions, events.Event{
		Type:       "report.reviewed",
		ActorID:    reviewer.ID,
		TargetType: report.TargetType,
		TargetID:   report.TargetID,
		Detail:     status,
	})
	return report, nil
}
