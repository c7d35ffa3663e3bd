package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mowmarket/mowmarket-backend/internal/logger"
	"github.com/mowmarket/mowmarket-backend/internal/metrics"
	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/pkg/boundedlog"
)

// standingLogCapacity bounds the warning and review histories per contractor.
const standingLogCapacity = 20

// QualityStore is the contractor surface the quality loop reads and writes.
type QualityStore interface {
	ListActiveApproved(ctx context.Context) ([]models.Contractor, error)
	QualityMetrics(ctx context.Context, contractorID uuid.UUID, now time.Time) (*models.QualityMetrics, error)
	UpdateStanding(ctx context.Context, c *models.Contractor) error
}

// QualityService is the periodic quality control loop. It grades every
// active approved contractor against rolling cancellation, rating and dispute
// thresholds and applies the worst matching standing.
type QualityService struct {
	contractors QualityStore
	dispatcher  Dispatcher
}

func NewQualityService(contractors QualityStore, dispatcher Dispatcher) *QualityService {
	return &QualityService{contractors: contractors, dispatcher: dispatcher}
}

// standingChange is one contractor's outcome within a run, for the admin
// digest.
type standingChange struct {
	ContractorID uuid.UUID
	Name         string
	From, To     string
	Reason       string
}

// Run executes one pass of the loop. A single contractor failing is logged
// and skipped, never fatal to the batch.
func (s *QualityService) Run(ctx context.Context, now time.Time) error {
	contractors, err := s.contractors.ListActiveApproved(ctx)
	if err != nil {
		return err
	}

	var changes []standingChange
	var failed int
	for i := range contractors {
		contractor := &contractors[i]
		change, err := s.evaluateOne(ctx, contractor, now)
		if err != nil {
			failed++
			logger.Log.WithError(err).WithField("contractor_id", contractor.ID).Error("quality loop: contractor evaluation failed")
			continue
		}
		if change != nil {
			changes = append(changes, *change)
		}
	}

	s.notifyChanges(ctx, changes)

	logger.Log.WithFields(logrus.Fields{
		"evaluated": len(contractors),
		"changed":   len(changes),
		"failed":    failed,
	}).Info("quality loop finished")

	if failed > 0 {
		return fmt.Errorf("quality loop: %d of %d contractors failed", failed, len(contractors))
	}
	return nil
}

func (s *QualityService) evaluateOne(ctx context.Context, contractor *models.Contractor, now time.Time) (*standingChange, error) {
	figures, err := s.contractors.QualityMetrics(ctx, contractor.ID, now)
	if err != nil {
		return nil, err
	}

	standing, reason := gradeStanding(*figures)
	if standing == contractor.SuspensionStatus && standing == models.StandingActive {
		return nil, nil
	}

	from := contractor.SuspensionStatus
	entry := models.StandingEntry{At: now, Reason: reason}

	switch standing {
	case models.StandingSuspended:
		contractor.SuspensionStatus = models.StandingSuspended
		contractor.SuspensionReason = &reason
		contractor.SuspendedAt = &now
		contractor.Active = false
		contractor.ReviewLog = boundedlog.Append(contractor.ReviewLog, entry, standingLogCapacity)
	case models.StandingReviewRequired:
		contractor.SuspensionStatus = models.StandingReviewRequired
		contractor.ReviewLog = boundedlog.Append(contractor.ReviewLog, entry, standingLogCapacity)
	case models.StandingWarning:
		contractor.SuspensionStatus = models.StandingWarning
		contractor.WarningLog = boundedlog.Append(contractor.WarningLog, entry, standingLogCapacity)
	default:
		contractor.SuspensionStatus = models.StandingActive
		contractor.SuspensionReason = nil
		contractor.SuspendedAt = nil
	}

	if err := s.contractors.UpdateStanding(ctx, contractor); err != nil {
		return nil, err
	}
	if from == contractor.SuspensionStatus {
		return nil, nil
	}
	metrics.IncStandingTransition(contractor.SuspensionStatus)
	return &standingChange{
		ContractorID: contractor.ID,
		Name:         contractor.Name,
		From:         from,
		To:           contractor.SuspensionStatus,
		Reason:       reason,
	}, nil
}

// gradeStanding evaluates thresholds most severe first; only the worst
// matching tier applies.
func gradeStanding(m models.QualityMetrics) (string, string) {
	rate := m.DisputeRate()
	rating := m.LifetimeRating

	var reasons []string
	switch {
	case rating != nil && *rating < 3.0:
		reasons = append(reasons, fmt.Sprintf("average rating %.2f below 3.0", *rating))
	case rate > 20:
		reasons = append(reasons, fmt.Sprintf("dispute rate %.1f%% above 20%%", rate))
	case m.Cancellations30d >= 5:
		reasons = append(reasons, fmt.Sprintf("%d cancellations in 30 days", m.Cancellations30d))
	}
	if len(reasons) > 0 {
		return models.StandingSuspended, strings.Join(reasons, "; ")
	}

	switch {
	case rating != nil && *rating < 3.5:
		reasons = append(reasons, fmt.Sprintf("average rating %.2f below 3.5", *rating))
	case rate > 10:
		reasons = append(reasons, fmt.Sprintf("dispute rate %.1f%% above 10%%", rate))
	case m.Cancellations14d >= 3:
		reasons = append(reasons, fmt.Sprintf("%d cancellations in 14 days", m.Cancellations14d))
	case m.OneStarRatings7d >= 1:
		reasons = append(reasons, fmt.Sprintf("%d one-star ratings in 7 days", m.OneStarRatings7d))
	}
	if len(reasons) > 0 {
		return models.StandingReviewRequired, strings.Join(reasons, "; ")
	}

	switch {
	case rating != nil && *rating < 4.0:
		reasons = append(reasons, fmt.Sprintf("average rating %.2f below 4.0", *rating))
	case rate > 5:
		reasons = append(reasons, fmt.Sprintf("dispute rate %.1f%% above 5%%", rate))
	case m.Cancellations7d >= 2:
		reasons = append(reasons, fmt.Sprintf("%d cancellations in 7 days", m.Cancellations7d))
	}
	if len(reasons) > 0 {
		return models.StandingWarning, strings.Join(reasons, "; ")
	}

	return models.StandingActive, ""
}

func (s *QualityService) notifyChanges(ctx context.Context, changes []standingChange) {
	if len(changes) == 0 {
		return
	}

	notices := make([]models.Notice, 0, len(changes)+1)
	for _, c := range changes {
		notices = append(notices, models.Notice{
			UserID:   c.ContractorID,
			Title:    "Your account standing changed",
			Message:  standingMessage(c),
			Severity: standingSeverity(c.To),
			Email:    c.To == models.StandingSuspended,
		})
	}

	var digest strings.Builder
	fmt.Fprintf(&digest, "Quality run changed %d contractor standings:\n", len(changes))
	for _, c := range changes {
		fmt.Fprintf(&digest, "- %s (%s): %s -> %s (%s)\n", c.Name, c.ContractorID, c.From, c.To, c.Reason)
	}
	notices = append(notices, models.Notice{
		AdminWide: true,
		Title:     "Contractor quality digest",
		Message:   digest.String(),
		Severity:  models.SeverityWarning,
	})

	s.dispatcher.Dispatch(ctx, notices)
}

func standingMessage(c standingChange) string {
	switch c.To {
	case models.StandingSuspended:
		return fmt.Sprintf("Your account has been suspended: %s. Contact support to appeal.", c.Reason)
	case models.StandingReviewRequired:
		return fmt.Sprintf("Your account is under review: %s. You can keep working while we look into it.", c.Reason)
	case models.StandingWarning:
		return fmt.Sprintf("Quality warning: %s. Further issues may lead to a review or suspension.", c.Reason)
	default:
		return "Your account is back in good standing."
	}
}

func standingSeverity(standing string) string {
	switch standing {
	case models.StandingSuspended:
		return models.SeverityCritical
	case models.StandingReviewRequired, models.StandingWarning:
		return models.SeverityWarning
	default:
		return models.SeverityInfo
	}
}
