package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mowmarket/mowmarket-backend/internal/logger"
	"github.com/mowmarket/mowmarket-backend/internal/models"
)

var ErrNotNotificationOwner = errors.New("notification belongs to another user")

// Dispatcher delivers the notices a business operation produced after its
// core write has committed. Delivery is fire-and-forget: failures are logged
// and must never abort the calling workflow.
type Dispatcher interface {
	Dispatch(ctx context.Context, notices []models.Notice)
}

// NotificationRepository is the storage surface for in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// AdminDirectory resolves the admin fan-out list.
type AdminDirectory interface {
	ListAdminIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Pusher pushes a stored notification over a live channel (websocket hub).
type Pusher interface {
	Push(userID uuid.UUID, n *models.Notification)
}

// EmailSender is the best-effort email side channel.
type EmailSender interface {
	Send(ctx context.Context, userID uuid.UUID, subject, body string) error
}

// NotificationService persists and delivers notices, and serves the in-app
// notification API.
type NotificationService struct {
	repo   NotificationRepository
	admins AdminDirectory
	pusher Pusher
	mailer EmailSender
}

// NewNotificationService creates the dispatcher. pusher and mailer may be nil.
func NewNotificationService(repo NotificationRepository, admins AdminDirectory, pusher Pusher, mailer EmailSender) *NotificationService {
	return &NotificationService{repo: repo, admins: admins, pusher: pusher, mailer: mailer}
}

// Dispatch delivers every notice, expanding admin-wide notices to all admins.
func (s *NotificationService) Dispatch(ctx context.Context, notices []models.Notice) {
	for _, notice := range notices {
		if notice.AdminWide {
			adminIDs, err := s.admins.ListAdminIDs(ctx)
			if err != nil {
				logger.Log.WithError(err).Error("notifications: list admins failed, dropping admin notice")
				continue
			}
			for _, adminID := range adminIDs {
				targeted := notice
				targeted.UserID = adminID
				s.deliver(ctx, targeted)
			}
			continue
		}
		s.deliver(ctx, notice)
	}
}

// deliver persists one notice and mirrors it to the push and email channels.
func (s *NotificationService) deliver(ctx context.Context, notice models.Notice) {
	n := &models.Notification{
		UserID:    notice.UserID,
		Title:     notice.Title,
		Message:   notice.Message,
		Severity:  notice.Severity,
		BookingID: notice.BookingID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		logger.Log.WithError(err).WithField("user_id", notice.UserID).Error("notifications: store failed")
		return
	}

	if s.pusher != nil {
		s.pusher.Push(notice.UserID, n)
	}

	if s.mailer != nil && notice.Email {
		if err := s.mailer.Send(ctx, notice.UserID, notice.Title, notice.Message); err != nil {
			logger.Log.WithError(err).WithField("user_id", notice.UserID).Warn("notifications: email send failed")
		}
	}
}

// ListNotifications returns a user's notifications.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, userID, limit, offset, unreadOnly)
}

// MarkAsRead marks one notification read after an ownership check.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return ErrNotNotificationOwner
	}
	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks every notification of a user read.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// CountUnread returns the unread badge count.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
