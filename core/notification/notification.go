// Package notification keeps the per-user notification inbox and mails a copy of each notification.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/user"
)

// Types
const (
	TypeTaskAssigned        = "task_assigned"
	TypeTaskUpdated         = "task_updated"
	TypeSubmissionReceived  = "submission_received"
	TypeSubmissionScored    = "submission_scored"
	TypeDocumentPending     = "document_pending"
	TypeDocumentReviewed    = "document_reviewed"
	TypeFileRequestPending  = "file_request_pending"
	TypeFileRequestReviewed = "file_request_reviewed"
)

const defaultListLimit = 100

var ErrNotFound = core.E(core.KindNotFound, "", errors.New("notification not found"))

type Notification struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Type      string    `json:"type" bson:"type"`
	Title     string    `json:"title" bson:"title"`
	Message   string    `json:"message" bson:"message"`
	RefID     string    `json:"ref_id,omitempty" bson:"ref_id,omitempty"`
	Link      string    `json:"link,omitempty" bson:"link,omitempty"`
	Read      bool      `json:"read" bson:"read"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type (
	Repository interface {
		InsertNotifications(ctx context.Context, ns ...Notification) error
		QueryNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error)
		MarkRead(ctx context.Context, userID, id string) error
		MarkAllRead(ctx context.Context, userID string) (int, error)
		CountUnread(ctx context.Context, userID string) (int, error)
	}

	UserGetter interface {
		GetManyByID(ctx context.Context, ids ...string) ([]user.User, error)
	}

	Service struct {
		repo    Repository
		users   UserGetter
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, users UserGetter, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, users: users, mailSvc: mailSvc, logger: logger}
}

// Notify stores the notifications and mails them to their recipients.
// Failures are logged and returned; callers treat them as non fatal.
func (svc *Service) Notify(ctx context.Context, ns ...Notification) error {
	if len(ns) == 0 {
		return nil
	}

	now := core.NowFunc()
	recipients := make([]string, 0, len(ns))
	for i := range ns {
		if ns[i].ID == "" {
			ns[i].ID = uuid.New().String()
		}
		if ns[i].CreatedAt.IsZero() {
			ns[i].CreatedAt = now
		}
		recipients = append(recipients, ns[i].UserID)
	}

	if err := svc.repo.InsertNotifications(ctx, ns...); err != nil {
		err = pkgerrors.Wrap(err, "inserting notifications")
		svc.logger.Error(err.Error(), err)
		return err
	}

	if svc.mailSvc == nil {
		return nil
	}
	users, err := svc.users.GetManyByID(ctx, recipients...)
	if err != nil {
		err = pkgerrors.Wrap(err, "loading recipients")
		svc.logger.Error(err.Error(), err)
		return err
	}
	byID := make(map[string]user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	messages := make([]*core.EmailMessage, 0, len(ns))
	for _, n := range ns {
		usr, ok := byID[n.UserID]
		if !ok || !usr.IsActive || usr.Email == "" {
			continue
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{usr.MailAddress()},
			Subject:      n.Title,
			TemplateName: "notification",
			TemplateData: map[string]interface{}{
				"Name":    usr.Name(),
				"Title":   n.Title,
				"Message": n.Message,
				"Path":    n.Link,
			},
		})
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
	return nil
}

func (svc *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	return svc.repo.QueryNotifications(ctx, userID, unreadOnly, limit)
}

func (svc *Service) MarkRead(ctx context.Context, userID, id string) error {
	return svc.repo.MarkRead(ctx, userID, id)
}

func (svc *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return svc.repo.MarkAllRead(ctx, userID)
}

func (svc *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountUnread(ctx, userID)
}

// Link helpers used by the senders.

func TaskLink(taskID string) string         { return fmt.Sprintf("/tasks/%s", taskID) }
func DocumentLink(documentID string) string { return fmt.Sprintf("/documents/%s", documentID) }
