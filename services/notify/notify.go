// Package notify delivers in-app notifications. Delivery is
// fire-and-forget: sinks log failures but never surface them to the
// operation that triggered the notification.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quanticpro/backend/internal/logging"
	"github.com/quanticpro/backend/internal/metrics"
	"github.com/quanticpro/backend/supabase/client"
)

// Notification kinds.
const (
	KindXP           = "xp"
	KindLevelUp      = "level_up"
	KindBillReminder = "bill_reminder"
	KindBilling      = "billing"
)

// Notifier delivers a notification to a user.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message, kind string)
}

// Notification is a row in the notifications table.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// SupabaseNotifier persists notifications so clients can list them.
type SupabaseNotifier struct {
	client  *client.Client
	logger  *logging.Logger
	metrics *metrics.Metrics
	table   string
}

// NewSupabaseNotifier returns a notifier writing to the notifications
// table. metrics may be nil.
func NewSupabaseNotifier(c *client.Client, logger *logging.Logger, m *metrics.Metrics) *SupabaseNotifier {
	return &SupabaseNotifier{
		client:  c,
		logger:  logger,
		metrics: m,
		table:   "notifications",
	}
}

func (n *SupabaseNotifier) Notify(ctx context.Context, userID, title, message, kind string) {
	row := Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}

	resp, err := n.client.From(n.table).ExecuteInsert(ctx, row)
	if err == nil {
		err = resp.Error()
	}
	if err != nil {
		n.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"user_id": userID,
			"kind":    kind,
		}).Warn("notification delivery failed")
		return
	}

	if n.metrics != nil {
		n.metrics.RecordNotification(kind)
	}
}

// LogNotifier writes notifications to the log. Used in development and as
// a fan-out companion to the table sink.
type LogNotifier struct {
	logger *logging.Logger
}

// NewLogNotifier returns a log-backed notifier.
func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, userID, title, message, kind string) {
	n.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id": userID,
		"title":   title,
		"kind":    kind,
	}).Info(message)
}

// Multi fans a notification out to several sinks.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, userID, title, message, kind string) {
	for _, n := range m {
		n.Notify(ctx, userID, title, message, kind)
	}
}
