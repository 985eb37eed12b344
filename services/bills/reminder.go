package bills

import (
	"context"
	"fmt"
	"time"

	"github.com/quanticpro/backend/services/notify"
	"github.com/quanticpro/backend/services/users"
)

// RunReminderWorker sweeps for due bills at the given interval until ctx
// is cancelled.
func (s *Service) RunReminderWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepReminders(ctx); err != nil {
				s.logger.WithError(err).Error("bill reminder sweep failed")
			}
		}
	}
}

// SweepReminders walks every user's bills and emits due-date reminders.
// Each reminder fires once: the three-day reminder when the due date is
// three days or closer, the one-day reminder when it is one day or
// closer. Paid and overdue bills are skipped.
func (s *Service) SweepReminders(ctx context.Context) error {
	list, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	today := s.now().UTC().Truncate(24 * time.Hour)

	for _, u := range list {
		changed := false
		for i := range u.Bills {
			if s.remind(ctx, u.ID, &u.Bills[i], today) {
				changed = true
			}
		}
		if !changed {
			continue
		}
		if err := s.store.UpdateFields(ctx, u.ID, map[string]any{"bills": u.Bills}); err != nil {
			s.logger.WithError(err).WithField("user_id", u.ID).Error("persist reminder flags")
		}
	}
	return nil
}

func (s *Service) remind(ctx context.Context, userID string, bill *users.Bill, today time.Time) bool {
	if bill.Paid {
		return false
	}

	due, err := time.Parse(dateLayout, bill.DueDate)
	if err != nil {
		return false
	}

	days := int(due.Sub(today).Hours() / 24)
	if days < 0 {
		return false
	}

	switch {
	case days <= 1 && !bill.Notified.OneDay:
		s.notifier.Notify(ctx, userID, "Scadenza imminente",
			fmt.Sprintf("%s scade domani (%.2f EUR)", bill.Title, bill.Amount),
			notify.KindBillReminder)
		bill.Notified.OneDay = true
		// The closer reminder supersedes the earlier one.
		bill.Notified.ThreeDays = true
		return true
	case days <= 3 && !bill.Notified.ThreeDays:
		s.notifier.Notify(ctx, userID, "Scadenza in arrivo",
			fmt.Sprintf("%s scade tra %d giorni (%.2f EUR)", bill.Title, days, bill.Amount),
			notify.KindBillReminder)
		bill.Notified.ThreeDays = true
		return true
	}
	return false
}
