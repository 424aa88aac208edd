package service

import (
	"context"
	"log/slog"

	"github.com/swiftfix/backoffice/internal/domain"
	"github.com/swiftfix/backoffice/internal/repository"
)

// ActivityEntry is one security-relevant event headed for the audit
// trail. UserID is nil when no identity was established.
type ActivityEntry struct {
	UserID      *uint
	Action      string
	Description string
	IP          string
	UserAgent   string
}

// ActivityRecorder appends to the audit trail. Recording is
// best-effort: a failed append must never fail the operation being
// audited, and entries are written for failures as well as successes so
// the trail survives when the primary operation does not.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry)
}

type activityRecorder struct {
	repo repository.ActivityRepository
}

func NewActivityRecorder(repo repository.ActivityRepository) ActivityRecorder {
	return &activityRecorder{repo: repo}
}

func (r *activityRecorder) Record(ctx context.Context, entry ActivityEntry) {
	row := &domain.ActivityLog{
		UserID:      entry.UserID,
		Action:      entry.Action,
		Description: entry.Description,
		IP:          entry.IP,
		UserAgent:   entry.UserAgent,
	}
	if err := r.repo.Append(row); err != nil {
		slog.ErrorContext(ctx, "activity append failed", "action", entry.Action, "error", err)
		return
	}
	slog.InfoContext(ctx, "activity recorded", "action", entry.Action, "user_id", entry.UserID)
}
