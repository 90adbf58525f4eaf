package job

import (
	"context"
	"log/slog"

	"github.com/maseda27/mealflow/internal/service"
)

// SessionRefreshJob periodically re-validates the cached Instagram session so
// a stale session is detected between posts instead of during one.
type SessionRefreshJob struct {
	ig service.InstagramService
}

func NewSessionRefreshJob(ig service.InstagramService) *SessionRefreshJob {
	return &SessionRefreshJob{ig: ig}
}

func (j *SessionRefreshJob) RefreshSession() {
	ctx := context.Background()

	if err := j.ig.ProbeSession(ctx); err != nil {
		slog.Info("instagram session probe failed, re-authenticating: " + err.Error())
		if !j.ig.Login(ctx) {
			slog.Info("instagram re-authentication failed: " + j.ig.LastError())
		}
	}
}
