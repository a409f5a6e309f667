// Package scheduler refreshes access tokens ahead of expiry so sessions do
// not pay the refresh latency in the middle of a sync.
package scheduler

import (
	"context"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"object-sync-service/internal/auth"
	"object-sync-service/internal/config"
	"object-sync-service/internal/logger"
	"object-sync-service/internal/session"
	"object-sync-service/internal/store"
	"object-sync-service/internal/user"
)

type Scheduler struct {
	cfg        config.SchedulerConfig
	registry   *session.Registry
	authClient *auth.Client
	users      store.UserStore
	cron       *cron.Cron
	entryID    cron.EntryID
	running    atomic.Bool
}

func New(cfg config.SchedulerConfig, registry *session.Registry, authClient *auth.Client, users store.UserStore) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		registry:   registry,
		authClient: authClient,
		users:      users,
		cron:       cron.New(),
	}
}

func (s *Scheduler) Start() {
	if !s.cfg.Enabled {
		logger.Log.Info("Token refresh scheduler is disabled")
		return
	}

	logger.Log.Info("Starting token refresh scheduler", zap.String("interval", s.cfg.Interval))

	id, err := s.cron.AddFunc(s.cfg.Interval, func() {
		s.refreshAll()
	})
	if err != nil {
		logger.Log.Error("Failed to schedule token refresh", zap.Error(err))
		return
	}

	s.entryID = id
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	logger.Log.Info("Stopped token refresh scheduler")
}

// refreshAll refreshes the token pair of every user backing a live session,
// then sweeps the persisted users with no session so their stored tokens stay
// usable across restarts. A user appearing in both sets is refreshed once;
// refreshes for one user are serialized by the user itself.
func (s *Scheduler) refreshAll() {
	if !s.running.CompareAndSwap(false, true) {
		logger.Log.Info("Token refresh sweep already running, skipping")
		return
	}
	defer s.running.Store(false)

	ctx := context.Background()
	seen := make(map[string]bool)
	for _, sess := range s.registry.All() {
		u := sess.User()
		if u == nil || !u.Authenticated() || seen[u.Identity()] {
			continue
		}
		seen[u.Identity()] = true

		if err := s.authClient.Refresh(ctx, u); err != nil {
			logger.Log.Warn("Scheduled token refresh failed",
				zap.String("identity", u.Identity()),
				zap.String("path", sess.Path()),
				zap.Error(err),
			)
			continue
		}
		s.saveUser(ctx, u)
	}

	if s.users == nil {
		return
	}
	persisted, err := s.users.All(ctx)
	if err != nil {
		logger.Log.Warn("Cannot sweep persisted users", zap.Error(err))
		return
	}
	for _, u := range persisted {
		if !u.Authenticated() || seen[u.Identity()] {
			continue
		}
		seen[u.Identity()] = true

		if err := s.authClient.Refresh(ctx, u); err != nil {
			logger.Log.Warn("Scheduled token refresh failed",
				zap.String("identity", u.Identity()),
				zap.Error(err),
			)
			continue
		}
		s.saveUser(ctx, u)
	}
}

// saveUser writes the refreshed token pair back to the store.
func (s *Scheduler) saveUser(ctx context.Context, u *user.User) {
	if s.users == nil {
		return
	}
	if err := s.users.Save(ctx, u.Identity(), u); err != nil {
		logger.Log.Warn("Failed to persist refreshed tokens",
			zap.String("identity", u.Identity()), zap.Error(err))
	}
}
