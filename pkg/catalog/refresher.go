package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher re-fetches registered catalogs on a cron schedule so long-lived
// processes do not serve hour-old lists forever.
type Refresher struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
}

// NewRefresher creates an idle refresher.
func NewRefresher(logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		cron:    cron.New(),
		logger:  logger.With("component", "catalog-refresher"),
		timeout: 30 * time.Second,
	}
}

// Add schedules a catalog for refresh on the given cron spec
// (e.g. "@every 1h").
func (r *Refresher) Add(spec string, svc *Service) error {
	_, err := r.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if _, err := svc.Refresh(ctx); err != nil {
			r.logger.Warn("scheduled refresh failed",
				"provider", svc.Provider(),
				"error", err,
			)
			return
		}
		r.logger.Debug("scheduled refresh complete", "provider", svc.Provider())
	})
	return err
}

// Start begins running scheduled refreshes.
func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop halts scheduling and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}
