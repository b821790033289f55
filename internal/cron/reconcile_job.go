package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/dontforget-backend/internal/items"
	"github.com/angelmondragon/dontforget-backend/internal/regions"
	"github.com/angelmondragon/dontforget-backend/internal/scheduler"
	"github.com/angelmondragon/dontforget-backend/pkg/logger"
	"go.uber.org/multierr"
)

// ReconcileJobParams configure the notification reconcile sweep.
type ReconcileJobParams struct {
	Logger    *logger.Logger
	Store     *items.Store
	Scheduler *scheduler.Service
	Monitor   *regions.Monitor
}

// NewReconcileJob builds the sweep that re-derives every item's notification
// intents and the monitored region set. It repairs drift from crashes, from
// port failures during mutations, and from offsets that have simply passed.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("item store required")
	}
	if params.Scheduler == nil {
		return nil, fmt.Errorf("scheduler required")
	}
	if params.Monitor == nil {
		return nil, fmt.Errorf("region monitor required")
	}
	return &reconcileJob{
		logg:      params.Logger,
		store:     params.Store,
		scheduler: params.Scheduler,
		monitor:   params.Monitor,
	}, nil
}

type reconcileJob struct {
	logg      *logger.Logger
	store     *items.Store
	scheduler *scheduler.Service
	monitor   *regions.Monitor
}

func (j *reconcileJob) Name() string { return "notification-reconcile" }

func (j *reconcileJob) Run(ctx context.Context) error {
	all := j.store.All()

	var errs []error
	for _, item := range all {
		if err := j.scheduler.Reconcile(ctx, item); err != nil {
			errs = append(errs, err)
		}
	}
	if err := j.monitor.Reconcile(ctx, all); err != nil {
		errs = append(errs, err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": len(all), "degraded": len(errs)})
	j.logg.Info(logCtx, "reconcile sweep complete")
	return multierr.Combine(errs...)
}
