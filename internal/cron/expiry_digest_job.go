package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/dontforget-backend/internal/items"
	"github.com/angelmondragon/dontforget-backend/internal/notify"
	"github.com/angelmondragon/dontforget-backend/pkg/logger"
)

// digestDeliverer is the slice of the notification port the digest needs.
type digestDeliverer interface {
	Deliver(ctx context.Context, alert notify.Alert) error
}

// ExpiryDigestJobParams configure the morning expiry digest.
type ExpiryDigestJobParams struct {
	Logger    *logger.Logger
	Store     *items.Store
	Deliverer digestDeliverer
	Now       func() time.Time
	// Location is the timezone the digest counts calendar days in.
	Location *time.Location
}

// NewExpiryDigestJob builds the job that delivers one morning digest listing
// every active item expiring within the next 7 days.
func NewExpiryDigestJob(params ExpiryDigestJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("item store required")
	}
	if params.Deliverer == nil {
		return nil, fmt.Errorf("deliverer required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	location := params.Location
	if location == nil {
		location = time.Local
	}
	return &expiryDigestJob{
		logg:      params.Logger,
		store:     params.Store,
		deliverer: params.Deliverer,
		now:       now,
		location:  location,
	}, nil
}

type expiryDigestJob struct {
	logg      *logger.Logger
	store     *items.Store
	deliverer digestDeliverer
	now       func() time.Time
	location  *time.Location
}

func (j *expiryDigestJob) Name() string { return "expiry-digest" }

func (j *expiryDigestJob) Run(ctx context.Context) error {
	expiring := j.store.ExpiringSoon()
	if len(expiring) == 0 {
		j.logg.Info(ctx, "no items expiring soon, skipping digest")
		return nil
	}

	now := j.now().In(j.location)
	alert := notify.Alert{
		Key:   "digest:" + now.Format("2006-01-02"),
		Title: digestTitle(len(expiring)),
		Body:  digestBody(expiring, now),
	}
	if err := j.deliverer.Deliver(ctx, alert); err != nil {
		return fmt.Errorf("deliver expiry digest: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": len(expiring)})
	j.logg.Info(logCtx, "expiry digest delivered")
	return nil
}

func digestTitle(count int) string {
	if count == 1 {
		return "1 item expires this week"
	}
	return fmt.Sprintf("%d items expire this week", count)
}

func digestBody(expiring []items.Item, now time.Time) string {
	lines := make([]string, 0, len(expiring))
	for _, item := range expiring {
		days, ok := item.DaysUntilExpiry(now)
		if !ok {
			continue
		}
		switch days {
		case 0:
			lines = append(lines, fmt.Sprintf("%s expires today", item.Title))
		case 1:
			lines = append(lines, fmt.Sprintf("%s expires tomorrow", item.Title))
		default:
			lines = append(lines, fmt.Sprintf("%s expires in %d days", item.Title, days))
		}
	}
	return strings.Join(lines, "; ")
}
