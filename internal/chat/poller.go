package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"storefront/internal/models"
)

// DefaultPollSchedule is used when no schedule is configured.
const DefaultPollSchedule = "@every 30s"

type CheckNewAPI interface {
	CheckNew(ctx context.Context, lastChecked time.Time) (*models.CheckNewResponse, error)
}

// UnreadPoller periodically asks the server whether messages arrived since
// the last successful check. Failures are logged and otherwise ignored.
type UnreadPoller struct {
	api   CheckNewAPI
	onNew func(models.CheckNewResponse)
	log   logrus.FieldLogger
	now   func() time.Time
	cron  *cron.Cron

	mu          sync.Mutex
	lastChecked time.Time
}

// NewUnreadPoller schedules checks on schedule, a cron expression or a
// descriptor such as "@every 30s". onNew runs when new messages are found.
func NewUnreadPoller(api CheckNewAPI, schedule string, onNew func(models.CheckNewResponse), log logrus.FieldLogger) (*UnreadPoller, error) {
	if schedule == "" {
		schedule = DefaultPollSchedule
	}
	p := &UnreadPoller{
		api:   api,
		onNew: onNew,
		log:   log.WithField("component", "unread-poller"),
		now:   time.Now,
		cron:  cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := p.cron.AddFunc(schedule, func() { p.Poll(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule unread poll %q: %w", schedule, err)
	}
	return p, nil
}

func (p *UnreadPoller) Start() { p.cron.Start() }

// Stop halts scheduling and waits for a running poll to finish.
func (p *UnreadPoller) Stop() { <-p.cron.Stop().Done() }

// Poll runs one check and reports whether new messages were found.
func (p *UnreadPoller) Poll(ctx context.Context) bool {
	p.mu.Lock()
	since := p.lastChecked
	p.mu.Unlock()

	started := p.now()
	resp, err := p.api.CheckNew(ctx, since)
	if err != nil {
		p.log.WithError(err).Debug("check for new messages")
		return false
	}

	p.mu.Lock()
	p.lastChecked = started
	p.mu.Unlock()

	if !resp.HasNewMessages {
		return false
	}
	p.log.WithField("count", resp.Count).Info("new messages")
	if p.onNew != nil {
		p.onNew(*resp)
	}
	return true
}
