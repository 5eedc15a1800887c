package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

type fakeChecker struct {
	since []time.Time
	resp  *models.CheckNewResponse
	err   error
}

func (f *fakeChecker) CheckNew(ctx context.Context, lastChecked time.Time) (*models.CheckNewResponse, error) {
	f.since = append(f.since, lastChecked)
	return f.resp, f.err
}

func TestUnreadPoller_Poll(t *testing.T) {
	api := &fakeChecker{resp: &models.CheckNewResponse{HasNewMessages: true, Count: 2}}
	logger, _ := test.NewNullLogger()
	var got []models.CheckNewResponse
	p, err := NewUnreadPoller(api, "", func(r models.CheckNewResponse) { got = append(got, r) }, logger)
	require.NoError(t, err)
	p.now = func() time.Time { return t0 }
	ctx := context.Background()

	assert.True(t, p.Poll(ctx))
	assert.True(t, api.since[0].IsZero(), "first poll lets the server pick the window")
	assert.Equal(t, []models.CheckNewResponse{{HasNewMessages: true, Count: 2}}, got)

	api.resp = &models.CheckNewResponse{}
	assert.False(t, p.Poll(ctx))
	assert.Equal(t, t0, api.since[1])
	assert.Len(t, got, 1)
}

func TestUnreadPoller_FailureKeepsWindow(t *testing.T) {
	api := &fakeChecker{err: errors.New("offline")}
	logger, _ := test.NewNullLogger()
	p, err := NewUnreadPoller(api, "@every 1m", nil, logger)
	require.NoError(t, err)

	assert.False(t, p.Poll(context.Background()))
	assert.False(t, p.Poll(context.Background()))
	assert.True(t, api.since[1].IsZero())
}

func TestUnreadPoller_RejectsBadSchedule(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := NewUnreadPoller(&fakeChecker{}, "every now and then", nil, logger)
	assert.Error(t, err)
}

func TestUnreadPoller_StartStop(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p, err := NewUnreadPoller(&fakeChecker{resp: &models.CheckNewResponse{}}, "@every 1h", nil, logger)
	require.NoError(t, err)
	p.Start()
	p.Stop()
}
