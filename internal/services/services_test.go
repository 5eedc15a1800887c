package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront/internal/database"
	"storefront/internal/models"
)

// newTestDB returns a migrated, seeded sqlite database with five products.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.Seed(db, 5))
	return db
}

func userByEmail(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.Where("email = ?", email).First(&u).Error)
	return u
}

func createUser(t *testing.T, db *gorm.DB, name, email string) models.User {
	t.Helper()
	u := models.User{Name: name, Email: email, PasswordHash: "x"}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func nullLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

type published struct {
	Channel string
	Event   string
	Data    any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, channel, event string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{channel, event, data})
	return nil
}

func (p *recordingPublisher) on(channel string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
