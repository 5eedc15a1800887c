package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

func TestDiscountService_Verify(t *testing.T) {
	db := newTestDB(t)
	svc := NewDiscountService(db)
	ctx := context.Background()

	tests := []struct {
		name     string
		code     string
		subtotal float64
		wantErr  error
		wantRate float64
	}{
		{"lowercase code", "maret10", 5, nil, 0.1},
		{"meets minimum", "MARET20", 100, nil, 0.2},
		{"below minimum", "MARET20", 99.99, ErrInvalidInput, 0},
		{"unknown", "NOPE", 500, ErrNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := svc.Verify(ctx, tt.code, tt.subtotal)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRate, d.Rate)
		})
	}
}

func TestDiscountService_ExpiredCodesAreHidden(t *testing.T) {
	db := newTestDB(t)
	svc := NewDiscountService(db)
	ctx := context.Background()

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 4)

	svc.now = fixedClock(time.Now().AddDate(0, 2, 0).Add(time.Hour))
	active, err = svc.ListActive(ctx)
	require.NoError(t, err)
	codes := make([]string, 0, len(active))
	for _, d := range active {
		codes = append(codes, d.Code)
	}
	assert.ElementsMatch(t, []string{"MARET10", "MARET20"}, codes)

	_, err = svc.Verify(ctx, "GRATIS", 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDiscountService_CreateRejectsDuplicates(t *testing.T) {
	db := newTestDB(t)
	svc := NewDiscountService(db)
	ctx := context.Background()

	d, err := svc.Create(ctx, models.CreateDiscountRequest{Code: "spring5", Rate: 0.05, Description: "5% off", Category: "seasonal"})
	require.NoError(t, err)
	assert.Equal(t, "SPRING5", d.Code)
	assert.True(t, d.Active)

	_, err = svc.Create(ctx, models.CreateDiscountRequest{Code: "SPRING5", Rate: 0.05, Description: "again", Category: "seasonal"})
	assert.ErrorIs(t, err, ErrConflict)
}
