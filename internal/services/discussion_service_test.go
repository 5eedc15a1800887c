package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

func TestDiscussionService_Thread(t *testing.T) {
	db := newTestDB(t)
	svc := NewDiscussionService(db)
	user := userByEmail(t, db, "user@example.com")
	admin := userByEmail(t, db, "admin@example.com")
	ctx := context.Background()

	_, err := svc.Create(ctx, 404, user.ID, models.CreateDiscussionRequest{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, ErrNotFound)

	d, err := svc.Create(ctx, 2, user.ID, models.CreateDiscussionRequest{Title: "Sizing", Content: "Runs small?"})
	require.NoError(t, err)
	assert.Equal(t, "Regular User", d.User.Name)

	_, err = svc.AddComment(ctx, d.ID, admin.ID, models.CreateCommentRequest{Content: "Order one size up."})
	require.NoError(t, err)
	_, err = svc.AddComment(ctx, d.ID, user.ID, models.CreateCommentRequest{Content: "Thanks"})
	require.NoError(t, err)

	list, err := svc.ListForProduct(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.EqualValues(t, 2, list[0].CommentCount)

	comments, err := svc.Comments(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "Admin User", comments[0].User.Name)

	_, err = svc.Comments(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
