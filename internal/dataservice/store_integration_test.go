package dataservice

import (
	"context"
	"os"
	"testing"
	"time"

	"psvs-console-be/internal/model"
	"psvs-console-be/internal/repository/specification"
	"psvs-console-be/internal/repository/unitofwork"
	"psvs-console-be/pkg/database"
	"psvs-console-be/pkg/timeline"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationStore(t *testing.T) (*Store, unitofwork.RepositoryFactory) {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, false)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))

	factory := unitofwork.NewRepositoryFactory(db)
	return NewStore(factory), factory
}

func TestStore_ServesSeededTimeline(t *testing.T) {
	store, factory := newIntegrationStore(t)
	ctx := context.Background()

	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	demo, err := SeedDemo(ctx, factory, start)
	require.NoError(t, err)

	sessions, err := store.ListSessions(ctx, demo.ClientID.String())
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.True(t, sessions[0].StartedAt.Before(sessions[1].StartedAt))
	assert.False(t, sessions[2].ProVisible)

	msgs, err := store.ListMessages(ctx, sessions[1].ID)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	assert.Nil(t, msgs[0].SubSessionID, "first message predates mini sessions")
	require.NotNil(t, msgs[0].Snapshot)
	assert.Equal(t, timeline.EnergyNeurotic, msgs[0].Snapshot.EnergyState)
	assert.Equal(t, timeline.RoleAssistant, msgs[2].Role)
	assert.Nil(t, msgs[2].Snapshot)

	subs, err := store.ListSubSessions(ctx, sessions[1].ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.True(t, subs[1].IsActive)

	groups := timeline.GroupMessages(sessions[1], msgs, subs)
	require.Len(t, groups, 3)
	assert.Equal(t, timeline.GroupOrphan, groups[0].GroupID)

	pos, err := store.GetPosition(ctx, demo.ClientID.String(), 3)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, 3.5, pos.Current.StressLevel)
	require.Len(t, pos.Trajectory, 3)
	assert.Equal(t, 7.0, pos.Trajectory[0].StressLevel)
}

func TestStore_SubmitFeedback(t *testing.T) {
	store, factory := newIntegrationStore(t)
	ctx := context.Background()

	demo, err := SeedDemo(ctx, factory, time.Now().Add(-72*time.Hour).UTC())
	require.NoError(t, err)

	practitioner := "pr-" + uuid.NewString()
	err = store.SubmitFeedback(ctx, timeline.Feedback{
		SessionID:      demo.SessionIDs[1].String(),
		PractitionerID: practitioner,
		Rating:         5,
		Comment:        "grounding exercise landed well",
	})
	require.NoError(t, err)

	rows, err := factory.NewUnitOfWork(ctx).SupervisionFeedbackRepository().FindAll(ctx,
		specification.ByPractitionerID{PractitionerID: practitioner})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].Rating)

	err = store.SubmitFeedback(ctx, timeline.Feedback{SessionID: uuid.NewString(), PractitionerID: practitioner})
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestStore_RejectsMalformedIDs(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	_, err := store.ListSessions(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = store.ListMessages(ctx, "nope")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = store.GetPosition(ctx, "nope", 10)
	assert.ErrorIs(t, err, ErrInvalidID)

	bad := "bad"
	err = store.SubmitFeedback(ctx, timeline.Feedback{SessionID: uuid.NewString(), MessageID: &bad})
	assert.ErrorIs(t, err, ErrInvalidID)
}
