package jobs_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/lavente-household/authcore/internal/jobs"
	"github.com/stretchr/testify/require"
)

// setupTestRedis starts an in-process miniredis server, the standard
// fake-Redis pattern for testing asynq clients without a live broker.
func setupTestRedis(t *testing.T) string {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr.Addr()
}

func TestDispatcher_NotifyFamilyRevoked_Enqueues(t *testing.T) {
	addr := setupTestRedis(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: addr})
	defer client.Close()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: addr})
	defer inspector.Close()

	dispatcher := jobs.NewDispatcher(client, logger)
	userID := uuid.New()

	dispatcher.NotifyFamilyRevoked(context.Background(), userID, "replay detected")

	tasks, err := inspector.ListPendingTasks("default")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, jobs.TypeSecurityAlert, tasks[0].Type)
}

func TestDispatcher_NotifyFamilyRevoked_ZeroPayloadNoPanic(t *testing.T) {
	addr := setupTestRedis(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: addr})
	defer client.Close()

	dispatcher := jobs.NewDispatcher(client, logger)

	require.NotPanics(t, func() {
		dispatcher.NotifyFamilyRevoked(context.Background(), uuid.Nil, "")
	})
}
