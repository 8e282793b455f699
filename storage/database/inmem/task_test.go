package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/storage/database/inmem"
)

func TestTaskRepository_intentsAreCopied(t *testing.T) {
	repo := inmemdb.NewTaskRepository(inmemdb.Open())
	ctx := context.Background()
	now := time.Now().UTC()

	created, err := repo.CreateIntent(ctx, task.SubmissionIntent{
		ID: "i1", TaskID: "t", TeacherID: "u", State: task.IntentPending,
		FileIDs: make([]string, 1, 4), CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	created.FileIDs[0] = "changed"
	_ = append(created.FileIDs, "appended")

	got, err := repo.GetIntent(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, []string{""}, got.FileIDs)

	got.FileIDs = append(make([]string, 0, 4), "f1")
	updated, err := repo.UpdateIntent(ctx, got)
	require.NoError(t, err)
	updated.FileIDs[0] = "changed"

	got, err = repo.GetIntent(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, got.FileIDs)
}
