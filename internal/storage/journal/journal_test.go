package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/stagerun/internal/domain"
)

func record(stageID string) Record {
	return Record{
		ExperimentID:  "exp-1",
		ParticipantID: "p-1",
		Response:      domain.NewCompletionMarker(stageID, domain.StageInstructions),
		RecordedAt:    time.Now().UTC(),
	}
}

func TestStore_AppendAndPending(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, store.Close())
	}()

	first, err := store.Append(record("stage-a"))
	require.NoError(t, err)
	second, err := store.Append(record("stage-b"))
	require.NoError(t, err)
	require.Greater(t, second, first)

	pending, err := store.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "stage-a", pending[0].Record.Response.StageID)
	assert.Equal(t, "stage-b", pending[1].Record.Response.StageID)
}

func TestStore_AckExcludesFlushedRecords(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, store.Close())
	}()

	first, err := store.Append(record("stage-a"))
	require.NoError(t, err)
	require.NoError(t, store.Ack(first))

	_, err = store.Append(record("stage-b"))
	require.NoError(t, err)

	pending, err := store.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "stage-b", pending[0].Record.Response.StageID)
}

func TestStore_PendingSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	_, err = store.Append(record("stage-a"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, reopened.Close())
	}()

	pending, err := reopened.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "stage-a", pending[0].Record.Response.StageID)
}

func TestStore_EmptyJournal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, store.Close())
	}()

	pending, err := store.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}
