package journal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJournalRecordsInOrder(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()
	reqID := uuid.New()

	e1 := NewEntry(reqID, 1, 2, "Minimize\n obj: x0\nEnd", "Infeasible", 5*time.Millisecond, 0)
	e2 := NewEntry(reqID, 2, 2, "Minimize\n obj: x0\nEnd", "Optimal", 7*time.Millisecond, 1)

	require.NoError(t, j.Record(ctx, e1))
	require.NoError(t, j.Record(ctx, e2))

	got, err := j.ForRequest(ctx, reqID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "Infeasible", got[0].Status)
	assert.Equal(t, "Optimal", got[1].Status)
}

func TestMemoryJournalIsolatesRequests(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, j.Record(ctx, NewEntry(a, 1, 1, "lp-a", "Optimal", time.Millisecond, 0)))
	require.NoError(t, j.Record(ctx, NewEntry(b, 1, 1, "lp-b", "Optimal", time.Millisecond, 0)))

	gotA, err := j.ForRequest(ctx, a)
	require.NoError(t, err)
	assert.Len(t, gotA, 1)

	gotUnknown, err := j.ForRequest(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, gotUnknown)
}

func TestDigestIsStableAndSensitiveToContent(t *testing.T) {
	a := Digest("Minimize\n obj: x0\nEnd")
	b := Digest("Minimize\n obj: x0\nEnd")
	c := Digest("Minimize\n obj: x1\nEnd")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
