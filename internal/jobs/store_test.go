package jobs

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/bill-audit/constants"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
)

func TestStore_CreateGetPollDelete(t *testing.T) {
	s := NewStore()
	j := s.Create()
	j.Log(constants.SeverityInfo, "Audit queued")

	got, ok := s.Get(j.ID)
	require.True(t, ok)
	assert.Same(t, j, got)

	st, ok := s.Poll(j.ID)
	require.True(t, ok)
	assert.Len(t, st.Logs, 1)
	st, _ = s.Poll(j.ID)
	assert.Empty(t, st.Logs)

	_, ok = s.Poll(uuid.New())
	assert.False(t, ok)

	s.Delete(j.ID)
	assert.Zero(t, s.Len())
}

func TestStore_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()
	s.now = func() time.Time { return now }

	old := s.Create()
	old.Complete(entity.Summary{}, "a")
	failed := s.Create()
	failed.Fail(errors.New("boom"))
	running := s.Create()

	now = now.Add(2 * time.Hour)
	fresh := s.Create()
	fresh.Complete(entity.Summary{}, "b")

	removed := s.Sweep(now.Add(-time.Hour))

	assert.Equal(t, 2, removed)
	assert.Equal(t, 2, s.Len())
	_, ok := s.Get(running.ID)
	assert.True(t, ok)
	_, ok = s.Get(fresh.ID)
	assert.True(t, ok)
	_, ok = s.Get(old.ID)
	assert.False(t, ok)
}
