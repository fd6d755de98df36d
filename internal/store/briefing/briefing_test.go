package briefing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetReadyAndLatest(t *testing.T) {
	s := NewStore()
	_, ok := s.Latest()
	assert.False(t, ok)

	s.SetReady("b1", 120, []string{"pipeline", "renewals"})

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, "b1", latest.BriefingID)
	assert.Equal(t, []string{"pipeline", "renewals"}, latest.Topics)
}

func TestDuplicateAnnouncementKeepsReadyAt(t *testing.T) {
	s := NewStore()
	times := []time.Time{
		time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	i := 0
	s.now = func() time.Time { t := times[i%len(times)]; i++; return t }

	s.SetReady("b1", 120, nil)
	s.SetReady("b1", 120, nil)

	latest, _ := s.Latest()
	assert.Equal(t, times[0], latest.ReadyAt)
}

func TestNewerBriefingReplacesOlder(t *testing.T) {
	s := NewStore()
	s.SetReady("b1", 120, nil)
	s.SetReady("b2", 90, nil)

	latest, _ := s.Latest()
	assert.Equal(t, "b2", latest.BriefingID)
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.SetReady("b1", 120, nil)
	s.Clear()
	_, ok := s.Latest()
	assert.False(t, ok)
}
