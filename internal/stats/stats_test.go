package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndRecent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "db", "history.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)
	runs := []Run{
		{ID: "a", ProjectID: "p1", Status: "completed", StartedAt: base, Frames: 60, Total: 60, Elapsed: 2 * time.Second},
		{ID: "b", ProjectID: "p2", Status: "failed", Error: "encode", StartedAt: base.Add(time.Minute)},
		{ID: "c", ProjectID: "p1", Status: "cancelled", StartedAt: base.Add(2 * time.Minute), Render: 1500 * time.Millisecond},
	}
	for _, r := range runs {
		require.NoError(t, s.Record(ctx, r))
	}

	all, err := s.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, 1500*time.Millisecond, all[0].Render)
	assert.True(t, base.Equal(all[2].StartedAt))

	p1, err := s.Recent(ctx, "p1", 1)
	require.NoError(t, err)
	require.Len(t, p1, 1)
	assert.Equal(t, "c", p1[0].ID)
}

func TestRecordReplaces(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Record(ctx, Run{ID: "x", ProjectID: "p", Status: "running"}))
	require.NoError(t, s.Record(ctx, Run{ID: "x", ProjectID: "p", Status: "completed"}))
	runs, err := s.Recent(ctx, "p", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
}

func TestEffectiveFPSAndReport(t *testing.T) {
	r := Run{Frames: 120, Total: 120, Elapsed: 4 * time.Second, Status: "completed", Build: "dev"}
	assert.InDelta(t, 30.0, r.EffectiveFPS(), 1e-9)
	assert.Zero(t, Run{Frames: 10}.EffectiveFPS())
	assert.Contains(t, r.Report(), "Effective FPS: 30.00")
	assert.Contains(t, r.Report(), "Frames: 120/120")
}
