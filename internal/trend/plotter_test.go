package trend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mineoil-data/fleet.report/internal/oil"
	"github.com/mineoil-data/fleet.report/internal/stewart"
	"github.com/mineoil-data/fleet.report/internal/store"
	"github.com/mineoil-data/fleet.report/internal/testutil"
)

func seedSeries(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	samples := []oil.Sample{
		testutil.Sample("t1", "LAB-1", "cam_101", testutil.Date(2026, 5, 1), map[string]float64{"fierro": 10}),
		testutil.Sample("t1", "LAB-2", "cam_101", testutil.Date(2026, 5, 8), map[string]float64{"fierro": 14}),
		testutil.Sample("t1", "LAB-3", "cam_101", testutil.Date(2026, 5, 15), map[string]float64{"fierro": 22}),
	}
	require.NoError(t, db.UpsertSamples(context.Background(), samples))
	return db
}

func TestRenderWritesChart(t *testing.T) {
	db := seedSeries(t)
	tp := NewPlotter(db, t.TempDir())

	snap := stewart.FromSets("t1", []oil.ThresholdSet{
		{Tenant: "t1", MachineName: "camion", ComponentName: "motor", Essay: "fierro", Normal: 15, Alert: 20, Critical: 25},
	})

	out, err := tp.Render(context.Background(), "t1", "cam_101", "motor", "fierro", "camion", snap)
	require.NoError(t, err)
	assert.Equal(t, "t1_cam_101_motor_fierro.png", filepath.Base(out))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRenderWithoutThresholds(t *testing.T) {
	db := seedSeries(t)
	tp := NewPlotter(db, t.TempDir())

	out, err := tp.Render(context.Background(), "t1", "cam_101", "motor", "fierro", "camion", nil)
	require.NoError(t, err)
	assert.FileExists(t, out)
}

func TestRenderEmptySeries(t *testing.T) {
	db := seedSeries(t)
	tp := NewPlotter(db, t.TempDir())

	_, err := tp.Render(context.Background(), "t1", "cam_999", "motor", "fierro", "camion", nil)
	assert.Error(t, err)
}
