package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tradesim-engine/internal/metrics"
	"tradesim-engine/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) (*Journal, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics()
	j, err := Open(Config{DBPath: ":memory:"}, m)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, m
}

func entry(symbol string, at time.Time) model.JournalEntry {
	return model.JournalEntry{
		Symbol:    symbol,
		Side:      model.SideBuy,
		Action:    model.ActionHold,
		Tag:       model.TagNeutral,
		ScoreBias: 0,
		Price:     123.45,
		RSI:       model.Ptr(48.2),
		CreatedAt: at,
	}
}

// waitForRows polls until the writer goroutine has committed n rows.
func waitForRows(t *testing.T, j *Journal, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, err := j.Recent(context.Background(), "", maxRecent)
		return err == nil && len(got) == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJournal_RecordAndRecent(t *testing.T) {
	j, m := openTestJournal(t)
	base := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)

	j.Record(entry("BTN", base))
	j.Record(entry("SMBY", base.Add(time.Minute)))
	noRSI := entry("BTN", base.Add(2*time.Minute))
	noRSI.RSI = nil
	noRSI.FreeMode = true
	j.Record(noRSI)

	waitForRows(t, j, 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.JournalWrites))

	all, err := j.Recent(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, base.Add(2*time.Minute), all[0].CreatedAt, "newest first")
	assert.Nil(t, all[0].RSI)
	assert.True(t, all[0].FreeMode)
	assert.NotEmpty(t, all[0].ID)

	btn, err := j.Recent(context.Background(), "BTN", 10)
	require.NoError(t, err)
	require.Len(t, btn, 2)
	for _, e := range btn {
		assert.Equal(t, "BTN", e.Symbol)
	}
	require.NotNil(t, btn[1].RSI)
	assert.InDelta(t, 48.2, *btn[1].RSI, 1e-9)
	assert.Equal(t, model.ActionHold, btn[1].Action)
	assert.Equal(t, model.SideBuy, btn[1].Side)
}

func TestJournal_RecentLimit(t *testing.T) {
	j, _ := openTestJournal(t)
	base := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		j.Record(entry("BTN", base.Add(time.Duration(i)*time.Second)))
	}
	waitForRows(t, j, 5)

	got, err := j.Recent(context.Background(), "BTN", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, base.Add(4*time.Second), got[0].CreatedAt)
}

func TestJournal_Purge(t *testing.T) {
	j, m := openTestJournal(t)
	base := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)
	j.Record(entry("BTN", base.Add(-48*time.Hour)))
	j.Record(entry("BTN", base.Add(-25*time.Hour)))
	j.Record(entry("BTN", base))
	waitForRows(t, j, 3)

	n, err := j.Purge(context.Background(), base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JournalPruned))

	left, err := j.Recent(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, base, left[0].CreatedAt)
}

func TestJournal_FillsDefaults(t *testing.T) {
	j, _ := openTestJournal(t)
	fixed := time.Date(2026, 3, 9, 15, 30, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	j.Record(model.JournalEntry{Symbol: "USXEUR", Side: model.SideSell, Action: model.ActionWait, Tag: model.TagDowntrend})
	waitForRows(t, j, 1)

	got, err := j.Recent(context.Background(), "USXEUR", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fixed, got[0].CreatedAt)
	assert.Len(t, got[0].ID, 36)
}

func TestJournal_CloseFlushesAndIgnoresLateRecords(t *testing.T) {
	m := metrics.NewMetrics()
	j, err := Open(Config{DBPath: ":memory:"}, m)
	require.NoError(t, err)

	j.Record(entry("BTN", time.Now()))
	require.NoError(t, j.Close())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JournalWrites))

	// Must not panic after Close; second Close is a no-op.
	j.Record(entry("BTN", time.Now()))
	assert.NoError(t, j.Close())
}

func TestJournal_FileBackedCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")

	j, err := Open(Config{DBPath: path}, nil)
	require.NoError(t, err)
	j.Record(entry("BTN", time.Now()))
	require.NoError(t, j.Close())

	reopened, err := Open(Config{DBPath: path}, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Recent(context.Background(), "BTN", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
