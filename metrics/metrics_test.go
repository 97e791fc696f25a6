package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gofhir/fsh/diag"
)

func TestRecordEntity_TracksCompiledAndSkippedSeparately(t *testing.T) {
	m := New()
	m.RecordEntity(5*time.Millisecond, false)
	m.RecordEntity(2*time.Millisecond, true)
	m.RecordEntity(8*time.Millisecond, false)

	require.EqualValues(t, 2, m.EntitiesCompiled())
	require.EqualValues(t, 1, m.EntitiesSkipped())
}

func TestCacheHitRate(t *testing.T) {
	m := New()
	require.Equal(t, 0.0, m.CacheHitRate())
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()
	require.InDelta(t, 2.0/3.0, m.CacheHitRate(), 1e-9)
}

func TestRecordDiagnostic_TalliesBySeverity(t *testing.T) {
	m := New()
	m.RecordDiagnostic(diag.SeverityError)
	m.RecordDiagnostic(diag.SeverityError)
	m.RecordDiagnostic(diag.SeverityWarn)
	m.RecordDiagnostic(diag.SeverityInfo)

	snap := m.Snapshot()
	require.EqualValues(t, 2, snap.ErrorsTotal)
	require.EqualValues(t, 1, snap.WarningsTotal)
	require.EqualValues(t, 1, snap.InfosTotal)
}

func TestRecordPhase_ComputesAverage(t *testing.T) {
	m := New()
	m.RecordPhase("import", 10*time.Millisecond, 0)
	m.RecordPhase("import", 20*time.Millisecond, 1)

	stats := m.AllPhaseStats()
	require.Len(t, stats, 1)
	require.Equal(t, "import", stats[0].Name)
	require.EqualValues(t, 2, stats[0].Invocations)
	require.Equal(t, 15*time.Millisecond, stats[0].AvgTime)
	require.EqualValues(t, 1, stats[0].IssuesFound)
}
