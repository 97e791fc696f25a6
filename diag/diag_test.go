package diag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSink_RecordsDiagnosticsAtEachSeverity(t *testing.T) {
	s := NewSink()
	s.Error("a.fsh", nil, "bad thing %d", 1)
	s.Warn("a.fsh", nil, "meh")
	s.Info("a.fsh", nil, "fyi")

	all := s.All()
	require.Len(t, all, 3)
	require.Equal(t, SeverityError, all[0].Severity)
	require.Equal(t, "bad thing 1", all[0].Message)
	require.Equal(t, SeverityWarn, all[1].Severity)
	require.Equal(t, SeverityInfo, all[2].Severity)
}

func TestSink_HasErrorsOnlyTrueWithErrorSeverity(t *testing.T) {
	s := NewSink()
	require.False(t, s.HasErrors())

	s.Warn("a.fsh", nil, "meh")
	require.False(t, s.HasErrors())

	s.Error("a.fsh", nil, "bad")
	require.True(t, s.HasErrors())
}

func TestSink_AppliedRecordsOriginAndAppliedSpans(t *testing.T) {
	s := NewSink()
	origin := &Span{File: "rules.fsh", Start: Pos{Line: 3}}
	applied := &Span{File: "profile.fsh", Start: Pos{Line: 10}}

	s.Applied(SeverityWarn, "rules.fsh", origin, "profile.fsh", applied, "widened cardinality")

	all := s.All()
	require.Len(t, all, 1)
	require.Equal(t, "rules.fsh", all[0].File)
	require.Equal(t, origin, all[0].Span)
	require.Equal(t, "profile.fsh", all[0].AppliedFile)
	require.Equal(t, applied, all[0].AppliedSpan)
}

func TestSink_MergeAppendsOtherSinksDiagnostics(t *testing.T) {
	s1 := NewSink()
	s1.Error("a.fsh", nil, "first")

	s2 := NewSink()
	s2.Warn("b.fsh", nil, "second")

	s1.Merge(s2)

	all := s1.All()
	require.Len(t, all, 2)
	require.Equal(t, "first", all[0].Message)
	require.Equal(t, "second", all[1].Message)
}

func TestSink_MergeWithNilIsNoop(t *testing.T) {
	s := NewSink()
	s.Error("a.fsh", nil, "first")
	s.Merge(nil)
	require.Len(t, s.All(), 1)
}

func TestSink_AllReturnsSnapshotNotLiveSlice(t *testing.T) {
	s := NewSink()
	s.Error("a.fsh", nil, "first")

	snapshot := s.All()
	s.Error("a.fsh", nil, "second")

	require.Len(t, snapshot, 1, "earlier snapshot must not observe diagnostics recorded afterward")
	require.Len(t, s.All(), 2)
}
