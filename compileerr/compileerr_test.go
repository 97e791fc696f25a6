package compileerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gofhir/fsh/diag"
)

func TestIs_MatchesOnKindAcrossDistinctInstances(t *testing.T) {
	err := New(ParentNotDefined, "profile %q has no parent", "MyObs").WithSpan(diag.Span{File: "obs.fsh"})
	target := New(ParentNotDefined, "")

	require.True(t, errors.Is(err, target))
	require.False(t, errors.Is(err, New(CannotResolvePath, "")))
}

func TestWrap_PreservesCauseForUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(PackageLoad, cause, "could not load hl7.fhir.r4.core")

	require.Equal(t, cause, errors.Unwrap(err))
	require.ErrorIs(t, err, cause)
}

func TestKindOf_ExtractsKindFromWrappedError(t *testing.T) {
	err := fmt.Errorf("exporting MyObs: %w", New(InvalidCardinality, "0..1 cannot widen 1..1"))

	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, InvalidCardinality, kind)
}

func TestKindOf_FalseForOrdinaryError(t *testing.T) {
	_, ok := KindOf(fmt.Errorf("plain error"))
	require.False(t, ok)
}

func TestWithApplied_RecordsMixinApplicationSite(t *testing.T) {
	origin := diag.Span{File: "rules.fsh", Start: diag.Pos{Line: 3}}
	applied := diag.Span{File: "profile.fsh", Start: diag.Pos{Line: 10}}

	err := New(InvalidCardinality, "widened").WithSpan(origin).WithApplied(applied)
	require.Equal(t, origin, err.Span)
	require.Equal(t, &applied, err.Applied)
}
