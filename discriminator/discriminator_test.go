package discriminator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatePath_ThisIsAlwaysValid(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.ValidatePath("$this"))
	require.NoError(t, v.ValidatePath(""))
}

func TestValidatePath_AcceptsWellFormedExpression(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.ValidatePath("Patient.name.given"))
}

func TestValidatePath_RejectsMalformedExpression(t *testing.T) {
	v := NewValidator()
	err := v.ValidatePath("Patient.name.(((")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid discriminator path")
}

func TestValidatePath_CachesResultAcrossCalls(t *testing.T) {
	v := NewValidator()
	err1 := v.ValidatePath("Patient.name.(((")
	err2 := v.ValidatePath("Patient.name.(((")
	require.Equal(t, err1, err2)
	require.Len(t, v.cache, 1)
}
