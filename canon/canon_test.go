package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_FieldOrderIndependent(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2}
	b := map[string]interface{}{"a": 2, "b": 1}

	outA, err := Marshal(a)
	require.NoError(t, err)
	outB, err := Marshal(b)
	require.NoError(t, err)

	assert.Equal(t, outA, outB)
	assert.Equal(t, `{"a":2,"b":1}`, string(outA))
}

func TestTransform_StructuralDifferenceChangesOutput(t *testing.T) {
	out1, err := Transform([]byte(`{"a":1}`))
	require.NoError(t, err)
	out2, err := Transform([]byte(`{"a":2}`))
	require.NoError(t, err)

	assert.NotEqual(t, out1, out2)
}

func TestTransform_InvalidJSON(t *testing.T) {
	_, err := Transform([]byte(`{not json`))
	assert.Error(t, err)
}
