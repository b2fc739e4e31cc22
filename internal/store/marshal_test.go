package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parorch/internal/ir"
)

func TestMarshalStrings(t *testing.T) {
	got, err := marshalStrings(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", got)

	got, err = marshalStrings([]string{"grep foo in1", "a > b"})
	require.NoError(t, err)
	assert.Equal(t, `["grep foo in1","a > b"]`, got)
}

func TestUnmarshalStrings(t *testing.T) {
	got, err := unmarshalStrings("")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = unmarshalStrings(`["x","y"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, got)

	_, err = unmarshalStrings(`{"x":1}`)
	assert.Error(t, err)
}

func TestMarshalResult_NoHTMLEscape(t *testing.T) {
	data, err := marshalResult(&ir.RunResult{
		RunID:    "run-1",
		Commands: []ir.CommandResult{{Raw: "grep foo in1 > out1 && true"}},
	})
	require.NoError(t, err)
	assert.Contains(t, data, `"raw":"grep foo in1 > out1 && true"`)
	assert.NotContains(t, data, "\n")

	back, err := unmarshalResult(data)
	require.NoError(t, err)
	assert.Equal(t, "run-1", back.RunID)
	assert.Equal(t, "grep foo in1 > out1 && true", back.Commands[0].Raw)
}
