package namespace

import (
	"testing"

	"github.com/celestiaorg/go-square/v3/share"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	fromName, err := Resolve("movement-batches")
	require.NoError(t, err)
	assert.Len(t, fromName.Bytes(), share.NamespaceSize)

	again, err := Resolve("movement-batches")
	require.NoError(t, err)
	assert.Equal(t, fromName.Bytes(), again.Bytes())

	other, err := Resolve("other")
	require.NoError(t, err)
	assert.NotEqual(t, fromName.Bytes(), other.Bytes())

	fromHex, err := Resolve(HexString(fromName))
	require.NoError(t, err)
	assert.Equal(t, fromName.Bytes(), fromHex.Bytes())
}

func TestResolve_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "bad hex", input: "0xzz"},
		{name: "wrong size", input: "0x0102"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.input)
			require.Error(t, err)
		})
	}
}
