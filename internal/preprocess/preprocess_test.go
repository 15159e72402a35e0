package preprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesPadsTail(t *testing.T) {
	v := Bytes("AB")
	require.Len(t, v, Width)
	assert.InDelta(t, 65.0/255.0, v[0], 1e-7)
	assert.InDelta(t, 66.0/255.0, v[1], 1e-7)
	for i := 2; i < Width; i++ {
		require.Zero(t, v[i])
	}
}

func TestBytesTruncatesTail(t *testing.T) {
	text := strings.Repeat("a", Width) + strings.Repeat("z", 10)
	v := Bytes(text)
	require.Len(t, v, Width)
	assert.InDelta(t, float32('a')/255.0, v[Width-1], 1e-7)
}

func TestBytesHighBytesStayPositive(t *testing.T) {
	v := Bytes("é") // 0xC3 0xA9
	assert.InDelta(t, float32(0xC3)/255.0, v[0], 1e-7)
	assert.InDelta(t, float32(0xA9)/255.0, v[1], 1e-7)
	for _, f := range v {
		assert.GreaterOrEqual(t, f, float32(0))
		assert.LessOrEqual(t, f, float32(1))
	}
}

func TestBytesEmpty(t *testing.T) {
	v := Bytes("")
	require.Len(t, v, Width)
	assert.Equal(t, make([]float32, Width), v)
}
