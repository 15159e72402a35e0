package binding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/aidetect/internal/engine"
	"github.com/straja-ai/aidetect/internal/engine/enginetest"
)

func newBoundGraph(t *testing.T, ids, mask engine.ElementType, dims ...int64) (*enginetest.Graph, Layout) {
	t.Helper()
	g := enginetest.NewGraph(
		enginetest.Slot("input_ids", ids, dims...),
		enginetest.Slot("attention_mask", mask, dims...),
	)
	return g, Resolve(g.Inputs())
}

func asInt64(t *testing.T, b engine.Buffer) []int64 {
	t.Helper()
	var out []int64
	switch d := b.(type) {
	case engine.Int16Buffer:
		for _, v := range d {
			out = append(out, int64(v))
		}
	case engine.Int32Buffer:
		for _, v := range d {
			out = append(out, int64(v))
		}
	case engine.Int64Buffer:
		out = append(out, d...)
	case engine.Uint8Buffer:
		for _, v := range d {
			out = append(out, int64(v))
		}
	default:
		t.Fatalf("unexpected buffer %T", b)
	}
	return out
}

func TestBindScenarioPadsTo128(t *testing.T) {
	g, l := newBoundGraph(t, engine.ElementInt32, engine.ElementInt32, 1, 128)
	ids := []int32{10, 20, 30, 40, 50}
	mask := []int32{1, 1, 1, 1, 1}

	require.NoError(t, Bind(g, l, ids, mask))

	gotIDs := asInt64(t, g.Buffer(0))
	gotMask := asInt64(t, g.Buffer(1))
	require.Len(t, gotIDs, 128)
	require.Len(t, gotMask, 128)
	assert.Equal(t, []int64{10, 20, 30, 40, 50}, gotIDs[:5])
	assert.Equal(t, []int64{1, 1, 1, 1, 1}, gotMask[:5])
	for i := 5; i < 128; i++ {
		assert.Zero(t, gotIDs[i], "ids[%d]", i)
		assert.Zero(t, gotMask[i], "mask[%d]", i)
	}
}

func TestBindReadBackPerWidth(t *testing.T) {
	cases := []struct {
		name      string
		ids, mask engine.ElementType
		idVals    []int32
		maskVals  []int32
	}{
		{"int16/int32", engine.ElementInt16, engine.ElementInt32, []int32{math.MinInt16, -1, 0, math.MaxInt16}, []int32{1, 0, 1, 1}},
		{"int32/uint8", engine.ElementInt32, engine.ElementUint8, []int32{math.MinInt32, 7, 30522, math.MaxInt32}, []int32{0, 1, 255, 1}},
		{"int64/int64", engine.ElementInt64, engine.ElementInt64, []int32{101, 2023, 2003, 102}, []int32{1, 1, 1, 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, l := newBoundGraph(t, tc.ids, tc.mask, 1, 4)
			require.NoError(t, Bind(g, l, tc.idVals, tc.maskVals))
			for i, v := range asInt64(t, g.Buffer(0)) {
				assert.Equal(t, int64(tc.idVals[i]), v)
			}
			for i, v := range asInt64(t, g.Buffer(1)) {
				assert.Equal(t, int64(tc.maskVals[i]), v)
			}
		})
	}
}

func TestBindTruncatesTail(t *testing.T) {
	g, l := newBoundGraph(t, engine.ElementInt32, engine.ElementInt32, 1, 4)
	ids := []int32{1, 2, 3, 4, 5, 6, 7}
	mask := []int32{1, 1, 1, 1, 1, 1, 1}

	require.NoError(t, Bind(g, l, ids, mask))
	assert.Equal(t, []int64{1, 2, 3, 4}, asInt64(t, g.Buffer(0)))

	// Changing elements past seqLen must not change the bound buffer.
	ids[5], ids[6] = 99, 98
	require.NoError(t, Bind(g, l, ids, mask))
	assert.Equal(t, []int64{1, 2, 3, 4}, asInt64(t, g.Buffer(0)))
}

func TestBindClearsPreviousCall(t *testing.T) {
	g, l := newBoundGraph(t, engine.ElementInt32, engine.ElementUint8, 1, 6)
	require.NoError(t, Bind(g, l, []int32{9, 9, 9, 9, 9, 9}, []int32{1, 1, 1, 1, 1, 1}))
	require.NoError(t, Bind(g, l, []int32{5}, []int32{1}))
	assert.Equal(t, []int64{5, 0, 0, 0, 0, 0}, asInt64(t, g.Buffer(0)))
	assert.Equal(t, []int64{1, 0, 0, 0, 0, 0}, asInt64(t, g.Buffer(1)))
}

func TestBindLengthMismatchBeforeWrite(t *testing.T) {
	g, l := newBoundGraph(t, engine.ElementInt32, engine.ElementInt32, 1, 4)
	err := Bind(g, l, []int32{1, 2, 3}, []int32{1, 1})
	require.ErrorIs(t, err, engine.ErrLengthMismatch)
	assert.Equal(t, []int64{0, 0, 0, 0}, asInt64(t, g.Buffer(0)))
	assert.Equal(t, []int64{0, 0, 0, 0}, asInt64(t, g.Buffer(1)))
}

func TestBindUnsupportedTypes(t *testing.T) {
	cases := []struct {
		name      string
		ids, mask engine.ElementType
	}{
		{"float ids", engine.ElementFloat32, engine.ElementInt32},
		{"uint8 ids", engine.ElementUint8, engine.ElementInt32},
		{"int16 mask", engine.ElementInt32, engine.ElementInt16},
		{"float mask", engine.ElementInt32, engine.ElementFloat32},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, l := newBoundGraph(t, tc.ids, tc.mask, 1, 4)
			err := Bind(g, l, []int32{1}, []int32{1})
			require.ErrorIs(t, err, engine.ErrUnsupportedTensorType)
		})
	}
}

func TestBindUnsupportedMaskWritesNothing(t *testing.T) {
	g, l := newBoundGraph(t, engine.ElementInt32, engine.ElementFloat32, 1, 4)
	err := Bind(g, l, []int32{7, 8, 9}, []int32{1, 1, 1})
	require.ErrorIs(t, err, engine.ErrUnsupportedTensorType)
	assert.Equal(t, []int64{0, 0, 0, 0}, asInt64(t, g.Buffer(0)))
}

func TestBindUnsupportedMaskDoesNotResizeTokens(t *testing.T) {
	g, l := newBoundGraph(t, engine.ElementInt64, engine.ElementInt16, -1, -1)
	before := g.Buffer(0).Len()
	err := Bind(g, l, []int32{7, 8, 9}, []int32{1, 1, 1})
	require.ErrorIs(t, err, engine.ErrUnsupportedTensorType)
	assert.Equal(t, before, g.Buffer(0).Len())
	assert.Equal(t, []int64{0}, asInt64(t, g.Buffer(0)))
}

func TestBindDynamicSeqLenUsesCallerLength(t *testing.T) {
	g, l := newBoundGraph(t, engine.ElementInt64, engine.ElementInt64, -1, -1)
	require.False(t, l.Resolved())

	require.NoError(t, Bind(g, l, []int32{4, 5, 6}, []int32{1, 1, 1}))
	assert.Equal(t, []int64{4, 5, 6}, asInt64(t, g.Buffer(0)))

	require.NoError(t, Bind(g, l, []int32{7, 8}, []int32{1, 1}))
	assert.Equal(t, []int64{7, 8}, asInt64(t, g.Buffer(0)))
	assert.Equal(t, 0, l.SeqLen, "layout must not capture a call's length")
}

func TestBindEmptyUnresolved(t *testing.T) {
	g, l := newBoundGraph(t, engine.ElementInt64, engine.ElementInt64, -1, -1)
	require.ErrorIs(t, Bind(g, l, nil, nil), ErrEmptySequence)
}

func TestBindEmptyResolvedPadsAll(t *testing.T) {
	g, l := newBoundGraph(t, engine.ElementInt32, engine.ElementInt32, 1, 3)
	require.NoError(t, Bind(g, l, []int32{}, []int32{}))
	assert.Equal(t, []int64{0, 0, 0}, asInt64(t, g.Buffer(0)))
}

func TestBindWithoutMaskSlot(t *testing.T) {
	g := enginetest.NewGraph(enginetest.Slot("input_ids", engine.ElementInt32, 1, 3))
	l := Resolve(g.Inputs())
	require.NoError(t, Bind(g, l, []int32{1, 2}, []int32{1, 1}))
	assert.Equal(t, []int64{1, 2, 0}, asInt64(t, g.Buffer(0)))
}

func TestBindNoTokenInput(t *testing.T) {
	g := enginetest.NewGraph()
	require.ErrorIs(t, Bind(g, Resolve(nil), []int32{1}, []int32{1}), ErrNoTokenInput)
}

func TestSequenceDims(t *testing.T) {
	assert.Equal(t, []int64{1, 9}, SequenceDims([]int64{-1, -1}, 9))
	assert.Equal(t, []int64{9}, SequenceDims([]int64{-1}, 9))
	assert.Equal(t, []int64{9}, SequenceDims(nil, 9))
	assert.Equal(t, []int64{2, 9, 1}, SequenceDims([]int64{2, -1, -1}, 9))
}
