package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumElements(t *testing.T) {
	assert.Equal(t, 128, NumElements([]int64{1, 128}))
	assert.Equal(t, 1, NumElements(nil))
	assert.Equal(t, -1, NumElements([]int64{-1, 128}))
	assert.Equal(t, -1, NumElements([]int64{1, 0}))
}

func TestConcreteDims(t *testing.T) {
	declared := []int64{-1, 128, 0}
	got := ConcreteDims(declared)
	assert.Equal(t, []int64{1, 128, 1}, got)
	assert.Equal(t, []int64{-1, 128, 0}, declared)
}

func TestNewBufferCoversEveryWidth(t *testing.T) {
	for _, e := range []ElementType{ElementInt16, ElementInt32, ElementInt64, ElementUint8, ElementFloat32} {
		buf, err := NewBuffer(e, 3)
		require.NoError(t, err, e.String())
		assert.Equal(t, e, buf.Element())
		assert.Equal(t, 3, buf.Len())
	}
	_, err := NewBuffer(ElementUnknown, 3)
	require.ErrorIs(t, err, ErrUnsupportedTensorType)
}

type countingVisitor struct{ seen []ElementType }

func (c *countingVisitor) VisitInt16([]int16) error {
	c.seen = append(c.seen, ElementInt16)
	return nil
}

func (c *countingVisitor) VisitInt32([]int32) error {
	c.seen = append(c.seen, ElementInt32)
	return nil
}

func (c *countingVisitor) VisitInt64([]int64) error {
	c.seen = append(c.seen, ElementInt64)
	return nil
}

func (c *countingVisitor) VisitUint8([]uint8) error {
	c.seen = append(c.seen, ElementUint8)
	return nil
}

func (c *countingVisitor) VisitFloat32([]float32) error {
	c.seen = append(c.seen, ElementFloat32)
	return nil
}

func TestAcceptDispatchesByWidth(t *testing.T) {
	v := &countingVisitor{}
	for _, b := range []Buffer{Int16Buffer{}, Int32Buffer{}, Int64Buffer{}, Uint8Buffer{}, Float32Buffer{}} {
		require.NoError(t, b.Accept(v))
	}
	assert.Equal(t, []ElementType{ElementInt16, ElementInt32, ElementInt64, ElementUint8, ElementFloat32}, v.seen)
}

func TestSlotInfoDim(t *testing.T) {
	s := SlotInfo{Name: "input_ids", Dims: []int64{1, 64}, Element: ElementInt32}
	assert.Equal(t, 2, s.Rank())
	assert.Equal(t, int64(64), s.Dim(1))
	assert.Equal(t, int64(-1), s.Dim(2))
	assert.Equal(t, "input_ids[1 64]:int32", s.String())
}

func TestCode(t *testing.T) {
	assert.Equal(t, "ok", Code(nil))
	assert.Equal(t, "length_mismatch", Code(fmt.Errorf("bind: %w", ErrLengthMismatch)))
	assert.Equal(t, "unsupported_tensor_type", Code(Unsupported(ElementUnknown)))
	assert.Equal(t, "load", Code(fmt.Errorf("%w: missing", ErrLoad)))
	assert.Equal(t, "execution", Code(ErrExecution))
	assert.Equal(t, "internal", Code(errors.New("boom")))
}

func TestElementTypeTextRoundTrip(t *testing.T) {
	for _, e := range []ElementType{ElementUnknown, ElementInt16, ElementInt32, ElementInt64, ElementUint8, ElementFloat32} {
		text, err := e.MarshalText()
		require.NoError(t, err)
		var back ElementType
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, e, back)
	}

	var slot SlotInfo
	require.NoError(t, json.Unmarshal([]byte(`{"name":"input_ids","dims":[1,128],"element":"int64"}`), &slot))
	assert.Equal(t, SlotInfo{Name: "input_ids", Dims: []int64{1, 128}, Element: ElementInt64}, slot)

	var bad ElementType
	require.Error(t, bad.UnmarshalText([]byte("bfloat16")))
}
