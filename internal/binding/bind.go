package binding

import (
	"errors"
	"fmt"

	"github.com/straja-ai/aidetect/internal/engine"
)

var (
	// ErrNoTokenInput is returned when the layout has no token-id slot.
	ErrNoTokenInput = errors.New("no token ids input resolved")
	// ErrEmptySequence is returned when the effective sequence length is zero.
	ErrEmptySequence = errors.New("empty token sequence and no declared sequence length")
)

// EffectiveSeqLen is the length every bound tensor has for one call: the
// layout's declared length, or the caller's length when undeclared.
func EffectiveSeqLen(l Layout, n int) int {
	if l.SeqLen > 0 {
		return l.SeqLen
	}
	return n
}

// Bind writes ids and mask into the graph's resolved input slots. Sequences
// shorter than the effective length are zero-padded at the tail; longer
// sequences are truncated at the tail without error.
//
// The layout must come from Resolve over g's own inputs.
func Bind(g engine.Graph, l Layout, ids, mask []int32) error {
	if len(ids) != len(mask) {
		return fmt.Errorf("%w: %d ids, %d mask", engine.ErrLengthMismatch, len(ids), len(mask))
	}
	if l.TokenIDs < 0 {
		return ErrNoTokenInput
	}
	n := EffectiveSeqLen(l, len(ids))
	if n == 0 {
		return ErrEmptySequence
	}
	// Both slot types are checked before any buffer is resized or written.
	if err := checkElement(g, l.TokenIDs, tokenElements); err != nil {
		return fmt.Errorf("bind input_ids: %w", err)
	}
	if l.AttentionMask >= 0 {
		if err := checkElement(g, l.AttentionMask, maskElements); err != nil {
			return fmt.Errorf("bind attention_mask: %w", err)
		}
	}

	if err := bindSlot(g, l.TokenIDs, n, tokenWriter{src: ids, n: n}); err != nil {
		return fmt.Errorf("bind input_ids: %w", err)
	}
	if l.AttentionMask < 0 {
		return nil
	}
	if err := bindSlot(g, l.AttentionMask, n, maskWriter{src: mask, n: n}); err != nil {
		return fmt.Errorf("bind attention_mask: %w", err)
	}
	return nil
}

var (
	tokenElements = []engine.ElementType{engine.ElementInt16, engine.ElementInt32, engine.ElementInt64}
	maskElements  = []engine.ElementType{engine.ElementInt32, engine.ElementInt64, engine.ElementUint8}
)

func checkElement(g engine.Graph, index int, allowed []engine.ElementType) error {
	inputs := g.Inputs()
	if index >= len(inputs) {
		return fmt.Errorf("input index %d out of range", index)
	}
	e := inputs[index].Element
	for _, a := range allowed {
		if e == a {
			return nil
		}
	}
	return engine.Unsupported(e)
}

func bindSlot(g engine.Graph, index, n int, w engine.Visitor) error {
	buf, err := g.Input(index)
	if err != nil {
		return err
	}
	if buf.Len() != n {
		dims := SequenceDims(g.Inputs()[index].Dims, n)
		if err := g.Resize(index, dims); err != nil {
			return fmt.Errorf("resize to %v: %w", dims, err)
		}
		if buf, err = g.Input(index); err != nil {
			return err
		}
	}
	return buf.Accept(w)
}

// SequenceDims returns declared dims with the sequence dim set to n and every
// other dynamic dim set to 1. The sequence dim is dim 1 for rank >= 2 and
// dim 0 for rank 1.
func SequenceDims(declared []int64, n int) []int64 {
	if len(declared) == 0 {
		return []int64{int64(n)}
	}
	dims := engine.ConcreteDims(declared)
	if len(dims) == 1 {
		dims[0] = int64(n)
	} else {
		dims[1] = int64(n)
	}
	return dims
}

type integer interface {
	~int16 | ~int32 | ~int64 | ~uint8
}

// fill writes src[i] for i < len(src) and zero elsewhere over dst[:n], then
// zeroes dst[n:].
func fill[T integer](dst []T, src []int32, n int) {
	for i := range dst {
		var v T
		if i < n && i < len(src) {
			v = T(src[i])
		}
		dst[i] = v
	}
}

// tokenWriter accepts 16, 32 and 64-bit signed token ids.
type tokenWriter struct {
	src []int32
	n   int
}

func (w tokenWriter) VisitInt16(d []int16) error {
	fill(d, w.src, w.n)
	return nil
}

func (w tokenWriter) VisitInt32(d []int32) error {
	fill(d, w.src, w.n)
	return nil
}

func (w tokenWriter) VisitInt64(d []int64) error {
	fill(d, w.src, w.n)
	return nil
}

func (w tokenWriter) VisitUint8([]uint8) error {
	return engine.Unsupported(engine.ElementUint8)
}

func (w tokenWriter) VisitFloat32([]float32) error {
	return engine.Unsupported(engine.ElementFloat32)
}

// maskWriter accepts 32 and 64-bit signed or unsigned byte masks.
type maskWriter struct {
	src []int32
	n   int
}

func (w maskWriter) VisitInt16([]int16) error {
	return engine.Unsupported(engine.ElementInt16)
}

func (w maskWriter) VisitInt32(d []int32) error {
	fill(d, w.src, w.n)
	return nil
}

func (w maskWriter) VisitInt64(d []int64) error {
	fill(d, w.src, w.n)
	return nil
}

func (w maskWriter) VisitUint8(d []uint8) error {
	fill(d, w.src, w.n)
	return nil
}

func (w maskWriter) VisitFloat32([]float32) error {
	return engine.Unsupported(engine.ElementFloat32)
}

var (
	_ engine.Visitor = tokenWriter{}
	_ engine.Visitor = maskWriter{}
)
