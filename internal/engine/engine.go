//go:generate go run go.uber.org/mock/mockgen -source=engine.go -destination=mocks/mock_engine.go -package=mocks

// Package engine defines the contract between the detector core and the
// inference runtime that executes a serialized model graph.
//
// A Graph is the loaded, executable form of one model file with its input
// buffers already allocated. The core writes into those buffers, calls
// Invoke, and reads the outputs back. Nothing in this package knows about
// tokens, masks or probabilities.
package engine

import "fmt"

// ElementType is the native element width of a tensor slot.
type ElementType int

const (
	ElementUnknown ElementType = iota
	ElementInt16
	ElementInt32
	ElementInt64
	ElementUint8
	ElementFloat32
)

func (e ElementType) String() string {
	switch e {
	case ElementInt16:
		return "int16"
	case ElementInt32:
		return "int32"
	case ElementInt64:
		return "int64"
	case ElementUint8:
		return "uint8"
	case ElementFloat32:
		return "float32"
	default:
		return "unknown"
	}
}

// MarshalText renders the element type name.
func (e ElementType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText parses a name produced by String.
func (e *ElementType) UnmarshalText(text []byte) error {
	for c := ElementUnknown; c <= ElementFloat32; c++ {
		if c.String() == string(text) {
			*e = c
			return nil
		}
	}
	return fmt.Errorf("unknown element type %q", text)
}

// SlotInfo describes one declared input or output of a graph.
// Non-positive dims are dynamic.
type SlotInfo struct {
	Name    string      `json:"name" yaml:"name"`
	Dims    []int64     `json:"dims" yaml:"dims,flow"`
	Element ElementType `json:"element" yaml:"element"`
}

// Rank returns the number of declared dims.
func (s SlotInfo) Rank() int {
	return len(s.Dims)
}

// Dim returns dim i, or -1 when the slot has fewer dims.
func (s SlotInfo) Dim(i int) int64 {
	if i < 0 || i >= len(s.Dims) {
		return -1
	}
	return s.Dims[i]
}

func (s SlotInfo) String() string {
	return fmt.Sprintf("%s%v:%s", s.Name, s.Dims, s.Element)
}

// Graph is an executable model session with allocated buffers.
//
// Buffers returned by Input stay valid until the next Resize of the same slot
// or Close. Buffers returned by Output stay valid until the next Invoke or
// Close. Implementations are not safe for concurrent use.
type Graph interface {
	// Inputs returns the declared inputs in session order.
	Inputs() []SlotInfo
	// Outputs returns the declared outputs in session order.
	Outputs() []SlotInfo
	// Input returns the writable buffer bound to input index.
	Input(index int) (Buffer, error)
	// Resize reallocates input index with the given dims.
	Resize(index int, dims []int64) error
	// Invoke executes the graph once.
	Invoke() error
	// Output returns output index of the last Invoke.
	Output(index int) (Buffer, error)
	// Close releases every resource held by the graph.
	Close() error
}

// Loader builds a Graph from a model file. A Loader never returns a partially
// initialized Graph.
type Loader interface {
	Load(path string) (Graph, error)
}

// NumElements returns the element count of a fully static shape, or -1 when
// any dim is dynamic.
func NumElements(dims []int64) int {
	n := 1
	for _, d := range dims {
		if d <= 0 {
			return -1
		}
		n *= int(d)
	}
	return n
}

// ConcreteDims copies dims, replacing every dynamic dim with 1.
func ConcreteDims(dims []int64) []int64 {
	out := make([]int64, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		out[i] = d
	}
	return out
}
