// Package enginetest provides an in-memory engine.Graph for tests that must
// not depend on a native inference runtime.
package enginetest

import (
	"fmt"
	"sync"

	"github.com/straja-ai/aidetect/internal/engine"
)

// Graph is a fake engine.Graph. Invoke copies Score into output 0 unless
// InvokeErr is set. Inputs stay inspectable after Close.
type Graph struct {
	Score     float32
	InvokeErr error
	// OutputElement overrides the element type of output 0.
	OutputElement engine.ElementType
	// OutputLen overrides the output length; 0 means 1, negative means empty.
	OutputLen int
	// OnInvoke runs before the score is written, with the bound inputs.
	OnInvoke func(inputs []engine.Buffer) (float32, error)

	inputs  []engine.SlotInfo
	buffers []engine.Buffer
	output  engine.Buffer

	mu          sync.Mutex
	invocations int
	closed      bool
}

// NewGraph allocates buffers for every input using ConcreteDims.
func NewGraph(inputs ...engine.SlotInfo) *Graph {
	g := &Graph{inputs: inputs, buffers: make([]engine.Buffer, len(inputs))}
	for i, in := range inputs {
		n := engine.NumElements(engine.ConcreteDims(in.Dims))
		buf, err := engine.NewBuffer(in.Element, n)
		if err != nil {
			continue
		}
		g.buffers[i] = buf
	}
	return g
}

// Slot is shorthand for an engine.SlotInfo literal.
func Slot(name string, e engine.ElementType, dims ...int64) engine.SlotInfo {
	return engine.SlotInfo{Name: name, Dims: dims, Element: e}
}

func (g *Graph) Inputs() []engine.SlotInfo { return g.inputs }

func (g *Graph) Outputs() []engine.SlotInfo {
	return []engine.SlotInfo{Slot("output_0", g.outputElement(), 1, 1)}
}

func (g *Graph) Input(index int) (engine.Buffer, error) {
	if index < 0 || index >= len(g.inputs) {
		return nil, fmt.Errorf("input index %d out of range", index)
	}
	if g.buffers[index] == nil {
		return nil, engine.Unsupported(g.inputs[index].Element)
	}
	return g.buffers[index], nil
}

func (g *Graph) Resize(index int, dims []int64) error {
	if index < 0 || index >= len(g.inputs) {
		return fmt.Errorf("input index %d out of range", index)
	}
	declared := g.inputs[index].Dims
	if len(declared) != len(dims) {
		return fmt.Errorf("%w: rank %d, want %d", engine.ErrShape, len(dims), len(declared))
	}
	for i, d := range declared {
		if d > 0 && d != dims[i] {
			return fmt.Errorf("%w: dim %d fixed at %d", engine.ErrShape, i, d)
		}
	}
	n := engine.NumElements(dims)
	if n < 0 {
		return fmt.Errorf("%w: dynamic dims %v", engine.ErrShape, dims)
	}
	buf, err := engine.NewBuffer(g.inputs[index].Element, n)
	if err != nil {
		return err
	}
	g.buffers[index] = buf
	return nil
}

func (g *Graph) Invoke() error {
	g.mu.Lock()
	g.invocations++
	g.mu.Unlock()

	score := g.Score
	if g.OnInvoke != nil {
		s, err := g.OnInvoke(g.buffers)
		if err != nil {
			return fmt.Errorf("%w: %v", engine.ErrExecution, err)
		}
		score = s
	}
	if g.InvokeErr != nil {
		return fmt.Errorf("%w: %v", engine.ErrExecution, g.InvokeErr)
	}
	n := g.OutputLen
	switch {
	case n == 0:
		n = 1
	case n < 0:
		n = 0
	}
	out, err := engine.NewBuffer(g.outputElement(), n)
	if err != nil {
		return err
	}
	if f, ok := out.(engine.Float32Buffer); ok && n > 0 {
		f[0] = score
	}
	g.output = out
	return nil
}

func (g *Graph) Output(index int) (engine.Buffer, error) {
	if index != 0 || g.output == nil {
		return nil, fmt.Errorf("%w: no output %d", engine.ErrExecution, index)
	}
	return g.output, nil
}

func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

// Invocations reports how many times Invoke ran.
func (g *Graph) Invocations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.invocations
}

// Closed reports whether Close was called.
func (g *Graph) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Buffer returns the current buffer of input index.
func (g *Graph) Buffer(index int) engine.Buffer {
	return g.buffers[index]
}

func (g *Graph) outputElement() engine.ElementType {
	if g.OutputElement == engine.ElementUnknown {
		return engine.ElementFloat32
	}
	return g.OutputElement
}

// Loader serves graphs by path. Unknown paths fail with engine.ErrLoad.
type Loader struct {
	Graphs map[string]*Graph
	Errs   map[string]error

	mu    sync.Mutex
	calls []string
}

func (l *Loader) Load(path string) (engine.Graph, error) {
	l.mu.Lock()
	l.calls = append(l.calls, path)
	l.mu.Unlock()

	if err, ok := l.Errs[path]; ok {
		return nil, err
	}
	g, ok := l.Graphs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s not found", engine.ErrLoad, path)
	}
	return g, nil
}

// Calls returns the paths passed to Load, in order.
func (l *Loader) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}
