// Package onnx loads models into ONNX Runtime and exposes them as engine.Graph.
package onnx

import (
	"errors"
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/straja-ai/aidetect/internal/engine"
)

// Fixed parallelism budget for low-memory hosts.
const (
	intraOpThreads = 2
	interOpThreads = 1
)

// Loader builds ONNX Runtime graphs.
type Loader struct {
	// LibraryPath points at the onnxruntime shared library. Empty means
	// ONNXRUNTIME_SHARED_LIBRARY_PATH or a probe of common locations.
	LibraryPath string

	log *zap.Logger
}

var _ engine.Loader = (*Loader)(nil)

// NewLoader returns a Loader. A nil logger discards logs.
func NewLoader(libraryPath string, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{LibraryPath: libraryPath, log: log.Named("onnx")}
}

// Inspect reads the declared inputs and outputs without building a session.
func (l *Loader) Inspect(path string) (inputs, outputs []engine.SlotInfo, err error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("%w: model file missing at %s: %v", engine.ErrLoad, path, err)
	}
	if err := initRuntime(l.LibraryPath, path); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", engine.ErrLoad, err)
	}
	in, out, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read model info: %v", engine.ErrLoad, err)
	}
	return slotInfos(in), slotInfos(out), nil
}

// Load builds a session for the model at path and allocates one tensor per
// declared input. Either a usable graph or an error is returned, never both.
func (l *Loader) Load(path string) (engine.Graph, error) {
	inputs, outputs, err := l.Inspect(path)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: model declares no outputs", engine.ErrBuild)
	}

	opts, err := newSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrBuild, err)
	}

	session, err := ort.NewDynamicAdvancedSession(path, names(inputs), names(outputs), opts)
	if err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("%w: create onnx session: %v", engine.ErrBuild, err)
	}

	g := &graph{
		session: session,
		opts:    opts,
		inputs:  inputs,
		outputs: outputs,
		values:  make([]ort.Value, len(inputs)),
		buffers: make([]engine.Buffer, len(inputs)),
	}
	for i, in := range inputs {
		v, buf, err := allocate(in.Element, engine.ConcreteDims(in.Dims))
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("%w: input %s: %v", engine.ErrAllocation, in.Name, err)
		}
		g.values[i], g.buffers[i] = v, buf
	}

	l.log.Debug("model loaded",
		zap.String("path", path),
		zap.Stringers("inputs", inputs),
		zap.Stringers("outputs", outputs),
		zap.Int("intra_threads", intraOpThreads),
	)
	return g, nil
}

func newSessionOptions() (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	if err := opts.SetIntraOpNumThreads(intraOpThreads); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("set intra threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(interOpThreads); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("set inter threads: %w", err)
	}
	return opts, nil
}

type graph struct {
	session *ort.DynamicAdvancedSession
	opts    *ort.SessionOptions
	inputs  []engine.SlotInfo
	outputs []engine.SlotInfo
	values  []ort.Value
	buffers []engine.Buffer
	results []ort.Value
}

func (g *graph) Inputs() []engine.SlotInfo { return g.inputs }
func (g *graph) Outputs() []engine.SlotInfo { return g.outputs }

func (g *graph) Input(index int) (engine.Buffer, error) {
	if g.session == nil {
		return nil, engine.ErrUninitialized
	}
	if index < 0 || index >= len(g.buffers) {
		return nil, fmt.Errorf("input index %d out of range", index)
	}
	return g.buffers[index], nil
}

func (g *graph) Resize(index int, dims []int64) error {
	if g.session == nil {
		return engine.ErrUninitialized
	}
	if index < 0 || index >= len(g.inputs) {
		return fmt.Errorf("input index %d out of range", index)
	}
	if err := checkShape(g.inputs[index].Dims, dims); err != nil {
		return err
	}
	v, buf, err := allocate(g.inputs[index].Element, dims)
	if err != nil {
		return fmt.Errorf("%w: input %s: %v", engine.ErrAllocation, g.inputs[index].Name, err)
	}
	if old := g.values[index]; old != nil {
		old.Destroy()
	}
	g.values[index], g.buffers[index] = v, buf
	return nil
}

func (g *graph) Invoke() error {
	if g.session == nil {
		return engine.ErrUninitialized
	}
	g.releaseResults()
	results := make([]ort.Value, len(g.outputs))
	if err := g.session.Run(g.values, results); err != nil {
		destroyAll(results)
		return fmt.Errorf("%w: onnx run: %v", engine.ErrExecution, err)
	}
	g.results = results
	return nil
}

func (g *graph) Output(index int) (engine.Buffer, error) {
	if index < 0 || index >= len(g.results) || g.results[index] == nil {
		return nil, fmt.Errorf("%w: output %d not available", engine.ErrExecution, index)
	}
	switch t := g.results[index].(type) {
	case *ort.Tensor[float32]:
		return engine.Float32Buffer(t.GetData()), nil
	case *ort.Tensor[int64]:
		return engine.Int64Buffer(t.GetData()), nil
	case *ort.Tensor[int32]:
		return engine.Int32Buffer(t.GetData()), nil
	case *ort.Tensor[int16]:
		return engine.Int16Buffer(t.GetData()), nil
	case *ort.Tensor[uint8]:
		return engine.Uint8Buffer(t.GetData()), nil
	}
	return nil, engine.Unsupported(g.outputs[index].Element)
}

func (g *graph) Close() error {
	g.releaseResults()
	destroyAll(g.values)
	g.values, g.buffers = nil, nil
	var err error
	if g.session != nil {
		err = g.session.Destroy()
		g.session = nil
	}
	if g.opts != nil {
		err = errors.Join(err, g.opts.Destroy())
		g.opts = nil
	}
	return err
}

func (g *graph) releaseResults() {
	destroyAll(g.results)
	g.results = nil
}

func destroyAll(values []ort.Value) {
	for _, v := range values {
		if v != nil {
			v.Destroy()
		}
	}
}

// checkShape rejects dims that change the rank or a fixed declared dim.
func checkShape(declared, dims []int64) error {
	if len(declared) != len(dims) {
		return fmt.Errorf("%w: rank %d, declared %d", engine.ErrShape, len(dims), len(declared))
	}
	for i, d := range dims {
		if d <= 0 {
			return fmt.Errorf("%w: dim %d must be positive, got %d", engine.ErrShape, i, d)
		}
		if declared[i] > 0 && declared[i] != d {
			return fmt.Errorf("%w: dim %d fixed at %d, got %d", engine.ErrShape, i, declared[i], d)
		}
	}
	return nil
}

func allocate(e engine.ElementType, dims []int64) (ort.Value, engine.Buffer, error) {
	shape := ort.NewShape(dims...)
	switch e {
	case engine.ElementInt16:
		t, err := ort.NewEmptyTensor[int16](shape)
		if err != nil {
			return nil, nil, err
		}
		return t, engine.Int16Buffer(t.GetData()), nil
	case engine.ElementInt32:
		t, err := ort.NewEmptyTensor[int32](shape)
		if err != nil {
			return nil, nil, err
		}
		return t, engine.Int32Buffer(t.GetData()), nil
	case engine.ElementInt64:
		t, err := ort.NewEmptyTensor[int64](shape)
		if err != nil {
			return nil, nil, err
		}
		return t, engine.Int64Buffer(t.GetData()), nil
	case engine.ElementUint8:
		t, err := ort.NewEmptyTensor[uint8](shape)
		if err != nil {
			return nil, nil, err
		}
		return t, engine.Uint8Buffer(t.GetData()), nil
	case engine.ElementFloat32:
		t, err := ort.NewEmptyTensor[float32](shape)
		if err != nil {
			return nil, nil, err
		}
		return t, engine.Float32Buffer(t.GetData()), nil
	}
	return nil, nil, engine.Unsupported(e)
}

func elementType(dt ort.TensorElementDataType) engine.ElementType {
	switch dt {
	case ort.TensorElementDataTypeInt16:
		return engine.ElementInt16
	case ort.TensorElementDataTypeInt32:
		return engine.ElementInt32
	case ort.TensorElementDataTypeInt64:
		return engine.ElementInt64
	case ort.TensorElementDataTypeUint8:
		return engine.ElementUint8
	case ort.TensorElementDataTypeFloat:
		return engine.ElementFloat32
	}
	return engine.ElementUnknown
}

func slotInfos(infos []ort.InputOutputInfo) []engine.SlotInfo {
	out := make([]engine.SlotInfo, len(infos))
	for i, info := range infos {
		out[i] = engine.SlotInfo{
			Name:    info.Name,
			Dims:    append([]int64(nil), info.Dimensions...),
			Element: elementType(info.DataType),
		}
	}
	return out
}

func names(slots []engine.SlotInfo) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Name
	}
	return out
}
