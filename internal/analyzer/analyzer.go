// Package analyzer owns one loaded detector model and exposes the two
// analysis entry points: raw text through the legacy byte path and
// pre-tokenized ids through the resolved token/mask binding.
//
// An Analyzer is not safe for concurrent use. Callers that share one across
// goroutines must serialize every method call, including Reload.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/straja-ai/aidetect/internal/binding"
	"github.com/straja-ai/aidetect/internal/engine"
	"github.com/straja-ai/aidetect/internal/preprocess"
	"github.com/straja-ai/aidetect/internal/redact"
	"github.com/straja-ai/aidetect/internal/result"
	"github.com/straja-ai/aidetect/internal/telemetry"
)

// DefaultModelPath is loaded when New is called without a path.
const DefaultModelPath = "models/text_analysis_model.onnx"

const (
	entryText   = "text"
	entryTokens = "tokens"
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger. Analyzed text is never logged verbatim.
func WithLogger(log *zap.Logger) Option {
	return func(a *Analyzer) {
		if log != nil {
			a.log = log
		}
	}
}

// WithMetrics records analysis and reload metrics on p.
func WithMetrics(p *telemetry.Provider) Option {
	return func(a *Analyzer) {
		a.metrics = p
	}
}

// Analyzer is the detector facade. It holds at most one graph and the
// layout resolved from that graph's inputs.
type Analyzer struct {
	loader  engine.Loader
	log     *zap.Logger
	metrics *telemetry.Provider

	graph  engine.Graph
	layout binding.Layout
	path   string
}

// New loads the model at path, or DefaultModelPath when path is empty.
// A load failure is returned as is; there is no fallback model.
func New(loader engine.Loader, path string, opts ...Option) (*Analyzer, error) {
	if path == "" {
		path = DefaultModelPath
	}
	a := &Analyzer{loader: loader, log: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.Named("analyzer")

	g, layout, err := a.open(path)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", redact.URL(path), err)
	}
	a.graph, a.layout, a.path = g, layout, path
	a.log.Info("model loaded",
		redact.URLField("path", path),
		zap.Stringer("layout", layout),
	)
	return a, nil
}

func (a *Analyzer) open(path string) (engine.Graph, binding.Layout, error) {
	g, err := a.loader.Load(path)
	if err != nil {
		return nil, binding.Layout{}, err
	}
	return g, binding.Resolve(g.Inputs()), nil
}

// Layout returns the input layout of the current model.
func (a *Analyzer) Layout() binding.Layout {
	return a.layout
}

// ModelPath returns the path of the current model.
func (a *Analyzer) ModelPath() string {
	return a.path
}

// Outputs returns the declared outputs of the current model, or nil when
// closed.
func (a *Analyzer) Outputs() []engine.SlotInfo {
	if a.graph == nil {
		return nil
	}
	return a.graph.Outputs()
}

// Loaded reports whether a model is loaded.
func (a *Analyzer) Loaded() bool {
	return a.graph != nil
}

// AnalyzeText scores text through the legacy byte path. Input slot 0 must be
// float32. On error the returned Result is result.Safe().
func (a *Analyzer) AnalyzeText(text string) (res result.Result, err error) {
	start := time.Now()
	defer func() {
		a.observe(entryText, start, res, err, redact.TextField("text", text))
	}()

	if a.graph == nil {
		return result.Safe(), engine.ErrUninitialized
	}
	if err := a.bindText(text); err != nil {
		return result.Safe(), err
	}
	return a.invoke()
}

func (a *Analyzer) bindText(text string) error {
	inputs := a.graph.Inputs()
	if len(inputs) == 0 {
		return fmt.Errorf("%w: model declares no inputs", engine.ErrShape)
	}
	slot := inputs[0]
	if slot.Element != engine.ElementFloat32 {
		return fmt.Errorf("legacy input %s: %w", slot.Name, engine.Unsupported(slot.Element))
	}

	buf, err := a.graph.Input(0)
	if err != nil {
		return err
	}
	if buf.Len() != preprocess.Width && engine.NumElements(slot.Dims) < 0 {
		dims := binding.SequenceDims(slot.Dims, preprocess.Width)
		if err := a.graph.Resize(0, dims); err != nil {
			return fmt.Errorf("resize legacy input to %v: %w", dims, err)
		}
		if buf, err = a.graph.Input(0); err != nil {
			return err
		}
	}
	f, ok := buf.(engine.Float32Buffer)
	if !ok {
		return engine.Unsupported(buf.Element())
	}
	// A fixed slot of another width gets the same tail policy as the vector.
	n := copy(f, preprocess.Bytes(text))
	clear(f[n:])
	return nil
}

// AnalyzeTokenIDs scores a pre-tokenized sequence. ids and mask must have the
// same length. On error the returned Result is result.Safe().
func (a *Analyzer) AnalyzeTokenIDs(ids, mask []int32) (res result.Result, err error) {
	start := time.Now()
	defer func() {
		a.observe(entryTokens, start, res, err, zap.Int("tokens", len(ids)))
	}()

	if len(ids) != len(mask) {
		return result.Safe(), fmt.Errorf("%w: %d ids, %d mask", engine.ErrLengthMismatch, len(ids), len(mask))
	}
	if a.graph == nil {
		return result.Safe(), engine.ErrUninitialized
	}
	if err := binding.Bind(a.graph, a.layout, ids, mask); err != nil {
		return result.Safe(), err
	}
	return a.invoke()
}

func (a *Analyzer) invoke() (result.Result, error) {
	if err := a.graph.Invoke(); err != nil {
		return result.Safe(), err
	}
	out, err := a.graph.Output(0)
	if err != nil {
		return result.Safe(), err
	}
	var sr scoreReader
	if err := out.Accept(&sr); err != nil {
		return result.Safe(), fmt.Errorf("output 0: %w", err)
	}
	return result.Interpret(sr.score), nil
}

// Reload replaces the current model with the one at path. The new graph is
// fully loaded and resolved before the swap; on failure the current model
// stays in place and keeps serving.
func (a *Analyzer) Reload(path string) error {
	ctx := context.Background()
	g, layout, err := a.open(path)
	if err != nil {
		a.log.Warn("model reload failed; keeping current model",
			redact.URLField("path", path),
			redact.URLField("current", a.path),
			zap.Error(err),
		)
		a.metrics.RecordReload(ctx, engine.Code(err))
		return fmt.Errorf("reload %s: %w", redact.URL(path), err)
	}

	old := a.graph
	a.graph, a.layout, a.path = g, layout, path
	if old != nil && old != g {
		if err := old.Close(); err != nil {
			a.log.Warn("close previous model", zap.Error(err))
		}
	}
	a.log.Info("model reloaded",
		redact.URLField("path", path),
		zap.Stringer("layout", layout),
	)
	a.metrics.RecordReload(ctx, engine.Code(nil), telemetry.LayoutAttributes(len(layout.Slots), layout.Resolved())...)
	return nil
}

// Close releases the current model. Analysis after Close fails with
// engine.ErrUninitialized until a successful Reload.
func (a *Analyzer) Close() error {
	if a.graph == nil {
		return nil
	}
	err := a.graph.Close()
	a.graph, a.layout = nil, binding.Resolve(nil)
	return err
}

func (a *Analyzer) observe(entry string, start time.Time, res result.Result, err error, input zap.Field) {
	elapsed := time.Since(start)
	a.metrics.RecordAnalysis(context.Background(), entry, engine.Code(err), float64(elapsed.Microseconds())/1000)
	if err != nil {
		a.log.Warn("analysis failed", zap.String("entry", entry), input, zap.Error(err))
		return
	}
	a.log.Debug("analysis",
		zap.String("entry", entry),
		input,
		zap.Float64("ai_probability", res.AIProbability),
		zap.Duration("elapsed", elapsed),
	)
}

// scoreReader takes element 0 of a float32 output as the raw score.
type scoreReader struct {
	score float32
}

func (r *scoreReader) VisitFloat32(d []float32) error {
	if len(d) == 0 {
		return fmt.Errorf("%w: empty output", engine.ErrExecution)
	}
	r.score = d[0]
	return nil
}

func (r *scoreReader) VisitInt16([]int16) error {
	return engine.Unsupported(engine.ElementInt16)
}

func (r *scoreReader) VisitInt32([]int32) error {
	return engine.Unsupported(engine.ElementInt32)
}

func (r *scoreReader) VisitInt64([]int64) error {
	return engine.Unsupported(engine.ElementInt64)
}

func (r *scoreReader) VisitUint8([]uint8) error {
	return engine.Unsupported(engine.ElementUint8)
}

var _ engine.Visitor = (*scoreReader)(nil)
