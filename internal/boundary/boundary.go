// Package boundary is the error-free surface used by cross-language callers.
//
// A Boundary owns at most one Analyzer, created lazily on first use, and
// serializes every call to it. Analysis failures of any kind, including a
// failed initialization or a panic in the runtime, degrade to result.Safe();
// model loads report success as a bool.
package boundary

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/straja-ai/aidetect/internal/analyzer"
	"github.com/straja-ai/aidetect/internal/result"
)

// ErrPanic wraps a panic recovered inside the boundary.
var ErrPanic = errors.New("panic in analyzer")

// Factory builds the Analyzer on first use.
type Factory func() (*analyzer.Analyzer, error)

// Boundary is safe for concurrent use.
type Boundary struct {
	factory Factory
	log     *zap.Logger

	mu       sync.Mutex
	analyzer *analyzer.Analyzer
}

// New returns a Boundary that calls factory on first use. A nil logger
// discards logs.
func New(factory Factory, log *zap.Logger) *Boundary {
	if log == nil {
		log = zap.NewNop()
	}
	return &Boundary{factory: factory, log: log.Named("boundary")}
}

// Init builds the Analyzer if it does not exist yet.
func (b *Boundary) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.ensure()
	return err
}

// ensure must be called with mu held.
func (b *Boundary) ensure() (a *analyzer.Analyzer, err error) {
	if b.analyzer != nil {
		return b.analyzer, nil
	}
	if b.factory == nil {
		return nil, errors.New("no analyzer factory")
	}
	defer recoverInto(&err)
	a, err = b.factory()
	if err != nil {
		return nil, fmt.Errorf("initialize analyzer: %w", err)
	}
	b.analyzer = a
	return a, nil
}

// AnalyzeText never fails; any error yields result.Safe().
func (b *Boundary) AnalyzeText(text string) result.Result {
	return b.analyze("text", func(a *analyzer.Analyzer) (result.Result, error) {
		return a.AnalyzeText(text)
	})
}

// AnalyzeTokenIDs never fails; any error yields result.Safe().
func (b *Boundary) AnalyzeTokenIDs(ids, mask []int32) result.Result {
	return b.analyze("tokens", func(a *analyzer.Analyzer) (result.Result, error) {
		return a.AnalyzeTokenIDs(ids, mask)
	})
}

func (b *Boundary) analyze(entry string, fn func(*analyzer.Analyzer) (result.Result, error)) result.Result {
	res, err := b.call(func() (result.Result, error) {
		a, err := b.ensure()
		if err != nil {
			return result.Safe(), err
		}
		return fn(a)
	})
	if err != nil {
		b.log.Warn("analysis degraded to safe default", zap.String("entry", entry), zap.Error(err))
		return result.Safe()
	}
	return res
}

// LoadModelFromPath reloads the model. A Boundary that was never initialized
// builds its Analyzer first. On false the previous model stays active.
func (b *Boundary) LoadModelFromPath(path string) bool {
	_, err := b.call(func() (result.Result, error) {
		a, err := b.ensure()
		if err != nil {
			return result.Result{}, err
		}
		return result.Result{}, a.Reload(path)
	})
	if err != nil {
		b.log.Warn("model load failed", zap.Error(err))
		return false
	}
	return true
}

// Teardown closes the Analyzer. The next call initializes a fresh one.
func (b *Boundary) Teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.analyzer == nil {
		return
	}
	if err := b.analyzer.Close(); err != nil {
		b.log.Warn("close analyzer", zap.Error(err))
	}
	b.analyzer = nil
}

func (b *Boundary) call(fn func() (result.Result, error)) (res result.Result, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer recoverInto(&err)
	return fn()
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrPanic, r)
	}
}
