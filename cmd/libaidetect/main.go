// Command libaidetect builds the C shared library:
//
//	go build -buildmode=c-shared -o libaidetect.so ./cmd/libaidetect
//
// Configuration is read from the file named by AIDETECT_CONFIG, with the
// usual AIDETECT_* environment overrides.
package main

/*
typedef struct {
	double aiProbability;
	double humanProbability;
} CAnalysisResult;
*/
import "C"

import (
	"context"
	"os"
	"unsafe"

	"go.uber.org/zap"

	"github.com/straja-ai/aidetect/internal/analyzer"
	"github.com/straja-ai/aidetect/internal/bootstrap"
	"github.com/straja-ai/aidetect/internal/boundary"
	"github.com/straja-ai/aidetect/internal/config"
	"github.com/straja-ai/aidetect/internal/result"
)

var (
	logger = newLogger()
	shared = boundary.New(newAnalyzer, logger)
)

func newLogger() *zap.Logger {
	cfg, err := config.Load(os.Getenv("AIDETECT_CONFIG"))
	if err != nil {
		return zap.NewNop()
	}
	log, err := cfg.Logging.NewLogger()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func newAnalyzer() (*analyzer.Analyzer, error) {
	cfg, err := config.Load(os.Getenv("AIDETECT_CONFIG"))
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	rt, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}
	return rt.Analyzer, nil
}

func toC(r result.Result) C.CAnalysisResult {
	return C.CAnalysisResult{
		aiProbability:    C.double(r.AIProbability),
		humanProbability: C.double(r.HumanProbability),
	}
}

//export initialize_analyzer
func initialize_analyzer() {
	_ = shared.Init()
}

//export analyzeText
func analyzeText(text *C.char) C.CAnalysisResult {
	return toC(shared.AnalyzeText(goText(text)))
}

//export analyzeTokenIds
func analyzeTokenIds(ids *C.int, mask *C.int, length C.int) C.CAnalysisResult {
	if ids == nil || mask == nil || length < 0 {
		return toC(result.Safe())
	}
	n := int(length)
	return toC(shared.AnalyzeTokenIDs(int32s(ids, n), int32s(mask, n)))
}

//export loadModelFromPath
func loadModelFromPath(path *C.char) C.int {
	if path == nil {
		return 0
	}
	if shared.LoadModelFromPath(C.GoString(path)) {
		return 1
	}
	return 0
}

//export teardown_analyzer
func teardown_analyzer() {
	shared.Teardown()
}

// goText treats NULL as the empty string.
func goText(p *C.char) string {
	if p == nil {
		return ""
	}
	return C.GoString(p)
}

// int32s copies n C ints so the caller may free its arrays on return.
func int32s(p *C.int, n int) []int32 {
	out := make([]int32, n)
	for i, v := range unsafe.Slice(p, n) {
		out[i] = int32(v)
	}
	return out
}

func main() {}
