// Package result turns a raw model score into the two-class detection result.
package result

import "math"

// Result is the two-class outcome. HumanProbability is always derived from
// AIProbability so the pair sums to exactly 1.
type Result struct {
	AIProbability    float64 `json:"ai_probability" yaml:"ai_probability"`
	HumanProbability float64 `json:"human_probability" yaml:"human_probability"`
}

// Report is the percentage rendering of a Result.
type Report struct {
	AIDetection  float64 `json:"ai_detection" yaml:"ai_detection"`
	HumanWritten float64 `json:"human_written" yaml:"human_written"`
}

// Safe is the result returned when analysis cannot run.
func Safe() Result {
	return Result{AIProbability: 0, HumanProbability: 1}
}

// Interpret clamps raw to [0,1]. No softmax or calibration is applied; the
// model's first output channel is taken as the AI likelihood. NaN yields Safe.
func Interpret(raw float32) Result {
	ai := float64(raw)
	switch {
	case math.IsNaN(ai):
		return Safe()
	case ai < 0:
		ai = 0
	case ai > 1:
		ai = 1
	}
	return Result{AIProbability: ai, HumanProbability: 1 - ai}
}

// Report scales both probabilities to 0-100.
func (r Result) Report() Report {
	return Report{
		AIDetection:  r.AIProbability * 100,
		HumanWritten: r.HumanProbability * 100,
	}
}
