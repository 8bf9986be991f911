package domain

import (
	"math/big"
	"time"
)

// EstimationResult is the outcome of one simulation call. It is immutable:
// getters return copies.
type EstimationResult struct {
	action      Action
	output      *big.Int
	perAsset    []*big.Int
	minOutput   *big.Int
	tolerance   uint32
	sequence    uint64
	estimatedAt time.Time
}

// NewEstimationResult copies its inputs. minOutput is the slippage-bounded
// output the trade must not fall below.
func NewEstimationResult(action Action, output *big.Int, perAsset []*big.Int, minOutput *big.Int, toleranceBps uint32, at time.Time) *EstimationResult {
	return &EstimationResult{
		action:      action,
		output:      copyInt(output),
		perAsset:    copyInts(perAsset),
		minOutput:   copyInt(minOutput),
		tolerance:   toleranceBps,
		estimatedAt: at,
	}
}

func (r *EstimationResult) Action() Action         { return r.action }
func (r *EstimationResult) Output() *big.Int       { return copyInt(r.output) }
func (r *EstimationResult) PerAsset() []*big.Int   { return copyInts(r.perAsset) }
func (r *EstimationResult) MinOutput() *big.Int    { return copyInt(r.minOutput) }
func (r *EstimationResult) ToleranceBps() uint32   { return r.tolerance }
func (r *EstimationResult) Sequence() uint64       { return r.sequence }
func (r *EstimationResult) EstimatedAt() time.Time { return r.estimatedAt }

// WithSequence returns a copy stamped with seq.
func (r *EstimationResult) WithSequence(seq uint64) *EstimationResult {
	c := *r
	c.sequence = seq
	return &c
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func copyInts(vs []*big.Int) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = copyInt(v)
	}
	return out
}

// EstimationSnapshot is the serializable view of a result. Amounts are
// base-unit integer strings.
type EstimationSnapshot struct {
	Action       Action    `json:"action" yaml:"action"`
	Output       string    `json:"output" yaml:"output"`
	PerAsset     []string  `json:"perAsset" yaml:"perAsset"`
	MinOutput    string    `json:"minOutput" yaml:"minOutput"`
	ToleranceBps uint32    `json:"toleranceBps" yaml:"toleranceBps"`
	Sequence     uint64    `json:"sequence" yaml:"sequence"`
	EstimatedAt  time.Time `json:"estimatedAt" yaml:"estimatedAt"`
}

func (r *EstimationResult) Snapshot() EstimationSnapshot {
	per := make([]string, len(r.perAsset))
	for i, v := range r.perAsset {
		per[i] = v.String()
	}
	return EstimationSnapshot{
		Action:       r.action,
		Output:       r.output.String(),
		PerAsset:     per,
		MinOutput:    r.minOutput.String(),
		ToleranceBps: r.tolerance,
		Sequence:     r.sequence,
		EstimatedAt:  r.estimatedAt,
	}
}
