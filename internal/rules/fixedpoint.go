package rules

import "math/big"

// Fixed-point arithmetic for ratio comparisons. All divisions truncate
// (big.Int Quo), on both sides of every comparison, so rounding bias
// cannot differ between the pre and post legs.

var (
	// scale is the fixed-point scale for rate computations.
	scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// bpsDenominator converts a ratio into basis points.
	bpsDenominator = big.NewInt(10_000)
)

// scaledRatio computes num*1e18/den with truncating division.
// Returns nil when den is zero: an uninitialized resource has no rate.
func scaledRatio(num, den *big.Int) *big.Int {
	if den.Sign() == 0 {
		return nil
	}
	out := new(big.Int).Mul(num, scale)
	return out.Quo(out, den)
}

// driftBps computes |post-pre| * 10000 / pre with truncating division.
//
// The pre value is the denominator on purpose: the detection threshold
// is symmetric in absolute terms, which makes increases and decreases
// slightly asymmetric in relative terms. Known and accepted.
//
// Returns nil when pre is zero (no baseline to compare against).
func driftBps(pre, post *big.Int) *big.Int {
	if pre.Sign() == 0 {
		return nil
	}
	diff := new(big.Int).Sub(post, pre)
	diff.Abs(diff)
	diff.Mul(diff, bpsDenominator)
	return diff.Quo(diff, pre)
}
