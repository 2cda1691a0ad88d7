package model

// Config holds every tunable the Candidate Generator and Search Engine
// read, bound from viper/cobra flags at the CLI layer (see cmd/ and
// SPEC_FULL.md's AMBIENT STACK section) and passed down as plain values
// so neither package depends on viper directly.
type Config struct {
	// MinColumnUsage drops a (table, column) pair from candidate
	// generation if fewer than this many workload queries reference it
	// (§4.5 step 1).
	MinColumnUsage int

	// MaxIndexWidth bounds the combinatorial enumeration's column-tuple
	// width (§4.5 step 2).
	MaxIndexWidth int

	// MaxTextLength is the configured long-text threshold; a candidate
	// column averaging more than 0.4x this many characters is dropped
	// (§4.5 step 5).
	MaxTextLength int

	// Alpha weights the space term in the Pareto objective
	// score(C) = ln(cost) + Alpha*ln(space) (§4.6).
	Alpha float64

	// MinTimeImprovement is the minimum relative cost reduction a
	// candidate must offer to survive an iteration (§4.6 step 2c).
	MinTimeImprovement float64

	// MaxIndexSizeMB is the cumulative storage budget; negative disables
	// it (§6).
	MaxIndexSizeMB int64

	// MaxRuntimeSeconds bounds the Search Engine's wall-clock budget;
	// zero means unlimited (§4.6 step 4).
	MaxRuntimeSeconds float64
}

// DefaultConfig mirrors the spec's stated defaults (§4.6, §6).
func DefaultConfig() Config {
	return Config{
		MinColumnUsage:     1,
		MaxIndexWidth:      3,
		MaxTextLength:      255,
		Alpha:              2.0,
		MinTimeImprovement: 0.10,
		MaxIndexSizeMB:     -1,
		MaxRuntimeSeconds:  0,
	}
}
