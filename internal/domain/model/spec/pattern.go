package spec

// PatternType identifies the topology a specification executes as.
type PatternType string

const (
	PatternChain    PatternType = "chain"
	PatternWorkflow PatternType = "workflow"
	PatternParallel PatternType = "parallel"
	PatternRouting  PatternType = "routing"
	PatternUnknown  PatternType = ""
)

// String returns the string representation of the pattern type
func (p PatternType) String() string {
	return string(p)
}

// IsValid returns true if the pattern type is one the engine knows about
func (p PatternType) IsValid() bool {
	switch p {
	case PatternChain, PatternWorkflow, PatternParallel, PatternRouting:
		return true
	default:
		return false
	}
}

// SupportedPatterns lists every pattern type the engine can execute
func SupportedPatterns() []PatternType {
	return []PatternType{PatternChain, PatternWorkflow, PatternParallel, PatternRouting}
}
