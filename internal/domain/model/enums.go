package model

// BreachStatus records the outcome of the most recent breach check for a credential.
type BreachStatus string

const (
	BreachStatusUnknown  BreachStatus = "unknown"
	BreachStatusClean    BreachStatus = "clean"
	BreachStatusBreached BreachStatus = "breached"
)

// ImportOutcome distinguishes an import that ran from one that had nothing to read.
type ImportOutcome string

const (
	// ImportOutcomeNoSource means no credential store is configured for the
	// selected browser. It is not an error.
	ImportOutcomeNoSource  ImportOutcome = "no_source"
	ImportOutcomeCompleted ImportOutcome = "completed"
)
