/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: errors.go
Description: Error taxonomy for the sflearn transducer learner. Every error carries
enough context (the offending word, table coordinates) to diagnose a failed run;
none of these errors is retried by the core.
*/

package interfaces

import "fmt"

// OracleError reports that the membership oracle failed to answer a query.
// The error is propagated to the caller of the learner, never retried.
type OracleError struct {
	Input Word
	Err   error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("membership oracle failed on input %s: %v", e.Input, e.Err)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}

// MalformedCounterexampleError reports that the equivalence oracle returned
// a counterexample on which the current hypothesis already agrees with the
// target output. This is a caller-contract violation and aborts the run.
type MalformedCounterexampleError struct {
	Input            Word
	HypothesisOutput Word
	TargetOutput     Word
}

func (e *MalformedCounterexampleError) Error() string {
	return fmt.Sprintf("malformed counterexample %s: hypothesis output %s agrees with target output %s",
		e.Input, e.HypothesisOutput, e.TargetOutput)
}

// NotClosedError reports that the hypothesis builder was invoked on a table
// that is not closed. This indicates a driver bug and is never expected in
// correct operation.
type NotClosedError struct {
	Escaping Word
}

func (e *NotClosedError) Error() string {
	return fmt.Sprintf("observation table is not closed: boundary row %s escapes", e.Escaping)
}

// NotConsistentError reports that the hypothesis builder was invoked on a
// table that is not consistent. This indicates a driver bug and is never
// expected in correct operation.
type NotConsistentError struct {
	Suffix Word
}

func (e *NotConsistentError) Error() string {
	return fmt.Sprintf("observation table is not consistent: suffix %s exposes a mismatch", e.Suffix)
}

// LookaheadOverflowError reports that lookahead growth for a state exceeded
// the configured safety bound. This signals either a non-deterministic
// target or an oracle bug.
type LookaheadOverflowError struct {
	State  Word // access sequence of the offending state
	Window int  // attempted window length
	Limit  int  // configured bound
}

func (e *LookaheadOverflowError) Error() string {
	return fmt.Sprintf("lookahead window %d at state %s exceeds configured bound %d",
		e.Window, e.State, e.Limit)
}
