// Package exitcodes defines the standard exit codes used by lilwil.
package exitcodes

// Exit code constants used by lilwil
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when every executed test unit passes
// * TestFailure (1): Used when one or more test units record a failure or exception
// * RuntimeErr (2): Used for runtime errors such as bad selections, engine failures or unwritable reports
// * Interrupted (130): Used when the run is stopped by an interrupt signal
const (
	Success     = 0   // All tests pass
	TestFailure = 1   // Test failures
	RuntimeErr  = 2   // Runtime errors
	Interrupted = 130 // Interrupted by signal
)
