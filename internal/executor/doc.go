// Package executor runs task script bodies as child processes.
//
// Each execution gets a hard timeout and bounded output capture: stdout and
// stderr are capped and anything beyond the cap is dropped, so a noisy
// script cannot exhaust agent memory. Stdout is additionally streamed
// line-by-line over the live session while the process runs. Execution
// never returns an error to the caller; timeouts and launch failures are
// encoded in the Result with exit code -1 so the server always receives a
// terminal record.
package executor
