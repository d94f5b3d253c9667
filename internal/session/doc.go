// Package session drives a meeting session from start to teardown.
//
// The Driver walks a fixed state machine: resolve the meeting URL and
// persona, start the bot and meeting coordinator under the process
// supervisor, run the liveness sweep, block until shutdown is requested,
// then clean up. Shutdown is signalled through context cancellation - the
// driver's only suspension point - so OS signals, internal errors, and
// tests all share one set-once trigger.
package session
