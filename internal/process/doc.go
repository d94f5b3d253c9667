// Package process supervises the lifecycle of named child processes.
//
// A Supervisor owns a registry of supervised processes. Start spawns a
// process in its own process group, attaches one output relay per stream
// (stdout, stderr), and registers it under a unique name. SweepLiveness
// polls exit status on a fixed cadence and logs unexpected exits; it never
// restarts anything. Cleanup terminates every registered process in start
// order: graceful terminate, a short wait, then a forced kill.
//
// Errors in background work (relays, sweep iterations, per-process
// teardown) are logged and contained; they never propagate into the
// caller's flow.
//
// Example usage:
//
//	sup := process.NewSupervisor(process.Options{Logger: log})
//	if err := sup.Start("bot", []string{"poetry", "run", "bot"}); err != nil {
//	    return err
//	}
//	go sup.SweepLiveness(ctx)
//	<-ctx.Done()
//	sup.Cleanup()
package process
