// Package coordinator provides background scheduling for record sync batches.
//
// It sits on top of syncengine.Engine and handles:
//
//   - Periodic sweeps over the configured entity kinds using time.Ticker
//   - An initial sweep on startup
//   - Retry with exponential backoff on transient failures
//   - Graceful shutdown
//
// The coordinator owns no sync logic. It decides when to run, the engine
// decides what a run does. Credential-level failures are not retried: the
// operator has to re-run the authorization flow, so the coordinator logs the
// failure and waits for the next sweep.
package coordinator
