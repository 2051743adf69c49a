// Package fetcher implements the Fetch Orchestrator.
//
// The orchestrator drives the whole refresh cycle: a ticker fires a fetch
// pass every interval (plus one immediately at startup), each pass walks the
// registered accounts with bounded concurrency, and every account's outcome
// feeds its own fetch state: success resets it, failure counts toward the
// backoff threshold. One account's slow or failing connector never blocks or
// perturbs another's.
//
// Fetch outcomes are also emitted through an Observer so that recording and
// metrics stay out of the orchestration path.
package fetcher
