// Package recorder persists fetch outcomes to PostgreSQL as an optional
// side-channel. It implements fetcher.Observer: per-account results land
// in fetch_log and pass summaries in fetch_passes, batched with
// append-only inserts. The monitor runs fine without it; a nil recorder
// simply means no history.
package recorder
