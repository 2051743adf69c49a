// Package model defines the normalized data types shared across posdeck.
//
// Every connector, whatever the exchange, reduces its REST payloads to these
// types before anything else sees them.
//
// Conventions:
//   - Monetary values: float64 in the account's base currency
//   - Rates: float64 fractions; fields named *Pct are percentages
//   - Timestamps: int64 milliseconds since Unix epoch (0 = unset)
//   - Identity: account name is the global key; Exchange/Account are carried
//     on every record for traceability
package model
