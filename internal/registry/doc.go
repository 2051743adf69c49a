// Package registry implements the Account Registry.
//
// The registry owns the authoritative set of accounts: for each name an
// immutable config, the initialized connector handle, and the mutable fetch
// state the orchestrator drives. Names are the global identity key;
// registering a duplicate is an error, and a failed connector initialization
// leaves the account unregistered without touching any other account.
package registry
