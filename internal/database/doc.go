// Package database provides the optional PostgreSQL connection pool used by
// the fetch recorder. The core never touches it; a monitor without a
// configured database runs entirely in memory.
package database
