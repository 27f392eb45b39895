// Package model defines the shared data types of the hexdiv pipeline:
// occurrence records, grid cell identifiers, partition keys and the
// per-cell indicator aggregate.
package model
