// Package storage defines the persistence interfaces the rest of the
// system depends on (conversation sources, the vector index, history
// lookups, ingestion checkpoints) and the binary serialization of
// embedded chunks. Concrete backends live in subpackages.
package storage
