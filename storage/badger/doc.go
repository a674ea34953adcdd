// Package badger provides the embedded BadgerDB implementations of the
// vector index and the ingestion checkpoint store. One Backend is shared
// by both so a deployment needs a single database directory.
package badger
