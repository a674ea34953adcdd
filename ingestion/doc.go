// Package ingestion turns archived conversations into embedded chunks in
// the vector index. The pipeline pulls batches from a conversation
// source, sanitizes and chunks each transcript, annotates it with a
// clinical profile, embeds the chunks under adaptive rate control, and
// commits them in buffered flushes. Checkpoints are written only after a
// flush is durable, so interrupted runs resume safely.
//
// The package also holds the archive importer, which admits raw
// transcript exports into the conversation store.
package ingestion
