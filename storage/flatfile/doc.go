// Package flatfile provides file-based storage pieces: a JSONL
// conversation source for bulk imports and a newline-delimited
// checkpoint file for resumable ingestion without a database.
package flatfile
