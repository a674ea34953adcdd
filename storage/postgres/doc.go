// Package postgres implements the conversation archive on PostgreSQL:
// bulk import of transcripts, a batched ingestion source, and the
// per-user history queries behind context assembly.
package postgres
