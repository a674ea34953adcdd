// Package core defines the domain model shared by every other package:
// conversations and turns as captured upstream, the clinical profile
// derived at ingestion time, and the embedded chunks written to the
// vector index. It has no I/O and no dependencies on storage or
// transport packages.
package core
