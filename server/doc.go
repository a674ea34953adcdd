// Package server exposes context assembly, semantic search and
// conversation history over a small JSON HTTP API.
package server
