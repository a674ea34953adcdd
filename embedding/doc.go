// Package embedding provides the embedding provider abstraction, an
// OpenAI-compatible implementation, and the adaptive rate-limit layer
// that paces bulk ingestion: batch sizes shrink on throttling, grow back
// after sustained success, and every provider call respects a minimum
// inter-call interval measured from the end of the previous call.
package embedding
