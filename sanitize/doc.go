// Package sanitize cleans raw conversation text before it reaches the
// embedding pipeline: PII is replaced with typed placeholders, the text
// is normalized into a canonical lowercase form, and degenerate texts
// are rejected by the embedding-validity gate.
//
// Ordering matters: PII detection runs on original casing because name
// detection relies on capitalization. Normalize enforces the order.
package sanitize
