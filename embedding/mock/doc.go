// Package mock provides a deterministic embedding.Embedder test double.
package mock
