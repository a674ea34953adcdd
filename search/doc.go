// Package search answers semantic queries over the chunk index: the
// query is normalized and embedded, candidates are scored by cosine
// similarity, and only results above the relevance floor are returned.
package search
