// Package clinical derives a per-conversation clinical profile from
// transcript turns: crisis level, symptom and coping-strategy mentions,
// and an outcome polarity over the closing user turns. Detection is
// keyword-table based and deliberately conservative; it is a retrieval
// filter, not a diagnostic instrument.
package clinical
