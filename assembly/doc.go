// Package assembly builds the therapeutic context injected into the
// response model's prompt. Three tiers share a fixed token budget:
// recent conversation history, semantically relevant past discussion,
// and the current session. Tiers shrink by dropping whole items, never
// by cutting text mid-thought, and a failed tier degrades to empty
// rather than failing the build.
package assembly
