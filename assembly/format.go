// Copyright 2025 Centauraa Health
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package assembly

import (
	"fmt"
	"strings"

	"github.com/centauraa/angel-context/core"
	"github.com/centauraa/angel-context/search"
	"github.com/centauraa/angel-context/storage"
)

const (
	contextHeader = "=== THERAPEUTIC CONTEXT ==="
	historyTitle  = "Recent conversations:"
	similarTitle  = "Relevant past discussions:"
	sessionTitle  = "Current session:"
)

// Format renders the assembled tiers into the prompt text. Section order
// is fixed (history, relevant past, current session) and empty sections
// are omitted entirely; the footer always reports usage against budget.
func Format(history, similar, session []string, usage Usage) string {
	var sb strings.Builder
	sb.WriteString(contextHeader)
	sb.WriteString("\n")

	writeSection(&sb, historyTitle, history)
	writeSection(&sb, similarTitle, similar)
	writeSection(&sb, sessionTitle, session)

	percent := 0
	if usage.Budget > 0 {
		percent = usage.TotalTokens * 100 / usage.Budget
	}
	fmt.Fprintf(&sb, "\n[Context: %d/%d tokens (%d%%)]",
		usage.TotalTokens, usage.Budget, percent)

	return sb.String()
}

func writeSection(sb *strings.Builder, title string, blocks []string) {
	if len(blocks) == 0 {
		return
	}
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	for _, block := range blocks {
		sb.WriteString(block)
		sb.WriteString("\n")
	}
}

// formatSummary renders one past conversation for the history tier:
// title line with date and size, then the speaker-labeled preview turns.
func formatSummary(sum storage.ConversationSummary) string {
	var sb strings.Builder
	title := sum.Title
	if title == "" {
		title = "Session"
	}
	fmt.Fprintf(&sb, "- %s (%s, %d messages)",
		title, sum.CreatedAt.Format("2006-01-02"), sum.MessageCount)
	for _, turn := range sum.Preview {
		sb.WriteString("\n  ")
		sb.WriteString(formatTurn(turn))
	}
	return sb.String()
}

// formatResult renders one retrieved chunk with its similarity score.
func formatResult(res search.Result) string {
	return fmt.Sprintf("- [%.2f] %s", res.Similarity, res.Chunk.Text)
}

// formatTurn renders one turn with its clinical role label.
func formatTurn(turn core.Turn) string {
	label := "Patient"
	if turn.Speaker == core.SpeakerProvider {
		label = "Therapist"
	}
	return label + ": " + turn.Text
}
