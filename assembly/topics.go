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
	"sort"
	"strings"

	"github.com/centauraa/angel-context/core"
)

// maxTopics caps how many topics a context reports.
const maxTopics = 5

// topicKeywords maps surface keywords to session topics.
var topicKeywords = map[string]string{
	"anxious":      "anxiety",
	"anxiety":      "anxiety",
	"panic":        "anxiety",
	"worried":      "anxiety",
	"depressed":    "depression",
	"depression":   "depression",
	"hopeless":     "depression",
	"sad":          "depression",
	"stress":       "stress",
	"stressed":     "stress",
	"overwhelmed":  "stress",
	"pressure":     "stress",
	"sleep":        "sleep",
	"insomnia":     "sleep",
	"tired":        "sleep",
	"exhausted":    "sleep",
	"relationship": "relationships",
	"partner":      "relationships",
	"family":       "relationships",
	"friend":       "relationships",
	"marriage":     "relationships",
	"work":         "work",
	"job":          "work",
	"boss":         "work",
	"career":       "work",
	"coworker":     "work",
}

// DetectTopics scans session turns for known topic keywords and returns
// up to maxTopics topics, alphabetical for determinism.
func DetectTopics(turns []core.Turn) []string {
	found := map[string]bool{}
	for _, turn := range turns {
		text := strings.ToLower(turn.Text)
		for keyword, topic := range topicKeywords {
			if strings.Contains(text, keyword) {
				found[topic] = true
			}
		}
	}
	if len(found) == 0 {
		return nil
	}

	topics := make([]string, 0, len(found))
	for topic := range found {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	return topics
}
