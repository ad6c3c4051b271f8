// Package summary turns a submitted intake form into a client summary: it builds
// the prompt, queues generation and processes the queue in a worker.
package summary

import (
	"fmt"
	"strings"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/intake"
)

const systemPrompt = "You are a fitness trainer."

// BuildPrompt renders the flattened question/answer pairs into the stored summary prompt.
func BuildPrompt(clientName string, pairs []intake.QA) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the intake form of %s for their personal trainer.\n", strings.TrimSpace(clientName))
	b.WriteString("Highlight goals, health concerns and constraints that affect programming.\n\n")
	b.WriteString("Intake answers:\n")
	for _, pair := range pairs {
		question := strings.TrimSpace(pair.Question)
		answer := strings.TrimSpace(pair.Answer)
		if question == "" || answer == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", question, answer)
	}
	return b.String()
}
