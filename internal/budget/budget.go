// Package budget estimates token usage and trims conversation history to fit
// the model's input window. Backends tokenize differently, so estimates use
// one heuristic for all of them: about 4 characters per token, counted in
// runes so non-English corpora are not over-counted by their UTF-8 width.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// perMessageOverhead approximates the role and framing tokens every chat
	// API adds around a message.
	perMessageOverhead = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// It fits 8k-context models with room left for the answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s. Any non-empty string costs at
// least one token.
func Estimate(s string) int {
	runes := utf8.RuneCountInString(s)
	n := runes / charsPerToken
	if n == 0 && runes > 0 {
		return 1
	}
	return n
}

// EstimateMessage returns the estimated cost of one message, including the
// names and arguments of any tool calls it carries.
func EstimateMessage(m *schema.Message) int {
	if m == nil {
		return 0
	}
	total := perMessageOverhead + Estimate(string(m.Role)) + Estimate(m.Content)
	for _, tc := range m.ToolCalls {
		total += Estimate(tc.Function.Name) + Estimate(tc.Function.Arguments)
	}
	return total
}

// EstimateMessages returns the summed estimate of msgs.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateMessage(m)
	}
	return total
}

// Remaining returns how many tokens are left for history once fixed is
// placed, never less than zero.
func Remaining(fixed []*schema.Message, maxTokens int) int {
	if left := maxTokens - EstimateMessages(fixed); left > 0 {
		return left
	}
	return 0
}

// TrimHistory drops the oldest history messages until fixed and history
// together fit in maxTokens. fixed (system prompt and current user message)
// is never trimmed; if it alone exceeds the budget, no history survives.
//
// The kept history always starts at a user message, so the model never sees
// an answer without the question that prompted it.
func TrimHistory(fixed, history []*schema.Message, maxTokens int) []*schema.Message {
	if len(history) == 0 {
		return history
	}

	left := Remaining(fixed, maxTokens)
	used := EstimateMessages(history)
	for len(history) > 0 && used > left {
		used -= EstimateMessage(history[0])
		history = history[1:]
	}
	for len(history) > 0 && history[0].Role != schema.User {
		history = history[1:]
	}
	return history
}
