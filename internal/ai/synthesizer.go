package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyReply is returned when the generator produces no usable text.
// The pipeline must never dispatch a blank reply.
var ErrEmptyReply = errors.New("generator returned an empty reply")

// HistoryContext carries the three transcripts assembled before
// generating a reply.
type HistoryContext struct {
	// Global is every stored message across all correspondents,
	// interleaved chronologically.
	Global string

	// Sender is the target correspondent's own history in append order.
	Sender string

	// Self is the history of messages previously sent by the user.
	Self string
}

// Synthesizer wraps a Generator behind a fixed persona/task prompt and
// returns a cleaned reply string.
type Synthesizer struct {
	gen Generator
}

// NewSynthesizer creates a Synthesizer over the given generator.
func NewSynthesizer(gen Generator) *Synthesizer {
	return &Synthesizer{gen: gen}
}

// Synthesize builds the reply prompt from the new message and the three
// transcripts, generates a reply, and trims surrounding whitespace.
// It returns ErrEmptyReply when the generated text is blank.
func (s *Synthesizer) Synthesize(
	ctx context.Context,
	sender, subject, body string,
	history HistoryContext,
) (string, error) {
	prompt := buildPrompt(sender, subject, body, history)

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating reply: %w", err)
	}

	reply := strings.TrimSpace(text)
	if reply == "" {
		return "", ErrEmptyReply
	}

	return reply, nil
}

// buildPrompt constructs the persona/task prompt embedding the
// transcripts and the new message.
func buildPrompt(
	sender, subject, body string,
	history HistoryContext,
) string {
	var sb strings.Builder

	sb.WriteString("You are an intelligent email assistant replying ")
	sb.WriteString("on behalf of the user.\n\n")

	sb.WriteString("### GOAL\n")
	sb.WriteString("Write a natural, polite, and thoughtful reply to ")
	sb.WriteString("a new email by:\n")
	sb.WriteString("- Matching the user's past communication tone ")
	sb.WriteString("(formal/informal, brief/detailed)\n")
	sb.WriteString("- Considering all prior confirmed or acknowledged events\n")
	sb.WriteString("- Ensuring no scheduling conflicts\n")
	sb.WriteString("- Following the user's typical behavior in similar ")
	sb.WriteString("scenarios\n\n")

	sb.WriteString("### INSTRUCTIONS\n")
	sb.WriteString("1. Read the user's previous replies and communication ")
	sb.WriteString("style carefully.\n")
	sb.WriteString("2. Identify any prior commitments already acknowledged ")
	sb.WriteString("by the user (meetings, exams, deadlines, personal ")
	sb.WriteString("events).\n")
	sb.WriteString("3. Check for conflicts between this new request and ")
	sb.WriteString("existing plans.\n")
	sb.WriteString("4. Analyze how the user has responded to similar ")
	sb.WriteString("requests in the past, and follow any clear pattern.\n")
	sb.WriteString("5. If the new request conflicts with existing plans, ")
	sb.WriteString("politely decline and suggest an alternative.\n")
	sb.WriteString("6. If there is no conflict, write an appropriate reply ")
	sb.WriteString("in the user's style.\n")
	sb.WriteString("7. If the request is unclear, ask for more details ")
	sb.WriteString("respectfully.\n")
	sb.WriteString("8. Do not reply with just \"Ok\" or \"No\"; be polite ")
	sb.WriteString("and complete.\n\n")

	sb.WriteString("### PAST EMAIL HISTORY (all conversations)\n")
	sb.WriteString(history.Global)
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("### CONVERSATIONS WITH %s\n", sender))
	sb.WriteString(history.Sender)
	sb.WriteString("\n\n")

	sb.WriteString("### USER'S PAST SENT EMAILS\n")
	sb.WriteString(history.Self)
	sb.WriteString("\n\n")

	sb.WriteString("### NEW EMAIL RECEIVED\n")
	sb.WriteString(fmt.Sprintf("Subject: %s\n", subject))
	sb.WriteString(fmt.Sprintf("Message: %s\n\n", body))

	sb.WriteString("### WRITE A REPLY AS IF YOU ARE THE USER\n")
	sb.WriteString("Based on the user's past responses, generate the most ")
	sb.WriteString("logical reply. Output only the reply body.")

	return sb.String()
}
