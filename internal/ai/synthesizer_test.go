package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubGenerator struct {
	text    string
	err     error
	prompts []string
}

func (g *stubGenerator) Generate(
	_ context.Context, prompt string,
) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.text, g.err
}

func TestSynthesize_TrimsReply(t *testing.T) {
	gen := &stubGenerator{text: "\n  Sounds good, see you then.  \n"}
	s := NewSynthesizer(gen)

	reply, err := s.Synthesize(
		context.Background(), "a@x.com", "Meeting?", "Tuesday?", HistoryContext{},
	)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if reply != "Sounds good, see you then." {
		t.Errorf("reply = %q, want trimmed text", reply)
	}
}

func TestSynthesize_EmptyReplyError(t *testing.T) {
	gen := &stubGenerator{text: "   \n\t"}
	s := NewSynthesizer(gen)

	_, err := s.Synthesize(
		context.Background(), "a@x.com", "Hi", "hello", HistoryContext{},
	)
	if !errors.Is(err, ErrEmptyReply) {
		t.Errorf("error = %v, want ErrEmptyReply", err)
	}
}

func TestSynthesize_GeneratorErrorSurfaces(t *testing.T) {
	genErr := errors.New("capability unavailable")
	s := NewSynthesizer(&stubGenerator{err: genErr})

	_, err := s.Synthesize(
		context.Background(), "a@x.com", "Hi", "hello", HistoryContext{},
	)
	if !errors.Is(err, genErr) {
		t.Errorf("error = %v, want wrapped generator error", err)
	}
}

func TestSynthesize_PromptEmbedsContext(t *testing.T) {
	gen := &stubGenerator{text: "ok then"}
	s := NewSynthesizer(gen)

	history := HistoryContext{
		Global: "b@x.com: see you at standup",
		Sender: "a@x.com: are we still on?",
		Self:   "me: I have an exam Tuesday",
	}

	_, err := s.Synthesize(
		context.Background(), "a@x.com", "Meeting?", "Free Tuesday 3pm?", history,
	)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	if len(gen.prompts) != 1 {
		t.Fatalf("generator called %d times, want 1", len(gen.prompts))
	}
	prompt := gen.prompts[0]

	for _, fragment := range []string{
		"see you at standup",
		"are we still on?",
		"I have an exam Tuesday",
		"Subject: Meeting?",
		"Free Tuesday 3pm?",
		"CONVERSATIONS WITH a@x.com",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("prompt missing %q", fragment)
		}
	}
}
