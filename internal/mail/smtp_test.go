package mail

import (
	"strings"
	"testing"

	"github.com/nhle/mail-assistant/internal/model"
)

func TestComposeReply_ThreadsIntoOriginal(t *testing.T) {
	draft := model.ReplyDraft{
		To:       "a@x.com",
		Subject:  "Re: Meeting?",
		Body:     "Tuesday works for me.",
		ThreadID: "abc@mail.example.com",
	}

	msg := composeReply("me@example.com", draft)

	for _, want := range []string{
		"From: me@example.com\r\n",
		"To: a@x.com\r\n",
		"Subject: Re: Meeting?\r\n",
		"In-Reply-To: <abc@mail.example.com>\r\n",
		"References: <abc@mail.example.com>\r\n",
		"Content-Type: text/plain; charset=UTF-8\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("composed message missing %q", want)
		}
	}

	headerEnd := strings.Index(msg, "\r\n\r\n")
	if headerEnd < 0 {
		t.Fatal("no header/body separator")
	}
	if body := msg[headerEnd+4:]; body != draft.Body {
		t.Errorf("body = %q, want %q", body, draft.Body)
	}
}

func TestComposeReply_NoThreadID(t *testing.T) {
	draft := model.ReplyDraft{
		To:      "a@x.com",
		Subject: "Re: Hi",
		Body:    "hello",
	}

	msg := composeReply("me@example.com", draft)

	if strings.Contains(msg, "In-Reply-To") {
		t.Error("In-Reply-To header present without a thread id")
	}
}

func TestSnippetOf(t *testing.T) {
	long := strings.Repeat("word ", 100)
	got := snippetOf(long)
	if len([]rune(got)) > snippetLimit {
		t.Errorf("snippet length %d exceeds limit", len([]rune(got)))
	}

	multiline := "line one\n\n  line two\t end"
	if got := snippetOf(multiline); got != "line one line two end" {
		t.Errorf("snippetOf() = %q, want collapsed whitespace", got)
	}
}

func TestStripHTML(t *testing.T) {
	html := "<div><p>Hello &amp; welcome</p><br>See you</div>"
	got := stripHTML(html)

	if strings.ContainsAny(got, "<>") {
		t.Errorf("stripHTML left tags in %q", got)
	}
	if !strings.Contains(got, "Hello & welcome") {
		t.Errorf("stripHTML() = %q, entities not decoded", got)
	}
}
