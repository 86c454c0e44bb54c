package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhle/mail-assistant/internal/ai"
	"github.com/nhle/mail-assistant/internal/model"
	"github.com/nhle/mail-assistant/internal/store"
)

// BuildContext assembles the three transcripts used for reply
// synthesis: the global history across all correspondents
// (chronological), the target correspondent's own history, and the
// self history of previously sent messages. It is a pure read of store
// state at call time; nothing is cached between calls.
func BuildContext(
	ctx context.Context,
	st store.Store,
	target model.CorrespondentKey,
) (ai.HistoryContext, error) {
	all, err := st.GetAllMessages(ctx)
	if err != nil {
		return ai.HistoryContext{}, fmt.Errorf("reading global history: %w", err)
	}

	sender, err := ownerTranscript(ctx, st, target)
	if err != nil {
		return ai.HistoryContext{}, err
	}

	self, err := ownerTranscript(ctx, st, model.SelfKey)
	if err != nil {
		return ai.HistoryContext{}, err
	}

	return ai.HistoryContext{
		Global: transcript(all),
		Sender: sender,
		Self:   self,
	}, nil
}

// ownerTranscript renders one owner's history, empty when the owner
// has no record yet.
func ownerTranscript(
	ctx context.Context,
	st store.Store,
	owner model.CorrespondentKey,
) (string, error) {
	record, err := st.GetConversation(ctx, owner)
	if err != nil {
		return "", fmt.Errorf("reading history for %s: %w", owner, err)
	}
	if record == nil {
		return "", nil
	}
	return transcript(record.Messages), nil
}

// transcript joins messages into newline-separated "<from>: <body>" lines.
func transcript(messages []model.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", msg.From, msg.Body))
	}
	return strings.Join(lines, "\n")
}
