package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhle/mail-assistant/internal/ai"
	transport "github.com/nhle/mail-assistant/internal/mail"
	"github.com/nhle/mail-assistant/internal/model"
	"github.com/nhle/mail-assistant/internal/store"
)

// runFatalError marks an error that must abort the whole batch, such
// as the conversation store's database becoming unavailable mid-run.
type runFatalError struct {
	err error
}

func (e *runFatalError) Error() string { return e.err.Error() }
func (e *runFatalError) Unwrap() error { return e.err }

func runFatal(err error) error { return &runFatalError{err: err} }

func isRunFatal(err error) bool {
	var rf *runFatalError
	return errors.As(err, &rf)
}

// storeErr classifies a store failure: database unavailability aborts
// the run, anything else (such as a write conflict) fails only the
// current item, which stays unread and is retried next run.
func storeErr(err error) error {
	if store.IsUnavailable(err) {
		return runFatal(err)
	}
	return err
}

// RunSummary reports what one batch run did.
type RunSummary struct {
	Fetched    int
	Replied    int
	Skipped    int
	Failed     int
	SentSynced int
}

// Pipeline sequences intake, store append, history aggregation, reply
// synthesis, and dispatch for each unread message, then refreshes the
// self history from sent mail. One Run per process invocation; all
// durable state lives in the store.
type Pipeline struct {
	store     store.Store
	transport transport.Transport
	synth     *ai.Synthesizer
	logger    *slog.Logger
	cfg       model.PipelineConfig
}

// New creates a Pipeline with explicitly injected collaborators.
func New(
	st store.Store,
	tr transport.Transport,
	synth *ai.Synthesizer,
	logger *slog.Logger,
	cfg model.PipelineConfig,
) *Pipeline {
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 5
	}
	if cfg.SentLimit <= 0 {
		cfg.SentLimit = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	return &Pipeline{
		store:     st,
		transport: tr,
		synth:     synth,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run performs one batch: fetch unread, process each item in fetch
// order, refresh the self history. Per-item failures are logged and do
// not terminate the batch; authentication failures and store
// unavailability do.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{}

	var ids []string
	err := p.withRetry(ctx, "list-unread", func() error {
		var listErr error
		ids, listErr = p.transport.ListUnread(ctx, p.cfg.FetchLimit)
		return listErr
	})
	if err != nil {
		return summary, fmt.Errorf("listing unread messages: %w", err)
	}

	summary.Fetched = len(ids)
	if len(ids) == 0 {
		p.logger.Info("no new unread messages")
	}

	for _, id := range ids {
		outcome, err := p.processItem(ctx, id)
		if err != nil {
			if transport.IsAuthError(err) || isRunFatal(err) {
				return summary, err
			}
			summary.Failed++
			p.logger.Error("processing message failed",
				"id", id, "error", err)
			continue
		}
		switch outcome {
		case outcomeReplied:
			summary.Replied++
		case outcomeSkipped:
			summary.Skipped++
		}
	}

	synced, err := p.refreshSelfHistory(ctx)
	summary.SentSynced = synced
	if err != nil {
		if transport.IsAuthError(err) || isRunFatal(err) {
			return summary, err
		}
		p.logger.Error("refreshing self history failed", "error", err)
	}

	return summary, nil
}

type itemOutcome int

const (
	outcomeReplied itemOutcome = iota
	outcomeSkipped
)

// processItem runs one inbound message through normalize, append,
// aggregate, synthesize, dispatch. The delivery ledger advances
// pending -> stored -> replied; the read flag flips only after
// "replied" is durable, so a crash mid-item leaves the message unread
// and recoverable rather than silently lost.
func (p *Pipeline) processItem(
	ctx context.Context, id string,
) (itemOutcome, error) {
	var raw *transport.RawMessage
	err := p.withRetry(ctx, "get-message", func() error {
		var getErr error
		raw, getErr = p.transport.GetMessage(ctx, id)
		return getErr
	})
	if err != nil {
		return 0, fmt.Errorf("fetching message %s: %w", id, err)
	}

	item := Normalize(raw)

	status, err := p.store.GetDeliveryStatus(ctx, item.SourceMessageID)
	if err != nil {
		return 0, storeErr(err)
	}

	if status == model.DeliveryReplied {
		// Replied in an earlier run; the unread flag survived a crash
		// between recording the reply and marking read. Restore it.
		p.logger.Info("skipping already-replied message",
			"source_id", item.SourceMessageID)
		if err := p.markRead(ctx, id); err != nil {
			p.logger.Warn("re-marking replied message read failed",
				"id", id, "error", err)
		}
		return outcomeSkipped, nil
	}

	if status != model.DeliveryStored {
		if err := p.store.SetDeliveryStatus(
			ctx, item.SourceMessageID, item.ThreadID, model.DeliveryPending,
		); err != nil {
			return 0, storeErr(err)
		}

		msg := model.Message{
			From:      item.Sender,
			Body:      item.Body,
			CreatedAt: time.Now(),
		}
		// Append and the "stored" status commit in one transaction, so
		// a replayed pending item cannot append the same message twice.
		if err := p.store.AppendStored(
			ctx, item.SenderKey, item.Subject, msg,
			item.SourceMessageID, item.ThreadID,
		); err != nil {
			return 0, storeErr(err)
		}
	}

	history, err := BuildContext(ctx, p.store, item.SenderKey)
	if err != nil {
		return 0, storeErr(err)
	}

	reply, err := p.synth.Synthesize(
		ctx, item.Sender, item.Subject, item.Body, history,
	)
	if err != nil {
		// Not marked read and status stays "stored": the next run
		// picks the message up again.
		return 0, fmt.Errorf(
			"synthesizing reply for %s: %w", item.SourceMessageID, err,
		)
	}

	draft := model.ReplyDraft{
		To:       replyAddress(item.Sender),
		Subject:  model.ReplySubject(item.Subject),
		Body:     reply,
		ThreadID: item.ThreadID,
	}

	err = p.withRetry(ctx, "send", func() error {
		return p.transport.Send(ctx, draft)
	})
	if err != nil {
		return 0, fmt.Errorf(
			"dispatching reply for %s: %w", item.SourceMessageID, err,
		)
	}

	if err := p.store.SetDeliveryStatus(
		ctx, item.SourceMessageID, item.ThreadID, model.DeliveryReplied,
	); err != nil {
		return 0, storeErr(err)
	}

	if err := p.markRead(ctx, id); err != nil {
		// The reply is durably recorded; the next run will skip this
		// message and retry the flag.
		p.logger.Warn("marking message read failed",
			"id", id, "error", err)
	}

	p.logger.Info("reply sent",
		"to", draft.To, "subject", draft.Subject)

	return outcomeReplied, nil
}

// refreshSelfHistory appends recent sent messages under the self key.
// Each sent message is recorded in the delivery ledger so re-runs do
// not duplicate it.
func (p *Pipeline) refreshSelfHistory(ctx context.Context) (int, error) {
	var sent []transport.RawMessage
	err := p.withRetry(ctx, "list-sent", func() error {
		var listErr error
		sent, listErr = p.transport.ListSent(ctx, p.cfg.SentLimit)
		return listErr
	})
	if err != nil {
		return 0, fmt.Errorf("listing sent messages: %w", err)
	}

	synced := 0
	for i := range sent {
		raw := &sent[i]
		sourceID := "sent:" + SourceID(raw)

		status, err := p.store.GetDeliveryStatus(ctx, sourceID)
		if err != nil {
			return synced, storeErr(err)
		}
		if status != model.DeliveryUnknown {
			continue
		}

		subject := raw.Headers["Subject"]
		if subject == "" {
			subject = model.NoSubject
		}
		body := raw.Snippet
		if body == "" {
			body = model.NoContent
		}

		msg := model.Message{
			From:      "me",
			Body:      body,
			CreatedAt: time.Now(),
		}
		if err := p.store.AppendStored(
			ctx, model.SelfKey, subject, msg, sourceID, raw.ThreadID,
		); err != nil {
			return synced, storeErr(err)
		}
		synced++
	}

	return synced, nil
}

// markRead flips the read flag with transient-failure retries.
func (p *Pipeline) markRead(ctx context.Context, id string) error {
	return p.withRetry(ctx, "mark-read", func() error {
		return p.transport.MarkRead(ctx, id)
	})
}

// withRetry runs fn, retrying transient transport failures with
// doubling backoff up to MaxRetries. Auth and permanent errors return
// immediately.
func (p *Pipeline) withRetry(
	ctx context.Context, op string, fn func() error,
) error {
	backoff := p.cfg.RetryBackoff

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !transport.IsTransient(err) || attempt >= p.cfg.MaxRetries {
			return err
		}

		p.logger.Warn("retrying after transient error",
			"op", op, "attempt", attempt+1, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
