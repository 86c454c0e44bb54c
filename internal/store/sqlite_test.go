package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nhle/mail-assistant/internal/model"
	"github.com/nhle/mail-assistant/tests/testutil"
)

func TestAppendMessage_PreservesOrder(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	owner := model.CorrespondentKey("a_x.com")

	for i := 0; i < 5; i++ {
		msg := model.Message{
			From: "a@x.com",
			Body: fmt.Sprintf("message %d", i),
		}
		if err := s.AppendMessage(ctx, owner, "Subject", msg); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}

	record, err := s.GetConversation(ctx, owner)
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if record == nil {
		t.Fatal("GetConversation() returned nil for existing owner")
	}
	if len(record.Messages) != 5 {
		t.Fatalf("got %d messages, want 5", len(record.Messages))
	}
	for i, msg := range record.Messages {
		want := fmt.Sprintf("message %d", i)
		if msg.Body != want {
			t.Errorf("message %d body = %q, want %q", i, msg.Body, want)
		}
	}
}

func TestAppendMessage_SubjectLastWriteWins(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	owner := model.CorrespondentKey("a_x.com")

	for _, subject := range []string{"First", "Second", "Third"} {
		err := s.AppendMessage(ctx, owner, subject, model.Message{
			From: "a@x.com", Body: "hi",
		})
		if err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}

	record, err := s.GetConversation(ctx, owner)
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if record.Subject != "Third" {
		t.Errorf("subject = %q, want %q", record.Subject, "Third")
	}
}

func TestGetConversation_MissingOwner(t *testing.T) {
	s := testutil.NewTestStore(t)

	record, err := s.GetConversation(
		context.Background(), model.CorrespondentKey("nobody"),
	)
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if record != nil {
		t.Errorf("expected nil record for unknown owner, got %+v", record)
	}
}

func TestGetAllConversations_IsolatesOwners(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	ownerA := model.CorrespondentKey("a_x.com")
	ownerB := model.CorrespondentKey("b_x.com")

	if err := s.AppendMessage(ctx, ownerA, "A", model.Message{
		From: "a@x.com", Body: "from a",
	}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if err := s.AppendMessage(ctx, ownerB, "B", model.Message{
		From: "b@x.com", Body: "from b",
	}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	records, err := s.GetAllConversations(ctx)
	if err != nil {
		t.Fatalf("GetAllConversations() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	for _, record := range records {
		if len(record.Messages) != 1 {
			t.Errorf("owner %s has %d messages, want 1",
				record.Owner, len(record.Messages))
		}
	}
}

func TestGetAllMessages_Chronological(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Interleave appends across two owners out of wall-clock order.
	appends := []struct {
		owner model.CorrespondentKey
		body  string
		at    time.Time
	}{
		{"b_x.com", "second", base.Add(1 * time.Minute)},
		{"a_x.com", "first", base},
		{"a_x.com", "third", base.Add(2 * time.Minute)},
	}

	for _, a := range appends {
		err := s.AppendMessage(ctx, a.owner, "S", model.Message{
			From: string(a.owner), Body: a.body, CreatedAt: a.at,
		})
		if err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}

	messages, err := s.GetAllMessages(ctx)
	if err != nil {
		t.Fatalf("GetAllMessages() error = %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}

	wantOrder := []string{"first", "second", "third"}
	for i, want := range wantOrder {
		if messages[i].Body != want {
			t.Errorf("message %d = %q, want %q", i, messages[i].Body, want)
		}
	}
}

func TestAppendStored_MessageAndLedgerCommitTogether(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	owner := model.CorrespondentKey("a_x.com")

	err := s.AppendStored(ctx, owner, "Subject", model.Message{
		From: "a@x.com", Body: "hello",
	}, "m1", "T1")
	if err != nil {
		t.Fatalf("AppendStored() error = %v", err)
	}

	record, err := s.GetConversation(ctx, owner)
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if record == nil || len(record.Messages) != 1 {
		t.Fatalf("record = %+v, want 1 message", record)
	}
	if record.Messages[0].Body != "hello" {
		t.Errorf("message body = %q, want %q", record.Messages[0].Body, "hello")
	}

	status, err := s.GetDeliveryStatus(ctx, "m1")
	if err != nil {
		t.Fatalf("GetDeliveryStatus() error = %v", err)
	}
	if status != model.DeliveryStored {
		t.Errorf("status = %q, want stored", status)
	}
}

func TestDeliveryStatus_Lifecycle(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	status, err := s.GetDeliveryStatus(ctx, "msg-1")
	if err != nil {
		t.Fatalf("GetDeliveryStatus() error = %v", err)
	}
	if status != model.DeliveryUnknown {
		t.Errorf("unseen message status = %q, want unknown", status)
	}

	for _, next := range []model.DeliveryStatus{
		model.DeliveryPending,
		model.DeliveryStored,
		model.DeliveryReplied,
	} {
		if err := s.SetDeliveryStatus(ctx, "msg-1", "T1", next); err != nil {
			t.Fatalf("SetDeliveryStatus(%s) error = %v", next, err)
		}
		got, err := s.GetDeliveryStatus(ctx, "msg-1")
		if err != nil {
			t.Fatalf("GetDeliveryStatus() error = %v", err)
		}
		if got != next {
			t.Errorf("status = %q, want %q", got, next)
		}
	}
}
