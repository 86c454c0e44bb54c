package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/nhle/mail-assistant/internal/model"
	"github.com/nhle/mail-assistant/internal/store"
	"github.com/nhle/mail-assistant/tests/testutil"
)

func TestIsUnavailable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"wrapped conn done", fmt.Errorf("appending: %w", sql.ErrConnDone), true},
		{
			"unique constraint",
			errors.New("constraint failed: UNIQUE constraint failed: conversation_messages.id"),
			false,
		},
		{"plain failure", errors.New("something else"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := store.IsUnavailable(tc.err); got != tc.want {
				t.Errorf("IsUnavailable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsUnavailable_ClosedStore(t *testing.T) {
	s := testutil.NewTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := s.AppendMessage(
		context.Background(), model.CorrespondentKey("a_x.com"), "S",
		model.Message{From: "a@x.com", Body: "hi"},
	)
	if err == nil {
		t.Fatal("AppendMessage() succeeded on a closed store")
	}
	if !store.IsUnavailable(err) {
		t.Errorf("closed-store error %v not classified as unavailable", err)
	}
}
