package bot

import (
	"errors"
	"testing"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/stretchr/testify/require"

	"github.com/almatymeetups/join_request_bot/internal/approval"
	"github.com/almatymeetups/join_request_bot/internal/db"
	"github.com/almatymeetups/join_request_bot/internal/logging"
)

func TestAdminApplicationText(t *testing.T) {
	req := &db.Request{
		ID:        7,
		UserID:    42,
		Username:  pointer.ToString("dana"),
		FirstName: "Dana",
		LastName:  "K",
		CreatedAt: time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
	}
	responses := []db.Response{
		{QuestionID: "source", Answer: "Couchsurfing"},
		{QuestionID: "details", Answer: "profile link"},
	}

	text := adminApplicationText(req, responses)

	require.Contains(t, text, "Dana K (@dana)")
	require.Contains(t, text, "User ID: 42")
	require.Contains(t, text, "Request ID: 7")
	require.Contains(t, text, "• source: Couchsurfing")
	require.Contains(t, text, "• details: profile link")
	require.Contains(t, text, "2025-06-01 12:30:00")
}

func TestAdminApplicationTextWithoutUsername(t *testing.T) {
	req := &db.Request{ID: 7, UserID: 42, FirstName: "Dana", CreatedAt: time.Now()}

	text := adminApplicationText(req, nil)

	require.NotContains(t, text, "@")
}

func TestResolutionReply(t *testing.T) {
	s := &Service{logger: logging.Component("test")}

	require.Equal(t, callbackDone, s.resolutionReply(1, nil))
	require.Equal(t, callbackAlreadyHandled, s.resolutionReply(1, db.ErrAlreadyResolved))
	require.Equal(t, callbackNotFound, s.resolutionReply(1, db.ErrNotFound))
	require.Equal(t, callbackActionIncomplete, s.resolutionReply(1, &approval.ExternalActionError{
		Action: "add user to group",
		Err:    errors.New("no permission"),
	}))
	require.Equal(t, storeErrorMsg, s.resolutionReply(1, errors.New("disk on fire")))
}
