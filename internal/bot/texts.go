package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/almatymeetups/join_request_bot/internal/db"
)

const (
	welcomeText = "👋 Welcome to our Almaty Meetups!\n\n" +
		"We are a local community of foreigners and locals based in Almaty, Kazakhstan.\n\n" +
		"Our purpose is to meet and connect with travelers and people living in Almaty. " +
		"We frequently organize gatherings and events to meet new people and make new friends."

	pendingRequestMsg = "⏳ You already have a pending request. Please wait for admin approval."
	submittedMsg      = "✅ Your application has been submitted! We'll review it and get back to you soon."
	cancelledMsg      = "❌ Application cancelled. You can start again anytime with /start"
	nothingToCancel   = "There is nothing to cancel. Send /start to apply."
	noActiveFlowMsg   = "You don't have an application in progress. Send /start to begin."
	emptyAnswerMsg    = "Please send a non-empty answer."
	answerRequiredMsg = "This question can't be skipped. Please send an answer."
	storeErrorMsg     = "Something went wrong on our side. Please try again in a moment."

	callbackDone             = "Done"
	callbackAlreadyHandled   = "This request was already handled."
	callbackNotFound         = "Request not found."
	callbackActionIncomplete = "Resolved, but a Telegram action failed. Check the admin chat."
)

func adminApplicationText(req *db.Request, responses []db.Response) string {
	handle := ""
	if req.Username != nil && *req.Username != "" {
		handle = fmt.Sprintf(" (@%s)", *req.Username)
	}

	var answers strings.Builder
	for _, resp := range responses {
		fmt.Fprintf(&answers, "• %s: %s\n", resp.QuestionID, resp.Answer)
	}

	return fmt.Sprintf(
		"📝 New Join Request\n\n"+
			"👤 User: %s %s%s\n"+
			"🆔 User ID: %d\n"+
			"📅 Date: %s\n\n"+
			"💬 Answers:\n%s\n"+
			"⏰ Request ID: %d",
		req.FirstName, req.LastName, handle,
		req.UserID,
		req.CreatedAt.Format(time.DateTime),
		answers.String(),
		req.ID,
	)
}
