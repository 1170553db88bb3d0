// Package flow walks an applicant through the configured question list and
// turns a finished session into a pending request.
package flow

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/almatymeetups/join_request_bot/internal/db"
	"github.com/almatymeetups/join_request_bot/internal/logging"
)

var (
	// ErrNoActiveFlow is returned for an answer with no session to apply
	// it to.
	ErrNoActiveFlow = errors.New("no active application flow")

	// ErrEmptyAnswer is returned when the trimmed answer is empty.
	ErrEmptyAnswer = errors.New("answer must not be empty")

	// ErrPendingRequest is returned when the user already has a request
	// awaiting review.
	ErrPendingRequest = errors.New("a pending request already exists")

	// ErrAnswerRequired is returned when /skip is used on a required
	// question.
	ErrAnswerRequired = errors.New("this question requires an answer")
)

// Applicant is the immutable snapshot of the user stored on the request.
type Applicant struct {
	UserID    int64
	Username  *string
	FirstName string
	LastName  string
}

// StepResult is what a session step produced: the next question to ask, or
// the created request when the flow finished.
type StepResult struct {
	Next      *Question
	Completed *db.Request
}

type session struct {
	id        string
	applicant Applicant
	cursor    int
	answers   []db.Response
}

type Engine struct {
	questions []Question
	requests  *db.RequestRepository
	logger    zerolog.Logger

	mu       sync.Mutex
	sessions map[int64]*session
}

func New(questions []Question, requests *db.RequestRepository) *Engine {
	if len(questions) == 0 {
		questions = DefaultQuestions()
	}

	return &Engine{
		questions: questions,
		requests:  requests,
		logger:    logging.Component("flow"),
		sessions:  make(map[int64]*session),
	}
}

// Start opens a fresh session for the applicant and returns the first
// question. Starting over discards a half-finished session. A user with a
// request already awaiting review gets ErrPendingRequest instead.
func (e *Engine) Start(applicant Applicant) (*Question, error) {
	pending, err := e.requests.GetPendingByUserID(applicant.UserID)
	if err != nil {
		return nil, fmt.Errorf("Engine.Start: %w", err)
	}
	if pending != nil {
		return nil, ErrPendingRequest
	}

	s := &session{
		id:        uuid.NewString(),
		applicant: applicant,
	}

	e.mu.Lock()
	e.sessions[applicant.UserID] = s
	e.mu.Unlock()

	e.logger.Info().Str("session_id", s.id).Int64("user_id", applicant.UserID).Msg("application flow started")

	return &e.questions[0], nil
}

// Answer records the reply to the current question and advances the cursor.
// When the last question is answered the request and all its responses are
// written in one transaction and the session ends.
func (e *Engine) Answer(userID int64, text string) (*StepResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyAnswer
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[userID]
	if !ok {
		return nil, ErrNoActiveFlow
	}

	s.answers = append(s.answers, db.Response{
		QuestionID: e.questions[s.cursor].ID,
		Answer:     text,
	})

	return e.advance(s, true)
}

// Skip moves past the current question if it is optional.
func (e *Engine) Skip(userID int64) (*StepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[userID]
	if !ok {
		return nil, ErrNoActiveFlow
	}

	if e.questions[s.cursor].Required {
		return nil, ErrAnswerRequired
	}

	return e.advance(s, false)
}

// Cancel drops the session without creating a request. It reports whether
// there was a session to drop.
func (e *Engine) Cancel(userID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[userID]
	if ok {
		delete(e.sessions, userID)
		e.logger.Info().Str("session_id", s.id).Int64("user_id", userID).Msg("application flow cancelled")
	}

	return ok
}

// Active reports whether the user has a session in progress.
func (e *Engine) Active(userID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.sessions[userID]
	return ok
}

// advance is called with e.mu held. On completion the session stays in the
// map until the request is durably created, so a store failure leaves the
// user able to retry their last answer.
func (e *Engine) advance(s *session, answered bool) (*StepResult, error) {
	s.cursor++
	if s.cursor < len(e.questions) {
		return &StepResult{Next: &e.questions[s.cursor]}, nil
	}

	req := &db.Request{
		UserID:    s.applicant.UserID,
		Username:  s.applicant.Username,
		FirstName: s.applicant.FirstName,
		LastName:  s.applicant.LastName,
	}

	if err := e.requests.CreateWithResponses(req, s.answers); err != nil {
		s.cursor--
		if answered {
			s.answers = s.answers[:len(s.answers)-1]
		}
		return nil, fmt.Errorf("Engine.advance: %w", err)
	}

	delete(e.sessions, s.applicant.UserID)

	e.logger.Info().
		Str("session_id", s.id).
		Int64("user_id", s.applicant.UserID).
		Int64("request_id", req.ID).
		Msg("application submitted")

	return &StepResult{Completed: req}, nil
}
