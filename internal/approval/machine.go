// Package approval owns the request lifecycle: pending requests are resolved
// to approved, declined or expired exactly once, and every terminal
// transition goes through the store's guarded conditional update before any
// Telegram side effect runs.
package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/almatymeetups/join_request_bot/internal/db"
	"github.com/almatymeetups/join_request_bot/internal/logging"
)

// Transport is the outbound boundary to the messaging platform. The bot
// package implements it over the Telegram API.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int64) error
	AddUserToGroup(ctx context.Context, groupID int64, userID int64) error
	CreateInviteLink(ctx context.Context, groupID int64, name string) (string, error)
}

type Config struct {
	AdminChatID   int64
	TargetGroupID int64

	// Retries bounds attempts per outbound action. Default: 3.
	Retries int

	// RetryDelay is the pause between attempts. Default: 500ms.
	RetryDelay time.Duration

	// NotifyUserOnExpiry controls whether the applicant is told their
	// request expired.
	NotifyUserOnExpiry bool
}

type Machine struct {
	cfg       Config
	requests  *db.RequestRepository
	invites   *db.InviteLinkRepository
	transport Transport
	logger    zerolog.Logger
}

func New(cfg Config, requests *db.RequestRepository, invites *db.InviteLinkRepository, transport Transport) *Machine {
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	return &Machine{
		cfg:       cfg,
		requests:  requests,
		invites:   invites,
		transport: transport,
		logger:    logging.Component("approval"),
	}
}

// Approve resolves the request and lets the user into the group. If the user
// cannot be added directly (no join request on Telegram's side), a single-use
// invite link is issued and sent instead. A failed group action leaves the
// request approved; the admin chat is alerted to finish by hand.
func (m *Machine) Approve(ctx context.Context, requestID int64) error {
	req, err := m.requests.GetByID(requestID)
	if err != nil {
		return fmt.Errorf("Machine.Approve: %w", err)
	}

	if err = m.requests.Resolve(req.ID, db.StatusApproved); err != nil {
		return fmt.Errorf("Machine.Approve: %w", err)
	}

	m.logger.Info().Int64("request_id", req.ID).Int64("user_id", req.UserID).Msg("request approved")

	m.removeAdminMessage(ctx, req)

	if err = m.addToGroup(ctx, req); err != nil {
		var extErr *ExternalActionError
		if errors.As(err, &extErr) {
			m.alertAdmins(ctx, extErr.Action, req.UserID, extErr.Err)
		}
		return err
	}

	return nil
}

// Decline resolves the request and notifies the applicant.
func (m *Machine) Decline(ctx context.Context, requestID int64) error {
	req, err := m.requests.GetByID(requestID)
	if err != nil {
		return fmt.Errorf("Machine.Decline: %w", err)
	}

	if err = m.requests.Resolve(req.ID, db.StatusDeclined); err != nil {
		return fmt.Errorf("Machine.Decline: %w", err)
	}

	m.logger.Info().Int64("request_id", req.ID).Int64("user_id", req.UserID).Msg("request declined")

	m.removeAdminMessage(ctx, req)
	m.announce(ctx, adminDeclined(req.FirstName))

	if err = m.notify(ctx, "notify applicant of decline", req.UserID, userDeclinedDM); err != nil {
		return err
	}

	return nil
}

// Expire resolves a timed-out request. The sweeper drives every expiry
// through here so the side effects stay identical to admin actions.
func (m *Machine) Expire(ctx context.Context, requestID int64) error {
	req, err := m.requests.GetByID(requestID)
	if err != nil {
		return fmt.Errorf("Machine.Expire: %w", err)
	}

	if err = m.requests.Resolve(req.ID, db.StatusExpired); err != nil {
		return fmt.Errorf("Machine.Expire: %w", err)
	}

	m.logger.Info().Int64("request_id", req.ID).Int64("user_id", req.UserID).Msg("request expired")

	m.removeAdminMessage(ctx, req)
	m.announce(ctx, adminExpired(req.FirstName))

	if m.cfg.NotifyUserOnExpiry {
		if err = m.notify(ctx, "notify applicant of expiry", req.UserID, userExpiredDM); err != nil {
			return err
		}
	}

	return nil
}

// addToGroup tries the direct add first, then falls back to a recorded
// single-use invite link.
func (m *Machine) addToGroup(ctx context.Context, req *db.Request) error {
	addErr := m.retry(ctx, "add user to group", func() error {
		return m.transport.AddUserToGroup(ctx, m.cfg.TargetGroupID, req.UserID)
	})
	if addErr == nil {
		m.announce(ctx, adminApprovedAdded(req.FirstName))
		return m.notify(ctx, "notify applicant of approval", req.UserID, userApprovedDM)
	}

	m.logger.Warn().Err(addErr).Int64("request_id", req.ID).Msg("direct add failed, issuing invite link")

	name := fmt.Sprintf("approval-%d-%s", req.ID, uuid.NewString())

	var link string
	err := m.retry(ctx, "create invite link", func() error {
		var inner error
		link, inner = m.transport.CreateInviteLink(ctx, m.cfg.TargetGroupID, name)
		return inner
	})
	if err != nil {
		return err
	}

	if err = m.invites.Create(&db.InviteLink{RequestID: req.ID, Link: link, Name: name}); err != nil {
		m.logger.Error().Err(err).Int64("request_id", req.ID).Msg("failed to record invite link")
	}

	if err = m.notify(ctx, "send invite link to applicant", req.UserID, userApprovedWithLink(link)); err != nil {
		return err
	}

	m.announce(ctx, adminApprovedLinkSent(req.FirstName))
	return nil
}

// removeAdminMessage deletes the approval prompt from the admin chat. Losing
// the message is cosmetic, so failures are logged and dropped.
func (m *Machine) removeAdminMessage(ctx context.Context, req *db.Request) {
	if req.AdminMessageID == nil {
		return
	}

	err := m.retry(ctx, "delete admin message", func() error {
		return m.transport.DeleteMessage(ctx, m.cfg.AdminChatID, *req.AdminMessageID)
	})
	if err != nil {
		m.logger.Warn().Err(err).Int64("request_id", req.ID).Msg("failed to delete admin message")
	}
}

func (m *Machine) announce(ctx context.Context, text string) {
	err := m.retry(ctx, "announce in admin chat", func() error {
		_, inner := m.transport.SendMessage(ctx, m.cfg.AdminChatID, text)
		return inner
	})
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to announce in admin chat")
	}
}

func (m *Machine) notify(ctx context.Context, action string, userID int64, text string) error {
	return m.retry(ctx, action, func() error {
		_, inner := m.transport.SendMessage(ctx, userID, text)
		return inner
	})
}

func (m *Machine) alertAdmins(ctx context.Context, action string, userID int64, cause error) {
	if _, err := m.transport.SendMessage(ctx, m.cfg.AdminChatID, adminActionFailed(action, userID, cause)); err != nil {
		m.logger.Error().Err(err).Msg("failed to alert admins about external action failure")
	}
}

// retry runs fn up to cfg.Retries times. The returned error wraps the last
// failure as an ExternalActionError.
func (m *Machine) retry(ctx context.Context, action string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= m.cfg.Retries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		m.logger.Warn().Err(err).Str("action", action).Int("attempt", attempt).Msg("outbound action failed")

		if attempt == m.cfg.Retries {
			break
		}

		select {
		case <-ctx.Done():
			return &ExternalActionError{Action: action, Err: ctx.Err()}
		case <-time.After(m.cfg.RetryDelay):
		}
	}

	return &ExternalActionError{Action: action, Err: err}
}

// IsAlreadyResolved reports whether err means the request was resolved by a
// concurrent action, which callers treat as an idempotent no-op.
func IsAlreadyResolved(err error) bool {
	return errors.Is(err, db.ErrAlreadyResolved)
}
