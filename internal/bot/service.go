// Package bot is the Telegram boundary: it feeds inbound updates into the
// flow engine and approval machine and renders their results back to chats.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AlekSi/pointer"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/almatymeetups/join_request_bot/internal/approval"
	"github.com/almatymeetups/join_request_bot/internal/db"
	"github.com/almatymeetups/join_request_bot/internal/flow"
	"github.com/almatymeetups/join_request_bot/internal/logging"
)

const (
	callbackApprovePrefix = "approve_"
	callbackDeclinePrefix = "decline_"
)

type Config struct {
	AdminChatID int64
}

type Service struct {
	botAPI   *tgbotapi.BotAPI
	cfg      Config
	flow     *flow.Engine
	machine  *approval.Machine
	requests *db.RequestRepository
	logger   zerolog.Logger
}

func New(
	botAPI *tgbotapi.BotAPI,
	cfg Config,
	flowEngine *flow.Engine,
	machine *approval.Machine,
	requests *db.RequestRepository,
) *Service {
	return &Service{
		botAPI:   botAPI,
		cfg:      cfg,
		flow:     flowEngine,
		machine:  machine,
		requests: requests,
		logger:   logging.Component("bot"),
	}
}

// Run consumes updates until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.botAPI.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.botAPI.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}

			switch {
			case update.CallbackQuery != nil:
				s.handleCallback(ctx, update.CallbackQuery)
			case update.Message != nil:
				s.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (s *Service) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil || !message.Chat.IsPrivate() || message.From == nil {
		return
	}

	chatID := message.Chat.ID

	if message.IsCommand() {
		switch message.Command() {
		case "start":
			s.handleStart(message)
		case "skip":
			s.handleSkip(ctx, chatID, message.From.ID)
		case "cancel":
			s.handleCancel(chatID, message.From.ID)
		default:
			s.reply(chatID, noActiveFlowMsg)
		}
		return
	}

	s.handleAnswer(ctx, message)
}

func (s *Service) handleStart(message *tgbotapi.Message) {
	from := message.From
	applicant := flow.Applicant{
		UserID:    from.ID,
		Username:  pointer.ToStringOrNil(from.UserName),
		FirstName: from.FirstName,
		LastName:  from.LastName,
	}

	question, err := s.flow.Start(applicant)
	if err != nil {
		if errors.Is(err, flow.ErrPendingRequest) {
			s.reply(message.Chat.ID, pendingRequestMsg)
			return
		}

		s.logger.Error().Err(err).Int64("user_id", from.ID).Msg("failed to start flow")
		s.reply(message.Chat.ID, storeErrorMsg)
		return
	}

	s.reply(message.Chat.ID, welcomeText)
	s.reply(message.Chat.ID, question.Prompt)
}

func (s *Service) handleAnswer(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	result, err := s.flow.Answer(message.From.ID, message.Text)
	if err != nil {
		switch {
		case errors.Is(err, flow.ErrNoActiveFlow):
			s.reply(chatID, noActiveFlowMsg)
		case errors.Is(err, flow.ErrEmptyAnswer):
			s.reply(chatID, emptyAnswerMsg)
		default:
			s.logger.Error().Err(err).Int64("user_id", message.From.ID).Msg("failed to record answer")
			s.reply(chatID, storeErrorMsg)
		}
		return
	}

	s.handleStep(ctx, chatID, result)
}

func (s *Service) handleSkip(ctx context.Context, chatID int64, userID int64) {
	result, err := s.flow.Skip(userID)
	if err != nil {
		switch {
		case errors.Is(err, flow.ErrNoActiveFlow):
			s.reply(chatID, noActiveFlowMsg)
		case errors.Is(err, flow.ErrAnswerRequired):
			s.reply(chatID, answerRequiredMsg)
		default:
			s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to skip question")
			s.reply(chatID, storeErrorMsg)
		}
		return
	}

	s.handleStep(ctx, chatID, result)
}

func (s *Service) handleCancel(chatID int64, userID int64) {
	if s.flow.Cancel(userID) {
		s.reply(chatID, cancelledMsg)
		return
	}

	s.reply(chatID, nothingToCancel)
}

func (s *Service) handleStep(ctx context.Context, chatID int64, result *flow.StepResult) {
	if result.Next != nil {
		s.reply(chatID, result.Next.Prompt)
		return
	}

	s.reply(chatID, submittedMsg)
	s.submitToAdmins(ctx, result.Completed)
}

// submitToAdmins posts the finished application to the admin chat with
// inline approve/decline buttons and remembers the message id so the
// notification can be removed on resolution.
func (s *Service) submitToAdmins(ctx context.Context, req *db.Request) {
	responses, err := s.requests.GetResponses(req.ID)
	if err != nil {
		s.logger.Error().Err(err).Int64("request_id", req.ID).Msg("failed to load responses for admin message")
	}

	msg := tgbotapi.NewMessage(s.cfg.AdminChatID, adminApplicationText(req, responses))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", fmt.Sprintf("%s%d", callbackApprovePrefix, req.ID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", fmt.Sprintf("%s%d", callbackDeclinePrefix, req.ID)),
		),
	)

	sent, err := s.botAPI.Send(msg)
	if err != nil {
		s.logger.Error().Err(err).Int64("request_id", req.ID).Msg("failed to post application to admin chat")
		return
	}

	if err = s.requests.SetAdminMessageID(req.ID, int64(sent.MessageID)); err != nil {
		s.logger.Error().Err(err).Int64("request_id", req.ID).Msg("failed to store admin message id")
	}
}

func (s *Service) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil || query.Message.Chat == nil || query.Message.Chat.ID != s.cfg.AdminChatID {
		s.answerCallback(query.ID, "")
		return
	}

	data := query.Data

	var (
		action string
		raw    string
	)
	switch {
	case strings.HasPrefix(data, callbackApprovePrefix):
		action = "approve"
		raw = strings.TrimPrefix(data, callbackApprovePrefix)
	case strings.HasPrefix(data, callbackDeclinePrefix):
		action = "decline"
		raw = strings.TrimPrefix(data, callbackDeclinePrefix)
	default:
		s.answerCallback(query.ID, "")
		return
	}

	requestID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Malformed callback data; the message itself still identifies
		// the request.
		req, lookupErr := s.requests.GetByAdminMessageID(int64(query.Message.MessageID))
		if lookupErr != nil {
			s.logger.Warn().Str("data", data).Msg("callback does not map to a request")
			s.answerCallback(query.ID, callbackNotFound)
			return
		}
		requestID = req.ID
	}

	switch action {
	case "approve":
		err = s.machine.Approve(ctx, requestID)
	case "decline":
		err = s.machine.Decline(ctx, requestID)
	}

	s.answerCallback(query.ID, s.resolutionReply(requestID, err))
}

// resolutionReply maps a transition outcome to the short callback toast
// shown to the admin who clicked.
func (s *Service) resolutionReply(requestID int64, err error) string {
	var extErr *approval.ExternalActionError

	switch {
	case err == nil:
		return callbackDone
	case approval.IsAlreadyResolved(err):
		s.logger.Info().Int64("request_id", requestID).Msg("duplicate resolution attempt")
		return callbackAlreadyHandled
	case errors.Is(err, db.ErrNotFound):
		return callbackNotFound
	case errors.As(err, &extErr):
		return callbackActionIncomplete
	default:
		s.logger.Error().Err(err).Int64("request_id", requestID).Msg("resolution failed")
		return storeErrorMsg
	}
}

func (s *Service) reply(chatID int64, text string) {
	if _, err := s.botAPI.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		s.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

func (s *Service) answerCallback(queryID string, text string) {
	if _, err := s.botAPI.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to answer callback query")
	}
}
