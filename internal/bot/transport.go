package bot

import (
	"context"
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Transport implements approval.Transport over the Telegram Bot API.
type Transport struct {
	api *tgbotapi.BotAPI
}

func NewTransport(api *tgbotapi.BotAPI) *Transport {
	return &Transport{api: api}
}

func (t *Transport) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	sent, err := t.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, fmt.Errorf("Transport.SendMessage: %w", err)
	}

	return int64(sent.MessageID), nil
}

func (t *Transport) DeleteMessage(ctx context.Context, chatID int64, messageID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, int(messageID))); err != nil {
		return fmt.Errorf("Transport.DeleteMessage: %w", err)
	}

	return nil
}

// AddUserToGroup approves the user's join request on the target group. It
// fails when the user never knocked on the group, in which case the caller
// falls back to an invite link.
func (t *Transport) AddUserToGroup(ctx context.Context, groupID int64, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := tgbotapi.ApproveChatJoinRequestConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: groupID},
		UserID:     userID,
	}

	if _, err := t.api.Request(cfg); err != nil {
		return fmt.Errorf("Transport.AddUserToGroup: %w", err)
	}

	return nil
}

// CreateInviteLink issues a single-use invite link to the target group.
func (t *Transport) CreateInviteLink(ctx context.Context, groupID int64, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: groupID},
		Name:        name,
		MemberLimit: 1,
	}

	resp, err := t.api.Request(cfg)
	if err != nil {
		return "", fmt.Errorf("Transport.CreateInviteLink: %w", err)
	}

	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("Transport.CreateInviteLink: decode response: %w", err)
	}

	return link.InviteLink, nil
}
