package notify

import (
	"context"
	"errors"
	"strings"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/infra/notifier"
)

// Bot API descriptions meaning the chat will never receive messages from the bot.
var telegramUnsubscribeDescriptions = []string{
	"bot was blocked by the user",
	"user is deactivated",
	"chat not found",
	"bot was kicked",
}

// TelegramSender is implemented by *notifier.TelegramClient.
type TelegramSender interface {
	SendMessage(ctx context.Context, token, chatID, text string) error
}

// TelegramChannel delivers events through the publisher's Telegram bot.
// The subscription address is the chat id, credentials.AuthToken the bot token.
type TelegramChannel struct {
	sender TelegramSender
}

func NewTelegramChannel(sender TelegramSender) *TelegramChannel {
	return &TelegramChannel{sender: sender}
}

func (c *TelegramChannel) Name() string { return entity.ChannelTelegram }

func (c *TelegramChannel) Send(ctx context.Context, creds *entity.ChannelCredentials, msg Message) Delivery {
	if creds == nil || creds.AuthToken == "" {
		return transient("", ErrMissingCredentials)
	}

	text := msg.Body
	if msg.Description != "" {
		text += "\n\n" + msg.Description
	}

	err := c.sender.SendMessage(ctx, creds.AuthToken, msg.To, text)
	if err == nil {
		return delivered()
	}

	var apiErr *notifier.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == "invalid_chat_id" {
			return permanent(apiErr.Code, err)
		}
		desc := strings.ToLower(apiErr.Message)
		for _, d := range telegramUnsubscribeDescriptions {
			if strings.Contains(desc, d) {
				return permanent(d, err)
			}
		}
		return transient(apiErr.Code, err)
	}
	return transient("", err)
}
