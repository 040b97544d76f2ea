package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// maxTelegramMessageLength is the Bot API limit for message text.
const maxTelegramMessageLength = 4096

// BotSender is the part of *tgbotapi.BotAPI the client needs.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotFactory builds a bot for a token.
type BotFactory func(token string) (BotSender, error)

// TelegramClient sends messages through the Telegram Bot API. Bots are created
// lazily per token (publishers may run their own bot) and cached.
type TelegramClient struct {
	newBot      BotFactory
	httpClient  *http.Client
	mu          sync.Mutex
	bots        map[string]BotSender
	rateLimiter *KeyedRateLimiter
}

// NewTelegramClient creates a client whose bots share one HTTP client bounded
// by timeout.
func NewTelegramClient(timeout time.Duration) *TelegramClient {
	c := NewTelegramClientWithFactory(nil)
	c.httpClient = &http.Client{Timeout: timeout}
	c.newBot = func(token string) (BotSender, error) {
		return tgbotapi.NewBotAPIWithClient(token, c.httpClient)
	}
	return c
}

// NewTelegramClientWithFactory creates a client with a custom bot constructor.
// Telegram allows about 30 messages per second per bot and 1 per second per chat.
func NewTelegramClientWithFactory(factory BotFactory) *TelegramClient {
	return &TelegramClient{
		newBot:      factory,
		bots:        make(map[string]BotSender),
		rateLimiter: NewKeyedRateLimiter(30, 30, 1, 1),
	}
}

// SendMessage sends text to chatID using the bot identified by token.
// Bot API failures are returned as *APIError with the API description as Message.
// tgbotapi takes no context, so the call returns as soon as ctx is done; the
// request itself is bounded by the HTTP client timeout.
func (c *TelegramClient) SendMessage(ctx context.Context, token, chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return &APIError{Provider: "telegram", Code: "invalid_chat_id", Message: "chat id is not numeric: " + chatID}
	}

	bot, err := c.bot(ctx, token)
	if err != nil {
		return err
	}

	if err := c.rateLimiter.Allow(ctx, chatID); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	msg := tgbotapi.NewMessage(id, truncate(text, maxTelegramMessageLength, "..."))
	msg.DisableWebPagePreview = true
	err = withContext(ctx, func() error {
		_, err := bot.Send(msg)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		return &APIError{Provider: "telegram", Message: err.Error()}
	}
	return nil
}

// bot returns the cached bot for token or creates one. Creation calls getMe
// over the network, so it runs without holding mu.
func (c *TelegramClient) bot(ctx context.Context, token string) (BotSender, error) {
	c.mu.Lock()
	b, ok := c.bots[token]
	c.mu.Unlock()
	if ok {
		return b, nil
	}

	err := withContext(ctx, func() error {
		var err error
		b, err = c.newBot(token)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("telegram create bot: %w", err)
		}
		// NewBotAPI calls getMe, so an invalid token fails here
		return nil, &APIError{Provider: "telegram", Message: "create bot: " + err.Error()}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.bots[token]; ok {
		return existing, nil
	}
	c.bots[token] = b
	return b, nil
}

// withContext runs fn and waits for it or for ctx, whichever comes first.
// On ctx expiry fn keeps running in the background until it returns.
func withContext(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
