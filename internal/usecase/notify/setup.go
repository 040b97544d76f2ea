package notify

import (
	"log/slog"
	"time"

	"feedwatch/internal/infra/notifier"
	"feedwatch/internal/pkg/config"
)

// LoadChannelsFromEnv builds the enabled notification channels.
//
// Environment variables:
//   - SMS_ENABLED: enable the Twilio SMS channel (default: true)
//   - TWILIO_BASE_URL: Twilio API base URL (default: https://api.twilio.com)
//   - TWILIO_RPS: sends per second per Twilio account (default: 1)
//   - SLACK_ENABLED: enable the Slack webhook channel (default: false)
//   - TELEGRAM_ENABLED: enable the Telegram bot channel (default: false)
//   - NOTIFY_HTTP_TIMEOUT: HTTP timeout of channel calls (default: 10s)
//
// Invalid values fall back to their defaults with a warning.
func LoadChannelsFromEnv(logger *slog.Logger) []Channel {
	if logger == nil {
		logger = slog.Default()
	}
	warn := func(warnings []string) {
		for _, w := range warnings {
			logger.Warn("Configuration fallback applied", slog.String("warning", w))
		}
	}

	timeout := config.LoadEnvDuration("NOTIFY_HTTP_TIMEOUT", 10*time.Second, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Second, time.Minute)
	})
	warn(timeout.Warnings)

	var channels []Channel

	smsEnabled := config.LoadEnvBool("SMS_ENABLED", true)
	warn(smsEnabled.Warnings)
	if smsEnabled.Value {
		baseURL := config.LoadEnvWithFallback("TWILIO_BASE_URL", notifier.DefaultTwilioBaseURL, config.ValidateBaseURL)
		warn(baseURL.Warnings)
		rps := config.LoadEnvInt("TWILIO_RPS", 1, func(v int) error { return config.ValidateIntRange(v, 1, 100) })
		warn(rps.Warnings)

		channels = append(channels, NewSMSChannel(notifier.NewTwilioClient(notifier.TwilioConfig{
			BaseURL:           baseURL.Value,
			Timeout:           timeout.Value,
			RequestsPerSecond: float64(rps.Value),
		})))
		logger.Info("SMS channel initialized", slog.String("base_url", baseURL.Value))
	} else {
		logger.Info("SMS channel disabled")
	}

	slackEnabled := config.LoadEnvBool("SLACK_ENABLED", false)
	warn(slackEnabled.Warnings)
	if slackEnabled.Value {
		channels = append(channels, NewSlackChannel(notifier.NewSlackClient(notifier.SlackConfig{Timeout: timeout.Value})))
		logger.Info("Slack channel initialized")
	} else {
		logger.Info("Slack channel disabled")
	}

	telegramEnabled := config.LoadEnvBool("TELEGRAM_ENABLED", false)
	warn(telegramEnabled.Warnings)
	if telegramEnabled.Value {
		channels = append(channels, NewTelegramChannel(notifier.NewTelegramClient(timeout.Value)))
		logger.Info("Telegram channel initialized")
	} else {
		logger.Info("Telegram channel disabled")
	}

	return channels
}
