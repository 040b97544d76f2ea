package entity

import "strconv"

// ChannelCredentials holds the per-publisher secrets for one channel.
// For SMS, AccountSID/AuthToken/FromNumber are the Twilio account values.
// For Telegram, AuthToken is the bot token. Slack webhooks carry their own
// secret in the subscription address, so no credentials are required.
type ChannelCredentials struct {
	PublisherID int64
	Channel     string
	AccountSID  string
	AuthToken   string
	FromNumber  string
}

// String hides secrets when credentials end up in logs.
func (c ChannelCredentials) String() string {
	return "ChannelCredentials{publisher=" + strconv.FormatInt(c.PublisherID, 10) + ", channel=" + c.Channel + "}"
}
