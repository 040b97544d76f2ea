package notify

import (
	"context"
	"errors"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/infra/notifier"
)

// Twilio error codes meaning the number will never accept messages from us.
//
//	21211 invalid 'To' phone number
//	21610 recipient replied STOP
//	21612 'To' number is not currently reachable via SMS
//	21614 'To' number is not a valid mobile number
var smsUnsubscribeCodes = map[string]struct{}{
	"21211": {},
	"21610": {},
	"21612": {},
	"21614": {},
}

// SMSSender is implemented by *notifier.TwilioClient.
type SMSSender interface {
	SendSMS(ctx context.Context, sms notifier.SMS) (string, error)
}

// SMSChannel delivers events as text messages through Twilio.
type SMSChannel struct {
	sender SMSSender
}

func NewSMSChannel(sender SMSSender) *SMSChannel {
	return &SMSChannel{sender: sender}
}

func (c *SMSChannel) Name() string { return entity.ChannelSMS }

func (c *SMSChannel) Send(ctx context.Context, creds *entity.ChannelCredentials, msg Message) Delivery {
	if creds == nil || creds.AccountSID == "" || creds.AuthToken == "" {
		return transient("", ErrMissingCredentials)
	}

	_, err := c.sender.SendSMS(ctx, notifier.SMS{
		AccountSID: creds.AccountSID,
		AuthToken:  creds.AuthToken,
		From:       creds.FromNumber,
		To:         msg.To,
		Body:       msg.Body,
	})
	if err == nil {
		return delivered()
	}

	var apiErr *notifier.APIError
	if errors.As(err, &apiErr) {
		if _, ok := smsUnsubscribeCodes[apiErr.Code]; ok {
			return permanent(apiErr.Code, err)
		}
		return transient(apiErr.Code, err)
	}
	return transient("", err)
}
