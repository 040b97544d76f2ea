package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFixtures(t *testing.T) {
	t.Setenv("SEED_TWILIO_TOKEN", "secret-token")

	data := []byte(`
publishers:
  - title: Heat Advisory
    city: Springfield
    endpoint: https://alerts.example.com/feed?area=SPR
    subscriptions:
      - channel: sms
        address: "+15550001111"
      - channel: slack
        address: https://hooks.slack.example/T000/B000
    credentials:
      - channel: sms
        account_sid: AC123
        auth_token: ${SEED_TWILIO_TOKEN}
        from_number: "+15559990000"
  - title: Road Closures
    endpoint: https://roads.example.com/feed
    active: false
`)

	f, err := ParseFixtures(data)
	require.NoError(t, err)
	require.Len(t, f.Publishers, 2)

	first := f.Publishers[0]
	assert.Len(t, first.Subscriptions, 2)
	require.Len(t, first.Credentials, 1)
	assert.Equal(t, "secret-token", first.Credentials[0].AuthToken)
	assert.True(t, first.publisher().Active)
	assert.Equal(t, "Heat Advisory for Springfield", first.publisher().DisplayName())

	assert.False(t, f.Publishers[1].publisher().Active)
}

func TestParseFixtures_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{name: "not yaml", data: "publishers: [", wantErr: "failed to parse YAML"},
		{name: "empty", data: "publishers: []", wantErr: "no publishers"},
		{
			name:    "missing title",
			data:    "publishers:\n  - endpoint: https://a.example.com/feed\n",
			wantErr: "publishers[0]",
		},
		{
			name:    "unknown channel",
			data:    "publishers:\n  - title: A\n    endpoint: https://a.example.com/feed\n    subscriptions:\n      - channel: pager\n        address: x\n",
			wantErr: `unsupported channel "pager"`,
		},
		{
			name:    "missing address",
			data:    "publishers:\n  - title: A\n    endpoint: https://a.example.com/feed\n    subscriptions:\n      - channel: sms\n",
			wantErr: "address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixtures([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFixtures_MissingFile(t *testing.T) {
	_, err := LoadFixtures(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
