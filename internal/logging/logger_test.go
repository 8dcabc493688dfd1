package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artvault/marketplace/backend/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw      string
		expected slog.Level
		wantErr  bool
	}{
		{raw: "", expected: slog.LevelInfo},
		{raw: "info", expected: slog.LevelInfo},
		{raw: "DEBUG", expected: slog.LevelDebug},
		{raw: " warn ", expected: slog.LevelWarn},
		{raw: "warning", expected: slog.LevelWarn},
		{raw: "error", expected: slog.LevelError},
		{raw: "loud", wantErr: true},
	}
	for _, tc := range tests {
		level, err := parseLevel(tc.raw)
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.expected, level, tc.raw)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, _, err := New("indexer", config.LogConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestNewRejectsUnknownOutput(t *testing.T) {
	_, _, err := New("indexer", config.LogConfig{Output: "syslog"})
	assert.Error(t, err)
}

func TestForAuctionTagsEveryLine(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))
	auction := solana.NewWallet().PublicKey()

	ForAuction(base, auction).Info("claim pass complete")

	assert.Contains(t, buf.String(), "auction="+auction.String())
}
