package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/artvault/marketplace/backend/internal/codec"
)

func TestRebindPostgresPlaceholders(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected string
	}{
		{
			name:     "no placeholders",
			query:    "SELECT 1",
			expected: "SELECT 1",
		},
		{
			name:     "sequential numbering",
			query:    "INSERT INTO t (a, b, c) VALUES (?, ?, ?)",
			expected: "INSERT INTO t (a, b, c) VALUES ($1, $2, $3)",
		},
		{
			name:     "question mark inside string literal",
			query:    "SELECT * FROM t WHERE a = '?' AND b = ?",
			expected: "SELECT * FROM t WHERE a = '?' AND b = $1",
		},
		{
			name:     "escaped quote inside literal",
			query:    "SELECT 'it''s ?' , ?",
			expected: "SELECT 'it''s ?' , $1",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, rebindPostgresPlaceholders(tc.query))
		})
	}
}

func TestAuctionStateText(t *testing.T) {
	assert.Equal(t, "Created", auctionStateText(codec.AuctionCreated))
	assert.Equal(t, "Started", auctionStateText(codec.AuctionStarted))
	assert.Equal(t, "Ended", auctionStateText(codec.AuctionEnded))
	assert.Equal(t, "Unknown(9)", auctionStateText(codec.AuctionState(9)))
}

func TestManagerStatusText(t *testing.T) {
	assert.Equal(t, "Initialized", managerStatusText(codec.ManagerInitialized))
	assert.Equal(t, "Disbursing", managerStatusText(codec.ManagerDisbursing))
	assert.Equal(t, "Unknown(7)", managerStatusText(codec.AuctionManagerStatus(7)))
}

func TestTrimPadding(t *testing.T) {
	assert.Equal(t, "Prize #1", trimPadding("Prize #1\x00\x00\x00"))
	assert.Equal(t, "", trimPadding("\x00\x00"))
	assert.Equal(t, "plain", trimPadding("plain"))
}
