package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatements(t *testing.T) {
	stmts := Statements()
	require.Len(t, stmts, 6)

	for _, s := range stmts {
		assert.True(t, strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS"), s)
		assert.NotContains(t, s, "--")
	}
	assert.Contains(t, stmts[5], "uq_bookings_active_seat (showtime_id, seat_id, active_slot)")
}
