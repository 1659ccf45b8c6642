package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ning0612/drivesync/internal/domain"
)

func TestParseRows(t *testing.T) {
	rows, err := parseRows(`[["name","qty"],["apple",3],[]]`)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []any{"name", "qty"}, rows[0])
	assert.Equal(t, float64(3), rows[1][1])
	assert.Empty(t, rows[2])
}

func TestParseRows_Invalid(t *testing.T) {
	for _, raw := range []string{"", "{}", `["flat"]`, "[[1,2]"} {
		_, err := parseRows(raw)
		assert.ErrorIs(t, err, domain.ErrPrecondition, raw)
	}
}
