package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
	assert.Equal(t, 8, LimitWithBuffer(7))
}

func TestCursorRoundTripAndErrors(t *testing.T) {
	want := Cursor{At: time.Date(2026, 5, 20, 12, 0, 0, 123, time.UTC), ID: uuid.New()}
	got, err := ParseCursor(EncodeCursor(want))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, want.At.Equal(got.At))
	assert.Equal(t, want.ID, got.ID)

	empty, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = ParseCursor("%%%")
	assert.Error(t, err)
	_, err = ParseCursor(EncodeCursor(Cursor{At: want.At})[:4])
	assert.Error(t, err)
}

func TestBuildTrimsBufferRow(t *testing.T) {
	cursorOf := func(n int) Cursor {
		return Cursor{At: time.Unix(int64(n), 0).UTC(), ID: uuid.Nil}
	}

	last := Build([]int{1, 2}, 2, cursorOf)
	assert.Equal(t, []int{1, 2}, last.Items)
	assert.Empty(t, last.NextCursor)

	page := Build([]int{5, 4, 3}, 2, cursorOf)
	assert.Equal(t, []int{5, 4}, page.Items)
	next, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, int64(4), next.At.Unix())
}
