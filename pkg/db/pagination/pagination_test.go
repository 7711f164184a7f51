package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	createdAt := time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)
	token := TokenFor(42, createdAt)
	require.NotEmpty(t, token)

	pos, err := ParseToken(token)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(42), pos.ID)
	assert.True(t, pos.CreatedAt.Equal(createdAt))
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	pos, err := ParseToken("")
	assert.NoError(t, err)
	assert.Nil(t, pos)

	_, err = ParseToken("not-base64!!")
	assert.ErrorIs(t, err, ErrInvalidPageToken)

	bad, _ := EncodeCursor(Cursor{ID: "abc", CreatedAt: "2025-01-01T00:00:00Z"})
	_, err = ParseToken(bad)
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestBuildCursorPageInfo(t *testing.T) {
	a, b, c := 1, 2, 3
	rows := []*int{&a, &b, &c}

	page, info := BuildCursorPageInfo(rows, 2, func(v *int) string { return "tok" })
	assert.Len(t, page, 2)
	assert.True(t, info.HasMore)
	assert.Equal(t, "tok", info.NextPageToken)

	page, info = BuildCursorPageInfo(rows, 3, func(v *int) string { return "tok" })
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestPaginationSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Size())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Size())
}
