package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit: MaxLimit, MaxLimit + 50: MaxLimit}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeLimit(in), "limit %d", in)
	}
}

func TestCursorIsURLSafe(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 123, time.FixedZone("IST", 19800)), ID: uuid.New()}

	token := EncodeCursor(cursor)
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")

	parsed, err := ParseCursor(token)
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.True(t, cursor.CreatedAt.Equal(parsed.CreatedAt))
	assert.Equal(t, time.UTC, parsed.CreatedAt.Location())
	assert.Equal(t, cursor.ID, parsed.ID)
}

func TestParseCursor(t *testing.T) {
	parsed, err := ParseCursor("   ")
	require.NoError(t, err)
	assert.Nil(t, parsed)

	for _, bad := range []string{
		"%%%",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("yesterday|" + uuid.NewString())),
		base64.RawURLEncoding.EncodeToString([]byte("2026-03-01T10:00:00Z|not-a-uuid")),
	} {
		_, err := ParseCursor(bad)
		assert.Error(t, err, bad)
	}
}

type row struct {
	at time.Time
	id uuid.UUID
}

func TestTrim(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]row, 4)
	for i := range rows {
		rows[i] = row{at: base.Add(-time.Duration(i) * time.Minute), id: uuid.New()}
	}
	key := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page, next := Trim(rows, 3, key)
	require.Len(t, page, 3)
	require.NotNil(t, next)
	assert.Equal(t, rows[2].id, next.ID)

	page, next = Trim(rows[:3], 3, key)
	assert.Len(t, page, 3)
	assert.Nil(t, next)
}

func TestPageWindow(t *testing.T) {
	p := Page{Page: 3, Limit: 20}
	assert.Equal(t, 40, p.Offset())
	assert.Equal(t, 3, p.TotalPages(41))
	assert.Equal(t, 0, p.TotalPages(0))

	defaulted := Page{Page: -1}.Normalize()
	assert.Equal(t, 1, defaulted.Page)
	assert.Equal(t, DefaultLimit, defaulted.Limit)
}
