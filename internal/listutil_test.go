package internal

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseListParams(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/requests", nil)
		p := parseListParams(r)
		assert.Equal(t, 50, p.limit)
		assert.Equal(t, 0, p.offset)
		assert.Empty(t, p.q)
		assert.Empty(t, p.sort)
	})

	t.Run("explicit values", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/requests?limit=10&offset=30&q=laptop&sort=-created_at", nil)
		p := parseListParams(r)
		assert.Equal(t, 10, p.limit)
		assert.Equal(t, 30, p.offset)
		assert.Equal(t, "laptop", p.q)
		assert.Equal(t, "-created_at", p.sort)
	})

	t.Run("limit is capped at 200", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/requests?limit=9999", nil)
		assert.Equal(t, 200, parseListParams(r).limit)
	})

	t.Run("garbage values fall back to defaults", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/requests?limit=abc&offset=-5", nil)
		p := parseListParams(r)
		assert.Equal(t, 50, p.limit)
		assert.Equal(t, 0, p.offset)
	})
}

func TestBuildOrderBy(t *testing.T) {
	allowed := map[string]string{
		"id":         "id",
		"created_at": "created_at",
		"urgency":    "urgency",
	}

	assert.Equal(t, " ORDER BY id ASC", buildOrderBy("", allowed))
	assert.Equal(t, " ORDER BY created_at ASC", buildOrderBy("created_at", allowed))
	assert.Equal(t, " ORDER BY created_at DESC", buildOrderBy("-created_at", allowed))
	assert.Equal(t, " ORDER BY urgency DESC, id ASC", buildOrderBy("-urgency,id", allowed))

	// Unknown keys are dropped; injection attempts never reach the SQL
	assert.Equal(t, " ORDER BY id ASC", buildOrderBy("password_hash", allowed))
	assert.Equal(t, " ORDER BY id ASC", buildOrderBy("id;DROP TABLE users", allowed))
	assert.Equal(t, " ORDER BY created_at ASC", buildOrderBy("nope,created_at", allowed))
}

func TestNullIfEmpty(t *testing.T) {
	assert.Nil(t, nullIfEmpty(nil))

	empty := "   "
	assert.Nil(t, nullIfEmpty(&empty))

	val := "hq-3"
	assert.Equal(t, "hq-3", nullIfEmpty(&val))
}
