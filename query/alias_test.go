package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAliasHandler(t *testing.T) {
	t.Parallel()
	h := NewAliasHandler()
	assert.Equal(t, "u", h.GenerateShortAlias("user_table"))
	assert.Equal(t, "u2", h.GenerateShortAlias("user_table"))
	assert.Equal(t, "u3", h.GenerateShortAlias("users"))
	assert.Equal(t, "p", h.GenerateShortAlias("phonenumber"))
	assert.Equal(t, "u", h.ShortAlias("user_table"))
	assert.Equal(t, "u3", h.ShortAlias("users"))
	assert.Equal(t, "e", h.ShortAlias("email"))

	table, ok := h.TableName("u2")
	assert.True(t, ok)
	assert.Equal(t, "user_table", table)
	_, ok = h.TableName("x")
	assert.False(t, ok)
}

func TestAliasHandlerNewAlias(t *testing.T) {
	t.Parallel()
	h := NewAliasHandler()
	h.GenerateShortAlias("user_table")
	h.GenerateShortAlias("user_friend")
	h.GenerateShortAlias("phonenumber")

	assert.Equal(t, "u3", h.NewAlias("u"))
	assert.Equal(t, "u4", h.NewAlias("u2"))
	assert.Equal(t, "p2", h.NewAlias("p"))
	assert.Equal(t, "x", h.NewAlias("x"))
	// NewAlias does not allocate.
	assert.Equal(t, "u3", h.NewAlias("u"))
	assert.Equal(t, "u3", h.GenerateShortAlias("users"))
}

func TestAliasHandlerCloneAbsorb(t *testing.T) {
	t.Parallel()
	h := NewAliasHandler()
	h.GenerateShortAlias("user_table")

	c := h.Clone()
	assert.Equal(t, "u2", c.GenerateShortAlias("user_table"))
	assert.Equal(t, "u2", h.GenerateShortAlias("users"), "clone allocations do not leak")

	c.GenerateShortAlias("user_table")
	h.absorb(c)
	assert.Equal(t, "u4", h.GenerateShortAlias("user_table"))
	_, ok := h.TableName("u3")
	assert.False(t, ok)
}

func TestAliasHandlerNonASCII(t *testing.T) {
	t.Parallel()
	h := NewAliasHandler()
	assert.Equal(t, "t", h.GenerateShortAlias("émail"))
	assert.Equal(t, "t2", h.GenerateShortAlias("ünit"))
	assert.Equal(t, "t3", h.GenerateShortAlias(""))
	assert.Equal(t, "o", h.GenerateShortAlias("Order"))
	assert.Equal(t, "t4", h.NewAlias("t"))
	assert.Equal(t, "t5", h.NewAlias("t2"))
}
