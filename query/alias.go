package query

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// AliasHandler allocates short table aliases for one statement. An alias is
// the lowercased first letter of the table name, suffixed with an increasing
// index once the letter is taken: user_table, users -> u, u2.
//
// The zero value is not usable; create handlers with NewAliasHandler.
type AliasHandler struct {
	aliases map[string]string // alias -> table
	first   map[string]string // table -> first alias
	indexes map[string]int    // base letter -> last index
}

// NewAliasHandler returns an empty handler.
func NewAliasHandler() *AliasHandler {
	return &AliasHandler{
		aliases: make(map[string]string),
		first:   make(map[string]string),
		indexes: make(map[string]int),
	}
}

// GenerateShortAlias allocates a new alias for the table.
func (h *AliasHandler) GenerateShortAlias(table string) string {
	base := aliasBase(table)
	alias := base
	if _, ok := h.indexes[base]; !ok {
		h.indexes[base] = 1
	}
	for h.has(alias) {
		h.indexes[base]++
		alias = base + strconv.Itoa(h.indexes[base])
	}
	h.aliases[alias] = table
	if _, ok := h.first[table]; !ok {
		h.first[table] = alias
	}
	return alias
}

// aliasBase returns the lowercased first letter of the table name. Names
// not starting with an ASCII letter get "t", so aliases stay plain words.
func aliasBase(table string) string {
	r, _ := utf8.DecodeRuneInString(table)
	r = unicode.ToLower(r)
	if r < 'a' || r > 'z' {
		return "t"
	}
	return string(r)
}

// ShortAlias returns the first alias allocated for the table, allocating
// one if there is none.
func (h *AliasHandler) ShortAlias(table string) string {
	if alias, ok := h.first[table]; ok {
		return alias
	}
	return h.GenerateShortAlias(table)
}

// TableName returns the table an alias was allocated for.
func (h *AliasHandler) TableName(alias string) (string, bool) {
	t, ok := h.aliases[alias]
	return t, ok
}

// NewAlias maps an allocated alias to one that collides with no alias the
// handler has produced so far: u -> u3 when u2 is the last allocated "u"
// alias. Unknown aliases are returned unchanged. It does not allocate, so
// repeated calls return the same result.
func (h *AliasHandler) NewAlias(alias string) string {
	if !h.has(alias) {
		return alias
	}
	base := strings.TrimRight(alias, "0123456789")
	i, _ := strconv.Atoi(alias[len(base):])
	if i == 0 {
		i = 1
	}
	return base + strconv.Itoa(h.indexes[base]+i)
}

// Clone returns a copy of the handler for a nested statement.
func (h *AliasHandler) Clone() *AliasHandler {
	c := NewAliasHandler()
	for k, v := range h.aliases {
		c.aliases[k] = v
	}
	for k, v := range h.first {
		c.first[k] = v
	}
	for k, v := range h.indexes {
		c.indexes[k] = v
	}
	return c
}

// absorb raises the indexes of h to those of a nested handler, so aliases
// regenerated by h never collide with aliases the nested statement used.
func (h *AliasHandler) absorb(c *AliasHandler) {
	for k, v := range c.indexes {
		if v > h.indexes[k] {
			h.indexes[k] = v
		}
	}
}

func (h *AliasHandler) has(alias string) bool {
	_, ok := h.aliases[alias]
	return ok
}
