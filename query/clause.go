package query

import "fmt"

// Kind is the kind of statement a Query compiles to.
type Kind uint8

// Statement kinds.
const (
	KindSelect Kind = iota
	KindUpdate
	KindDelete
	KindInsert
	KindCreate
)

// String returns the SQL keyword of the statement kind.
func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	case KindInsert:
		return "INSERT"
	case KindCreate:
		return "CREATE"
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ClauseKind identifies a DQL clause. Clauses are parsed in ClauseKind
// order, whatever order they were given in.
type ClauseKind uint8

// Clause kinds.
const (
	ClauseSelect ClauseKind = iota
	ClauseFrom
	ClauseSet
	ClauseWhere
	ClauseGroupBy
	ClauseHaving
	ClauseOrderBy
	ClauseLimit
	ClauseOffset
	// ClauseJoinCondition is the ON condition of a join. It has no bucket of
	// its own: conditions are parsed while the FROM clause registers joins.
	ClauseJoinCondition
)

// numClauses is the number of clause buckets.
const numClauses = int(ClauseOffset) + 1

var clauseNames = [...]string{
	ClauseSelect:        "SELECT",
	ClauseFrom:          "FROM",
	ClauseSet:           "SET",
	ClauseWhere:         "WHERE",
	ClauseGroupBy:       "GROUP BY",
	ClauseHaving:        "HAVING",
	ClauseOrderBy:       "ORDER BY",
	ClauseLimit:         "LIMIT",
	ClauseOffset:        "OFFSET",
	ClauseJoinCondition: "ON",
}

// String returns the clause keyword.
func (k ClauseKind) String() string {
	if int(k) < len(clauseNames) {
		return clauseNames[k]
	}
	return fmt.Sprintf("ClauseKind(%d)", k)
}

// clauseParser parses one fragment of a clause bucket into the state.
type clauseParser func(s *state, fragment string) error

// parsers maps every clause bucket to its parser. It is filled in init:
// parsing a subquery dispatches through the table again.
var parsers [numClauses]clauseParser

func init() {
	parsers = [numClauses]clauseParser{
		ClauseSelect:  (*state).parseSelect,
		ClauseFrom:    (*state).parseFrom,
		ClauseSet:     (*state).parseSet,
		ClauseWhere:   (*state).parseWhere,
		ClauseGroupBy: (*state).parseGroupBy,
		ClauseHaving:  (*state).parseHaving,
		ClauseOrderBy: (*state).parseOrderBy,
		ClauseLimit:   (*state).parseLimit,
		ClauseOffset:  (*state).parseOffset,
	}
}

// keywords maps the clause keywords recognized by Parse to their bucket.
// Statement keywords set the statement kind; UPDATE carries the FROM path.
var keywords = map[string]struct {
	clause ClauseKind
	kind   Kind
	stmt   bool
}{
	"select": {clause: ClauseSelect, kind: KindSelect, stmt: true},
	"update": {clause: ClauseFrom, kind: KindUpdate, stmt: true},
	"delete": {clause: ClauseFrom, kind: KindDelete, stmt: true},
	"insert": {clause: ClauseFrom, kind: KindInsert, stmt: true},
	"create": {clause: ClauseFrom, kind: KindCreate, stmt: true},
	"from":   {clause: ClauseFrom},
	"set":    {clause: ClauseSet},
	"where":  {clause: ClauseWhere},
	"group":  {clause: ClauseGroupBy},
	"having": {clause: ClauseHaving},
	"order":  {clause: ClauseOrderBy},
	"limit":  {clause: ClauseLimit},
	"offset": {clause: ClauseOffset},
}
