// Package sqltoolkit provides SQL tokenization, canonicalization, diffing,
// ref-macro resolution, and column lineage extraction for the model
// definitions that ironlayer plans and executes. It is a hand-written
// tokenizer and a practical, non-exhaustive parser over the SELECT/CTE
// subset of SQL actually used by transformation models — not a general
// SQL grammar.
package sqltoolkit

import "strings"

// Dialect selects warehouse-specific identifier quoting (see Quote).
// Tokenization and the keyword set are the same for every dialect.
type Dialect int

const (
	// Databricks uses backtick identifier quoting.
	Databricks Dialect = iota
	// Redshift uses double-quote identifier quoting, Postgres-style.
	Redshift
)

func (d Dialect) String() string {
	switch d {
	case Databricks:
		return "databricks"
	case Redshift:
		return "redshift"
	default:
		return "unknown"
	}
}

// ParseDialect parses a dialect name, defaulting to Databricks on no match.
func ParseDialect(name string) Dialect {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "redshift":
		return Redshift
	default:
		return Databricks
	}
}

// Quote quotes an identifier per dialect rules.
func (d Dialect) Quote(ident string) string {
	switch d {
	case Redshift:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	default:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
}
