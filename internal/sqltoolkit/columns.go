package sqltoolkit

import (
	"fmt"
	"regexp"
	"strings"
)

// Column is one output column of a SELECT statement: its alias and the raw
// expression text that computes it.
type Column struct {
	Alias      string
	Expression string
}

var (
	selectRe  = regexp.MustCompile(`(?is)\bselect\b\s*(distinct\s+)?(.*?)\bfrom\b`)
	asAliasRe = regexp.MustCompile(`(?is)^(.*?)\s+as\s+([A-Za-z_][A-Za-z0-9_]*)$`)
	bareAliasRe = regexp.MustCompile(`(?is)^(.*[\s)])\s+([A-Za-z_][A-Za-z0-9_]*)$`)
	simpleColRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
)

// ExtractSelectColumns finds the outermost SELECT's column list and returns
// one Column per top-level comma-separated item, with its alias resolved.
// This is a practical scanner over the common SELECT shapes models use
// (aliased expressions, bare column refs, `table.col`), not a full
// expression-grammar parser: it is good enough to drive lineage display and
// changed-column diffing, where an item whose alias cannot be found gets
// the positional alias `_col_N` rather than incorrect output.
func ExtractSelectColumns(sql string) ([]Column, error) {
	stripped := stripCommentsForScan(sql)
	match := selectRe.FindStringSubmatch(stripped)
	if match == nil {
		return nil, fmt.Errorf("sqltoolkit: no SELECT ... FROM clause found")
	}

	list := match[2]
	items := SplitTopLevel(list, ',')

	columns := make([]Column, 0, len(items))
	for i, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		columns = append(columns, parseColumnItem(item, i))
	}
	return columns, nil
}

func parseColumnItem(item string, index int) Column {
	if m := asAliasRe.FindStringSubmatch(item); m != nil {
		return Column{Alias: m[2], Expression: strings.TrimSpace(m[1])}
	}
	if item == "*" || strings.HasSuffix(item, ".*") {
		return Column{Alias: item, Expression: item}
	}
	if simpleColRe.MatchString(item) {
		parts := strings.Split(item, ".")
		return Column{Alias: parts[len(parts)-1], Expression: item}
	}
	if m := bareAliasRe.FindStringSubmatch(item); m != nil && !strings.ContainsAny(m[2], "()+-*/") {
		return Column{Alias: m[2], Expression: strings.TrimSpace(m[1])}
	}
	return Column{Alias: fmt.Sprintf("_col_%d", index), Expression: item}
}

func stripCommentsForScan(sql string) string {
	var b strings.Builder
	for _, tok := range Tokenize(sql) {
		switch tok.Kind {
		case TokenLineComment, TokenBlockComment:
			continue
		default:
			b.WriteString(tok.Raw)
		}
	}
	return b.String()
}

// TransformKind classifies how an output column derives from its source
// expression, for column-lineage display.
type TransformKind string

const (
	TransformDirect     TransformKind = "direct"
	TransformAggregate   TransformKind = "aggregate"
	TransformExpression TransformKind = "expression"
	TransformWindow     TransformKind = "window"
	TransformLiteral    TransformKind = "literal"
)

var aggregateFuncRe = regexp.MustCompile(`(?i)\b(sum|count|avg|min|max|array_agg|string_agg|percentile_cont)\s*\(`)
var literalRe = regexp.MustCompile(`^\s*('.*'|-?\d+(\.\d+)?|true|false|null)\s*$`)

// ClassifyTransform inspects a column's expression text and returns the
// transform kind feeding column lineage.
func ClassifyTransform(expr string) TransformKind {
	trimmed := strings.TrimSpace(expr)
	switch {
	case literalRe.MatchString(trimmed):
		return TransformLiteral
	case strings.Contains(strings.ToLower(trimmed), " over ") || strings.Contains(strings.ToLower(trimmed), " over("):
		return TransformWindow
	case aggregateFuncRe.MatchString(trimmed):
		return TransformAggregate
	case simpleColRe.MatchString(trimmed):
		return TransformDirect
	default:
		return TransformExpression
	}
}

// LineageEdge describes where one output column's value comes from.
type LineageEdge struct {
	SourceTable  string
	SourceColumn string
	Transform    TransformKind
}

// ColumnLineage maps each output column alias to the lineage edges feeding it.
func ColumnLineage(sql string) (map[string][]LineageEdge, error) {
	cols, err := ExtractSelectColumns(sql)
	if err != nil {
		return nil, err
	}

	lineage := make(map[string][]LineageEdge, len(cols))
	for _, col := range cols {
		kind := ClassifyTransform(col.Expression)
		table, column := splitQualifiedRef(col.Expression)
		lineage[col.Alias] = []LineageEdge{{SourceTable: table, SourceColumn: column, Transform: kind}}
	}
	return lineage, nil
}

func splitQualifiedRef(expr string) (table, column string) {
	trimmed := strings.TrimSpace(expr)
	if !simpleColRe.MatchString(trimmed) {
		return "", ""
	}
	parts := strings.Split(trimmed, ".")
	if len(parts) == 1 {
		return "", parts[0]
	}
	return strings.Join(parts[:len(parts)-1], "."), parts[len(parts)-1]
}
