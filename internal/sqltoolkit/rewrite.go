package sqltoolkit

import (
	"fmt"
	"regexp"
	"time"
)

// refMacroRe matches a ref() macro referencing another model by its
// canonical name, e.g. ref('stg_orders') or ref("stg_orders").
var refMacroRe = regexp.MustCompile(`(?i)ref\(\s*['"]([A-Za-z0-9_.]+)['"]\s*\)`)

// ExtractRefs returns the canonical names of every model referenced via
// ref(...) macros in sql, in first-occurrence order with duplicates removed.
func ExtractRefs(sql string) []string {
	matches := refMacroRe.FindAllStringSubmatch(sql, -1)
	seen := make(map[string]bool, len(matches))
	var refs []string
	for _, m := range matches {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			refs = append(refs, name)
		}
	}
	return refs
}

// ResolveRefs replaces every ref(...) macro with its fully qualified table
// name, as resolved by the resolve function (typically a lookup against
// the model graph's catalog/schema/table mapping).
func ResolveRefs(sql string, resolve func(name string) (qualified string, err error)) (string, error) {
	var resolveErr error
	result := refMacroRe.ReplaceAllStringFunc(sql, func(match string) string {
		if resolveErr != nil {
			return match
		}
		sub := refMacroRe.FindStringSubmatch(match)
		qualified, err := resolve(sub[1])
		if err != nil {
			resolveErr = err
			return match
		}
		return qualified
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return result, nil
}

// InjectDateWindow wraps sql as a subquery filtered to [start, end) on
// timeColumn, scoping an incremental run to its computed input range
// without mutating the model's own SQL text.
func InjectDateWindow(sql, timeColumn string, start, end time.Time, dialect Dialect) string {
	q := dialect.Quote(timeColumn)
	return fmt.Sprintf(
		"SELECT * FROM (%s) ironlayer_windowed WHERE %s >= TIMESTAMP '%s' AND %s < TIMESTAMP '%s'",
		sql, q, start.UTC().Format("2006-01-02 15:04:05"), q, end.UTC().Format("2006-01-02 15:04:05"),
	)
}
