package migration

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/rflorenc/shop-migration-workbench/internal/models"
)

// Diff renders the comparison views of a conflict as a unified diff from the
// target record to the incoming source record. It is empty when the views
// are equal.
func Diff(o models.Outcome) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(renderView(o.TargetData)),
		B:        difflib.SplitLines(renderView(o.SourceData)),
		FromFile: "target",
		ToFile:   "source",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}

// renderView prints one "key: value" line per field in key order.
func renderView(view map[string]any) string {
	keys := make([]string, 0, len(view))
	for k := range view {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, renderValue(view[k]))
	}
	return b.String()
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
