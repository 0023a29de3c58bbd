package platform

import (
	"regexp"
	"strings"
)

// NumericID returns the opaque suffix of a global id such as
// "gid://shopify/Product/123". Bare ids are returned unchanged.
func NumericID(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	if i := strings.IndexByte(id, '?'); i >= 0 {
		id = id[:i]
	}
	return id
}

// ToGID builds the global id for a resource type. Ids that already are
// global ids are returned unchanged.
func ToGID(resource, id string) string {
	if strings.HasPrefix(id, "gid://") {
		return id
	}
	return "gid://shopify/" + resource + "/" + NumericID(id)
}

var plainHandle = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// HandleQuery builds a search query matching a handle exactly.
func HandleQuery(handle string) string {
	if plainHandle.MatchString(handle) {
		return "handle:" + handle
	}
	escaped := strings.ReplaceAll(handle, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `handle:"` + escaped + `"`
}
