package entity

import (
	"strings"
	"unicode/utf8"
)

// joinTags renders a tag list the way the REST API accepts it.
func joinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// stringOr returns *s, or def if s is nil.
func stringOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// weightUnit converts a GraphQL weight unit to its REST spelling.
func weightUnit(unit string) string {
	switch unit {
	case "GRAMS":
		return "g"
	case "OUNCES":
		return "oz"
	case "POUNDS":
		return "lb"
	}
	return "kg"
}

var sortOrders = map[string]string{
	"PRICE_DESC":   "price-desc",
	"PRICE_ASC":    "price-asc",
	"MANUAL":       "manual",
	"CREATED_DESC": "created-desc",
	"CREATED":      "created",
	"BEST_SELLING": "best-selling",
	"ALPHA_DESC":   "alpha-des",
	"ALPHA_ASC":    "alpha-asc",
}

// sortOrder converts a GraphQL collection sort order to its REST spelling.
// Unknown values pass through; empty means best-selling.
func sortOrder(gql string) string {
	if v, ok := sortOrders[gql]; ok {
		return v
	}
	if gql == "" {
		return "best-selling"
	}
	return gql
}

// commentable converts a GraphQL blog comment policy to the REST value.
func commentable(policy string) string {
	switch policy {
	case "OPEN":
		return "yes"
	case "MODERATE":
		return "moderate"
	}
	return "no"
}
