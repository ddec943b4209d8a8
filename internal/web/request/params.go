package request

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/store"
)

// filterPattern matches query parameters like filter[key]
var filterPattern = regexp.MustCompile(`^filter\[([^\]]+)\]$`)

// reserved query keys that are never treated as filters
var reserved = map[string]bool{
	"limit": true, "offset": true, "sort": true, "search": true, "q": true, "token": true,
	"direction": true, "band": true, "format": true, "profile_id": true,
}

// ParseFilter collects filter[key]=value pairs and bare key=value pairs.
// The bracketed form wins when both are present.
func ParseFilter(r *http.Request) map[string]string {
	result := make(map[string]string)
	query := r.URL.Query()

	for key, values := range query {
		if len(values) == 0 || reserved[key] || filterPattern.MatchString(key) {
			continue
		}
		result[key] = values[0]
	}
	for key, values := range query {
		matches := filterPattern.FindStringSubmatch(key)
		if len(matches) == 2 && len(values) > 0 {
			result[matches[1]] = values[0]
		}
	}
	return result
}

// ParseSort parses ?sort=-created_at,title into its fields.
// The "-" prefix indicates descending order.
func ParseSort(r *http.Request) []string {
	raw := r.URL.Query().Get("sort")
	if raw == "" {
		return []string{}
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ParseList builds normalized list options from the query string
func ParseList(r *http.Request) (store.ListOptions, error) {
	q := r.URL.Query()
	opts := store.ListOptions{
		Filters: ParseFilter(r),
		Sort:    ParseSort(r),
		Search:  strings.TrimSpace(q.Get("search")),
	}
	if opts.Search == "" {
		opts.Search = strings.TrimSpace(q.Get("q"))
	}

	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		return opts, fmt.Errorf("limit %w", err)
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		return opts, fmt.Errorf("offset %w", err)
	}
	return opts.Normalized(), nil
}

// UUIDParam parses a path or query value as an id
func UUIDParam(name, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a valid id", name)
	}
	return id, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return n, nil
}
