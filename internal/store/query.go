package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Paging limits for list queries
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ListOptions narrows and orders a list query. Filter and sort keys are
// checked against a per-table whitelist.
type ListOptions struct {
	Filters map[string]string
	Sort    []string
	Search  string
	Limit   int
	Offset  int
}

// Normalized returns the options with paging clamped to the allowed range
func (o ListOptions) Normalized() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// filterFunc adds the condition for one filter value
type filterFunc func(q *listQuery, value string) error

// listSpec describes what a table allows callers to filter and sort by
type listSpec struct {
	filters     map[string]filterFunc
	sorts       map[string]string
	search      []string
	defaultSort string
}

// listQuery accumulates WHERE conditions written with ? placeholders
type listQuery struct {
	conds []string
	args  []interface{}
}

func (q *listQuery) where(cond string, args ...interface{}) {
	q.conds = append(q.conds, cond)
	q.args = append(q.args, args...)
}

// build renders base plus conditions, filters, search, ordering and paging
// into a $N-placeholder query.
func (q *listQuery) build(base string, spec listSpec, opts ListOptions) (string, []interface{}, error) {
	opts = opts.Normalized()

	keys := make([]string, 0, len(opts.Filters))
	for k := range opts.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var invalid []string
	for _, k := range keys {
		fn, ok := spec.filters[k]
		if !ok {
			invalid = append(invalid, k)
			continue
		}
		if err := fn(q, opts.Filters[k]); err != nil {
			return "", nil, fmt.Errorf("%w: filter %s: %v", ErrInvalidQuery, k, err)
		}
	}
	if len(invalid) > 0 {
		return "", nil, fmt.Errorf("%w: invalid filter fields: %s", ErrInvalidQuery, strings.Join(invalid, ", "))
	}

	if s := strings.TrimSpace(opts.Search); s != "" && len(spec.search) > 0 {
		pattern := "%" + escapeLike(s) + "%"
		parts := make([]string, len(spec.search))
		for i, col := range spec.search {
			parts[i] = col + " ILIKE ?"
			q.args = append(q.args, pattern)
		}
		q.conds = append(q.conds, "("+strings.Join(parts, " OR ")+")")
	}

	order, err := buildOrder(opts.Sort, spec)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString(base)
	if len(q.conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(q.conds, " AND "))
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(order)
	sb.WriteString(" LIMIT ? OFFSET ?")
	args := append(q.args, opts.Limit, opts.Offset)

	return rebind(sb.String()), args, nil
}

func buildOrder(sorts []string, spec listSpec) (string, error) {
	if len(sorts) == 0 {
		return spec.defaultSort, nil
	}

	var exprs, invalid []string
	for _, s := range sorts {
		direction := "ASC"
		field := s
		if strings.HasPrefix(s, "-") {
			direction = "DESC"
			field = s[1:]
		}
		col, ok := spec.sorts[field]
		if !ok {
			invalid = append(invalid, field)
			continue
		}
		exprs = append(exprs, col+" "+direction)
	}
	if len(invalid) > 0 {
		return "", fmt.Errorf("%w: invalid sort fields: %s", ErrInvalidQuery, strings.Join(invalid, ", "))
	}
	// id keeps paging stable when sort keys tie
	exprs = append(exprs, "id ASC")
	return strings.Join(exprs, ", "), nil
}

// rebind rewrites ? placeholders as $1, $2, ...
func rebind(query string) string {
	var sb strings.Builder
	sb.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func eqString(column string) filterFunc {
	return func(q *listQuery, v string) error {
		q.where(column+" = ?", v)
		return nil
	}
}

func eqUUID(column string) filterFunc {
	return func(q *listQuery, v string) error {
		id, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("not a valid id")
		}
		q.where(column+" = ?", id)
		return nil
	}
}

func eqBool(column string) filterFunc {
	return func(q *listQuery, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("must be true or false")
		}
		q.where(column+" = ?", b)
		return nil
	}
}

func cmpFloat(column, op string) filterFunc {
	return func(q *listQuery, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("must be a number")
		}
		q.where(column+" "+op+" ?", f)
		return nil
	}
}

func cmpTime(column, op string) filterFunc {
	return func(q *listQuery, v string) error {
		t, err := parseTime(v)
		if err != nil {
			return err
		}
		q.where(column+" "+op+" ?", t)
		return nil
	}
}

// untilTime is an inclusive upper bound. A bare date covers that whole day.
func untilTime(column string) filterFunc {
	return func(q *listQuery, v string) error {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.where(column+" <= ?", t)
			return nil
		}
		t, err := parseTime(v)
		if err != nil {
			return err
		}
		q.where(column+" < ?", t.AddDate(0, 0, 1))
		return nil
	}
}

func arrayContains(column string) filterFunc {
	return func(q *listQuery, v string) error {
		q.where(column+" @> ?", pq.Array([]string{v}))
		return nil
	}
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be an RFC 3339 timestamp or YYYY-MM-DD date")
	}
	return t, nil
}
