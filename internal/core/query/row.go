package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMissingColumn = errors.New("missing column")
	ErrColumnType    = errors.New("unexpected column type")
	ErrNullColumn    = errors.New("null in required column")
)

// timeLayouts covers what the supported drivers hand back for timestamp
// columns stored as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Row is one result row. Column lookup is case-insensitive.
type Row struct {
	columns []string
	values  []any
	index   map[string]int
}

// NewRow pairs columns with values. Values are taken as-is; callers must not
// reuse the slice.
func NewRow(columns []string, values []any) Row {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		key := strings.ToLower(c)
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return Row{columns: columns, values: values, index: idx}
}

// FromMap builds a row from column/value pairs. Handy for fakes.
func FromMap(m map[string]any) Row {
	cols := make([]string, 0, len(m))
	vals := make([]any, 0, len(m))
	for k, v := range m {
		cols = append(cols, k)
		vals = append(vals, v)
	}
	return NewRow(cols, vals)
}

func (r Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

func (r Row) Len() int { return len(r.values) }

// At returns the raw value at position i.
func (r Row) At(i int) (any, error) {
	if i < 0 || i >= len(r.values) {
		return nil, fmt.Errorf("%w: index %d", ErrMissingColumn, i)
	}
	return r.values[i], nil
}

// Value returns the raw value of col.
func (r Row) Value(col string) (any, error) {
	i, ok := r.index[strings.ToLower(col)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
	}
	return r.values[i], nil
}

func (r Row) required(col string) (any, error) {
	v, err := r.Value(col)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrNullColumn, col)
	}
	return v, nil
}

func typeErr(col string, v any) error {
	return fmt.Errorf("%w: %s is %T", ErrColumnType, col, v)
}

func (r Row) String(col string) (string, error) {
	v, err := r.required(col)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	default:
		return "", typeErr(col, v)
	}
}

// NullString returns "" for NULL.
func (r Row) NullString(col string) (string, error) {
	v, err := r.Value(col)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return r.String(col)
}

func (r Row) Int64(col string) (int64, error) {
	v, err := r.required(col)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int:
		return int64(t), nil
	case []byte:
		n, perr := strconv.ParseInt(string(t), 10, 64)
		if perr != nil {
			return 0, typeErr(col, v)
		}
		return n, nil
	case string:
		n, perr := strconv.ParseInt(t, 10, 64)
		if perr != nil {
			return 0, typeErr(col, v)
		}
		return n, nil
	default:
		return 0, typeErr(col, v)
	}
}

// Bool accepts native booleans and the 0/1 integers SQLite stores.
func (r Row) Bool(col string) (bool, error) {
	v, err := r.required(col)
	if err != nil {
		return false, err
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case []byte:
		b, perr := strconv.ParseBool(string(t))
		if perr != nil {
			return false, typeErr(col, v)
		}
		return b, nil
	case string:
		b, perr := strconv.ParseBool(t)
		if perr != nil {
			return false, typeErr(col, v)
		}
		return b, nil
	default:
		return false, typeErr(col, v)
	}
}

// Time returns the value in UTC.
func (r Row) Time(col string) (time.Time, error) {
	v, err := r.required(col)
	if err != nil {
		return time.Time{}, err
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTime(col, t)
	case []byte:
		return parseTime(col, string(t))
	default:
		return time.Time{}, typeErr(col, v)
	}
}

// NullTime returns nil for NULL.
func (r Row) NullTime(col string) (*time.Time, error) {
	v, err := r.Value(col)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	ts, err := r.Time(col)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func (r Row) UUID(col string) (uuid.UUID, error) {
	v, err := r.required(col)
	if err != nil {
		return uuid.Nil, err
	}
	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case [16]byte:
		return uuid.UUID(t), nil
	case string:
		id, perr := uuid.Parse(t)
		if perr != nil {
			return uuid.Nil, typeErr(col, v)
		}
		return id, nil
	case []byte:
		if len(t) == 16 {
			id, perr := uuid.FromBytes(t)
			if perr == nil {
				return id, nil
			}
		}
		id, perr := uuid.ParseBytes(t)
		if perr != nil {
			return uuid.Nil, typeErr(col, v)
		}
		return id, nil
	default:
		return uuid.Nil, typeErr(col, v)
	}
}

func parseTime(col, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	// time.Time.String output carries a monotonic suffix.
	if i := strings.Index(s, " m="); i > 0 {
		s = s[:i]
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s is unparseable time %q", ErrColumnType, col, s)
}
