package validate

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

type ErrField struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type Errs []ErrField

func (e Errs) Error() string {
	var b strings.Builder
	for i, ef := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ef.Field + ": " + ef.Msg)
	}
	return b.String()
}

// Add appends ef when it is non-nil.
func (e *Errs) Add(ef *ErrField) {
	if ef != nil {
		*e = append(*e, *ef)
	}
}

// DateLayouts are the accepted query date formats, tried in order.
var DateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Helpers
func Required(field, value string) *ErrField {
	if strings.TrimSpace(value) == "" {
		return &ErrField{Field: field, Msg: "required"}
	}
	return nil
}

func MinInt(field string, v, min int64) *ErrField {
	if v < min {
		return &ErrField{Field: field, Msg: "must be >= " + strconv.FormatInt(min, 10)}
	}
	return nil
}

func MaxInt(field string, v, max int64) *ErrField {
	if v > max {
		return &ErrField{Field: field, Msg: "must be <= " + strconv.FormatInt(max, 10)}
	}
	return nil
}

// Date parses q[field] if present. Layouts without a zone are read as UTC.
func Date(q url.Values, field string) (time.Time, *ErrField) {
	v := strings.TrimSpace(q.Get(field))
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ErrField{Field: field, Msg: "invalid date, use RFC3339, YYYY-MM-DD HH:MM:SS or YYYY-MM-DD"}
}

// Int parses q[field] if present, falling back to def, and enforces v >= min.
func Int(q url.Values, field string, def, min int) (int, *ErrField) {
	v := strings.TrimSpace(q.Get(field))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ErrField{Field: field, Msg: "must be an integer"}
	}
	if ef := MinInt(field, int64(n), int64(min)); ef != nil {
		return 0, ef
	}
	return n, nil
}
