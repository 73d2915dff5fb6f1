package validate

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/ayush/project-tracker/internal/apierr"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Pagination is a normalized offset/limit window.
type Pagination struct {
	Limit  int
	Offset int
}

// Page parses limit and offset from query input. Missing values take their
// defaults; out-of-range values are clamped (limit into [1, MaxLimit],
// offset to >= 0), including integers too large for int. Only non-integer
// input is rejected.
func Page(q url.Values) (Pagination, error) {
	var details []apierr.FieldError

	limit, ok := intParam(q, "limit", DefaultLimit)
	if !ok {
		details = append(details, apierr.FieldError{Field: "limit", Message: "must be an integer"})
	}
	offset, ok := intParam(q, "offset", 0)
	if !ok {
		details = append(details, apierr.FieldError{Field: "offset", Message: "must be an integer"})
	}
	if len(details) > 0 {
		return Pagination{}, apierr.Validation(details...)
	}

	return Pagination{Limit: clamp(limit, 1, MaxLimit), Offset: max(offset, 0)}, nil
}

func intParam(q url.Values, key string, fallback int) (int, bool) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	switch {
	case errors.Is(err, strconv.ErrRange):
		// Out of int range; the caller clamps anyway.
		if strings.HasPrefix(raw, "-") {
			return math.MinInt, true
		}
		return math.MaxInt, true
	case err != nil:
		return 0, false
	}
	return n, true
}

func clamp(n, lo, hi int) int {
	return min(max(n, lo), hi)
}
