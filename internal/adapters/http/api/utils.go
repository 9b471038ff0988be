package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/okian/qualtrack/internal/domain/model"
)

type segmentParser interface {
	ParseSegment(event, age, sex string) (model.Segment, error)
}

// segmentFrom reads the event, age and sex query parameters.
func segmentFrom(p segmentParser, q url.Values) (model.Segment, error) {
	return p.ParseSegment(q.Get("event"), q.Get("age"), q.Get("sex"))
}

// intParam parses an optional non-negative integer; def is returned when absent.
func intParam(q url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrBadRequest, name)
	}
	return n, nil
}

// floatParam parses an optional positive number; 0 is returned when absent.
func floatParam(q url.Values, name string) (float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive number", ErrBadRequest, name)
	}
	return f, nil
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.NotFound(w, r)
		return false
	}
	return true
}
