package model

import (
	"bytes"
	"encoding/json"
	"math"
)

// Seconds is an optional quantity, a swim time in seconds unless stated otherwise.
// The zero value is None.
type Seconds struct {
	V     float64
	Valid bool
}

// Some wraps a finite time. Non-finite input yields None.
func Some(v float64) Seconds {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Seconds{}
	}
	return Seconds{V: v, Valid: true}
}

// None is the absent time.
func None() Seconds { return Seconds{} }

// Get returns the time and whether it is present.
func (s Seconds) Get() (float64, bool) { return s.V, s.Valid }

// Or returns the time or def when absent.
func (s Seconds) Or(def float64) float64 {
	if !s.Valid {
		return def
	}
	return s.V
}

// Faster reports whether s is present and strictly faster than o (or o is absent).
func (s Seconds) Faster(o Seconds) bool {
	if !s.Valid {
		return false
	}
	return !o.Valid || s.V < o.V
}

// MarshalJSON encodes None as null.
func (s Seconds) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.V)
}

// UnmarshalJSON accepts a number or null.
func (s *Seconds) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = Seconds{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = Some(v)
	return nil
}
