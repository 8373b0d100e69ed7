package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Timestamp decodes the wire timestamp field, which producers emit either as
// an RFC 3339 string or as a Unix epoch number (seconds or milliseconds).
// An absent or null field decodes as the zero time.
type Timestamp struct {
	t time.Time
}

// NewTimestamp wraps a time.Time.
func NewTimestamp(t time.Time) Timestamp { return Timestamp{t: t} }

// Time returns the decoded time, or the zero time if none was present.
func (ts Timestamp) Time() time.Time { return ts.t }

// IsZero reports whether no timestamp was present.
func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }

// epochMillisCutoff separates epoch seconds from epoch milliseconds. Numeric
// values at or above it are read as milliseconds; in seconds it would mean a
// date past the year 5000, which no producer emits.
const epochMillisCutoff = 1e11

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		ts.t = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			ts.t = time.Time{}
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		ts.t = t
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse timestamp %s: %w", data, err)
	}
	if f >= epochMillisCutoff {
		f /= 1000
	}
	sec, frac := math.Modf(f)
	ts.t = time.Unix(int64(sec), int64(math.Round(frac*float64(time.Second)))).UTC()
	return nil
}

// MarshalJSON implements json.Marshaler.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.t.UTC().Format(time.RFC3339Nano))
}
