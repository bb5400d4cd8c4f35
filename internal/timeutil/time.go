package timeutil

import (
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Time is a wall clock time in JSON payloads. It marshals as RFC 3339, or
// null when zero, and unmarshals from RFC 3339 or Unix seconds.
type Time time.Time

func (t *Time) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == "{}" {
		return nil
	}
	if s[0] == '"' {
		tt, err := time.Parse(`"`+time.RFC3339+`"`, s)
		if err != nil {
			return err
		}
		*t = Time(tt)
	} else {
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*t = Time(time.Unix(i, 0))
	}
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(time.Time(t).UTC().Truncate(time.Second))
}

func (t Time) Time() time.Time {
	return time.Time(t)
}
