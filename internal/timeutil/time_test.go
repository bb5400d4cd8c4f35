package timeutil

import (
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestParseInt64Timeutil(t *testing.T) {
	var tt Time
	b := []byte(`1675277158`)
	err := json.Unmarshal(b, &tt)
	if err != nil {
		t.Fatalf("error while parsing: %+v\n", err)
	}
	if string(b) != strconv.FormatInt(tt.Time().Unix(), 10) {
		t.Fatalf("wanted: %+v, got: %+v\n", string(b), tt.Time().Unix())
	}
}

func TestParseStringTimeutil(t *testing.T) {
	var tt Time
	b := []byte(`"2023-01-01T12:00:00+00:00"`)
	err := json.Unmarshal(b, &tt)
	if err != nil {
		t.Fatalf("error while parsing: %+v\n", err)
	}
	ttf := tt.Time().Format(`"2006-01-02T15:04:05-07:00"`)
	if string(b) != ttf {
		t.Fatalf("wanted: %+v, got: %+v\n", string(b), ttf)
	}
}

func TestMarshalTimeutil(t *testing.T) {
	tests := []struct {
		name string
		time Time
		want string
	}{
		{
			name: "zero",
			want: `{"recorded_at":null}`,
		},
		{
			name: "truncated to the second in UTC",
			time: Time(time.Date(2023, 1, 1, 13, 0, 0, 500, time.FixedZone("CET", 3600))),
			want: `{"recorded_at":"2023-01-01T12:00:00Z"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(struct {
				RecordedAt Time `json:"recorded_at"`
			}{tt.time})
			if err != nil {
				t.Fatalf("error while marshaling: %+v\n", err)
			}
			if string(b) != tt.want {
				t.Fatalf("wanted: %s, got: %s\n", tt.want, string(b))
			}
		})
	}
}
