package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
)

func TestGetFrameIndex(t *testing.T) {
	tests := []struct {
		param  string
		want   int
		wantOK bool
	}{
		{param: "3", want: 3, wantOK: true},
		{param: "-1"},
		{param: "abc"},
		{param: ""},
	}
	for _, test := range tests {
		t.Run(test.param, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/frames/x", nil)
			ctx := context.WithValue(r.Context(), httprouter.ParamsKey, httprouter.Params{{Key: "frame", Value: test.param}})
			w := httptest.NewRecorder()
			got, _, ok := GetFrameIndex(w, r.WithContext(ctx))
			if ok != test.wantOK || got != test.want {
				t.Fatalf("wanted (%d, %v), got (%d, %v)", test.want, test.wantOK, got, ok)
			}
			if !ok && w.Code != http.StatusBadRequest {
				t.Fatalf("wanted status 400, got %d", w.Code)
			}
		})
	}
}

func TestGetLimit(t *testing.T) {
	tests := []struct {
		query  string
		want   int
		wantOK bool
	}{
		{query: "", want: 0, wantOK: true},
		{query: "?limit=10", want: 10, wantOK: true},
		{query: "?limit=-2"},
		{query: "?limit=ten"},
	}
	for _, test := range tests {
		t.Run(test.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/statistics"+test.query, nil)
			w := httptest.NewRecorder()
			got, ok := GetLimit(w, r)
			if ok != test.wantOK || got != test.want {
				t.Fatalf("wanted (%d, %v), got (%d, %v)", test.want, test.wantOK, got, ok)
			}
		})
	}
}
