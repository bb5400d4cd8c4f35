package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/phayes/freeport"

	"github.com/getsentry/callprof"
	"github.com/getsentry/callprof/internal/testutil"
)

const statisticsHeader = `"Address","Name","AvgSelfTime(us)","AvgTime(us)","AvgMemory(bytes)","TotalSelfTime(us)","TotalTime(us)","TotalMemory(bytes)","InvokeTimes"`

func testConfig(t *testing.T) ServiceConfig {
	return ServiceConfig{
		Environment:       "development",
		LogLevel:          "error",
		Frames:            3,
		Entities:          16,
		Seed:              1,
		OutputDir:         t.TempDir(),
		TopFunctions:      5,
		ShutdownTimeoutMS: 1000,
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SENTRY_ENVIRONMENT", "production")
	t.Setenv("CALLPROF_FRAMES", "5")
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ServiceConfig{
		Environment:       "production",
		LogLevel:          "info",
		Frames:            5,
		Entities:          256,
		Seed:              1,
		OutputDir:         ".",
		BucketURL:         "gs://callprof-exports",
		CompressExports:   true,
		TopFunctions:      15,
		ListenAddr:        ":8080",
		ShutdownTimeoutMS: 30000,
	}
	if diff := testutil.Diff(cfg, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("SENTRY_ENVIRONMENT", "development")
	path := filepath.Join(t.TempDir(), "callprof.yaml")
	err := os.WriteFile(path, []byte("frames: 12\nbucket_url: mem://\nmemory_profiling: true\n"), 0o600)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Frames != 12 || cfg.BucketURL != "mem://" || !cfg.MemoryProfiling || cfg.CompressExports {
		t.Fatalf("unexpected configuration: %+v", cfg)
	}
}

func TestLoadConfigUnknownEnvironment(t *testing.T) {
	t.Setenv("SENTRY_ENVIRONMENT", "staging")
	if _, err := loadConfig(""); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRecordAndExport(t *testing.T) {
	cfg := testConfig(t)
	cfg.FrameStatistics = true
	cfg.BucketURL = "mem://"
	cfg.CompressExports = true

	s := callprof.New(callprof.Options{})
	record(s, cfg)
	if got := len(s.Frames()); got != cfg.Frames {
		t.Fatalf("wanted %d frames, got %d", cfg.Frames, got)
	}

	var out bytes.Buffer
	if err := exportResults(context.Background(), s, cfg, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{statisticsFile, framesFile, "frame_0000.csv", "frame_0002.csv"} {
		b, err := os.ReadFile(filepath.Join(cfg.OutputDir, name))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if len(b) == 0 {
			t.Fatalf("%s is empty", name)
		}
	}
	b, err := os.ReadFile(filepath.Join(cfg.OutputDir, statisticsFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(b), statisticsHeader+"\n") {
		t.Fatalf("unexpected statistics table:\n%s", b)
	}
	if !strings.Contains(out.String(), s.ID().String()) {
		t.Fatalf("table doesn't name the session:\n%s", out.String())
	}
}

func TestRecordFunctionCounts(t *testing.T) {
	cfg := testConfig(t)
	s := callprof.New(callprof.Options{})
	record(s, cfg)

	counts := make(map[string]uint64)
	for _, u := range s.Statistics() {
		counts[methodName(u.Name)] = u.InvocationCount
	}
	want := map[string]uint64{
		"(*world).tick":      3,
		"(*world).integrate": 3,
		"(*world).move":      3 * 16,
		"(*world).collide":   3,
		"(*world).buildGrid": 3,
		"(*world).render":    3,
		// a depth 4 fold visits 1+2+4+8+16 nodes
		"(*world).hash": 3 * 31,
	}
	for name, n := range want {
		if counts[name] != n {
			t.Errorf("%s: wanted %d invocations, got %d", name, n, counts[name])
		}
	}
}

// methodName strips the package path, which differs between the command
// and its test binary.
func methodName(name string) string {
	if i := strings.Index(name, "(*world)."); i >= 0 {
		return name[i:]
	}
	return name
}

func newTestServer(t *testing.T) (*environment, *httptest.Server) {
	e := newEnvironment(testConfig(t))
	if err := e.record(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	router, err := e.newRouter()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return e, ts
}

func do(t *testing.T, method, url string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	return res.StatusCode, b
}

func TestRouterStatusCodes(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusNoContent},
		{http.MethodGet, "/session", http.StatusOK},
		{http.MethodGet, "/statistics", http.StatusOK},
		{http.MethodGet, "/statistics?format=json&limit=3", http.StatusOK},
		{http.MethodGet, "/statistics?format=table", http.StatusOK},
		{http.MethodGet, "/statistics?format=xml", http.StatusBadRequest},
		{http.MethodGet, "/statistics?limit=-1", http.StatusBadRequest},
		{http.MethodGet, "/frames", http.StatusOK},
		{http.MethodGet, "/frames/2/statistics", http.StatusOK},
		{http.MethodGet, "/frames/3/statistics", http.StatusNotFound},
		{http.MethodGet, "/frames/abc/statistics", http.StatusBadRequest},
		{http.MethodGet, "/frames/0/tree", http.StatusOK},
		{http.MethodGet, "/frames/99/tree", http.StatusNotFound},
		{http.MethodPost, "/session?frames=x", http.StatusBadRequest},
	}
	for _, test := range tests {
		t.Run(test.method+" "+test.path, func(t *testing.T) {
			if got, body := do(t, test.method, ts.URL+test.path); got != test.want {
				t.Fatalf("wanted status %d, got %d: %s", test.want, got, body)
			}
		})
	}
}

func TestGetStatisticsJSON(t *testing.T) {
	_, ts := newTestServer(t)

	_, b := do(t, http.MethodGet, ts.URL+"/statistics?format=json&limit=4")
	var got []FunctionStatistics
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("wanted 4 functions, got %d", len(got))
	}
	for i, fs := range got {
		if fs.InvocationCount == 0 || fs.Percentiles == nil {
			t.Fatalf("incomplete statistics: %+v", fs)
		}
		if i > 0 && fs.TotalSelfTimeMicros > got[i-1].TotalSelfTimeMicros {
			t.Fatalf("statistics are not ranked by self time: %+v", got)
		}
	}
}

func TestGetFrameTree(t *testing.T) {
	_, ts := newTestServer(t)

	_, b := do(t, http.MethodGet, ts.URL+"/frames/1/tree")
	var roots []*callprof.Node
	if err := json.Unmarshal(b, &roots); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roots) != 1 || methodName(roots[0].Name) != "(*world).tick" {
		t.Fatalf("wanted a single tick root, got %+v", roots)
	}
	var children []string
	for _, c := range roots[0].Children {
		children = append(children, methodName(c.Name))
	}
	want := []string{"(*world).integrate", "(*world).collide", "(*world).render"}
	if diff := testutil.Diff(children, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestPostSession(t *testing.T) {
	e, ts := newTestServer(t)
	before := e.session.ID().String()

	status, b := do(t, http.MethodPost, ts.URL+"/session?frames=2")
	if status != http.StatusCreated {
		t.Fatalf("wanted status 201, got %d: %s", status, b)
	}
	var got SessionResponse
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID == before || got.Frames != 2 || got.Functions == 0 || got.RecordedAt.Time().IsZero() {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestListenAndServe(t *testing.T) {
	port, err := freeport.GetFreePort()
	if err != nil {
		t.Fatal(err)
	}
	e := newEnvironment(testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.listenAndServe(ctx, "127.0.0.1:"+strconv.Itoa(port))
	}()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/health"
	deadline := time.Now().Add(5 * time.Second)
	for {
		res, err := http.Get(url)
		if err == nil {
			res.Body.Close()
			if res.StatusCode != http.StatusNoContent {
				t.Fatalf("wanted status 204, got %d", res.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server didn't shut down")
	}
}
