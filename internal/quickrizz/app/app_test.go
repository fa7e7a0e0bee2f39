package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bdobrica/quickrizz/common/spec/wire"
	"github.com/bdobrica/quickrizz/common/trace"
	"github.com/bdobrica/quickrizz/internal/quickrizz/app"
	"github.com/bdobrica/quickrizz/internal/quickrizz/config"
	"github.com/bdobrica/quickrizz/internal/quickrizz/gateway"
	"github.com/bdobrica/quickrizz/internal/quickrizz/memory"
	"github.com/bdobrica/quickrizz/internal/quickrizz/store"
	"github.com/bdobrica/quickrizz/internal/quickrizz/suggest"
	"github.com/bdobrica/quickrizz/internal/quickrizz/textnorm"
)

// offlineLLM fails every call, so suggestions come from fallbacks.
type offlineLLM struct{}

func (offlineLLM) Generate(context.Context, gateway.Request) (string, error) {
	return "", errors.New("offline")
}

type fixture struct {
	srv         *app.Server
	commitsPath string
}

func newFixture(t *testing.T, withFeedback bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	var fb *store.Store
	if withFeedback {
		var err error
		fb, err = store.Open(filepath.Join(dir, "feedback.db"))
		if err != nil {
			t.Fatalf("store.Open: %v", err)
		}
		t.Cleanup(func() { fb.Close() })
	}
	path := filepath.Join(dir, "commits.json")
	svc := suggest.New(suggest.Config{
		Name:          "Sam",
		ContextWindow: 10,
		MinSpiceFloor: 2,
		MergeLimit:    3,
	}, offlineLLM{}, memory.NewIndex(memory.Options{}), memory.NewFileStore(path), fb)
	return &fixture{srv: app.NewServer("127.0.0.1:0", svc), commitsPath: path}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if res := decode[wire.Result](t, w); !res.OK {
		t.Errorf("expected ok, got %+v", res)
	}

	w = f.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[map[string]any](t, w)
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %v", resp["status"])
	}
	if w.Header().Get(trace.Header) == "" {
		t.Error("expected a trace ID on the response")
	}
}

func TestServer_EchoesTraceID(t *testing.T) {
	f := newFixture(t, true)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(trace.Header, "t_fromclient")
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)
	if got := w.Header().Get(trace.Header); got != "t_fromclient" {
		t.Errorf("trace header = %q", got)
	}
}

func TestServer_Suggest(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodPost, "/suggest", `{"context":[{"role":"you","text":"hey"},{"role":"them","text":"that was fun"}],"n":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	resp := decode[wire.SuggestResponse](t, w)
	want := []string{"ok you've got my attention", "tell me more, I'm listening"}
	if diff := cmp.Diff(want, resp.Options); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
	if resp.Stage == "" || resp.Plan.Goal == "" || resp.Plan.Tip == "" {
		t.Errorf("missing stage or plan: %+v", resp)
	}
	if resp.Spice < 2 {
		t.Errorf("spice %d below floor", resp.Spice)
	}
	if resp.Topic != suggest.DefaultTopic {
		t.Errorf("topic = %q", resp.Topic)
	}
	if resp.Debug == nil {
		t.Error("expected debug details")
	}
}

func TestServer_Suggest_NoIncoming(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodPost, "/suggest", `{"messages":[{"role":"you","content":"hi"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	resp := decode[map[string]any](t, w)
	if resp["stage"] != "banter" || resp["spice"] != float64(1) {
		t.Errorf("unexpected default response: %v", resp)
	}
	if opts, ok := resp["options"].([]any); !ok || len(opts) != 0 {
		t.Errorf("options = %#v, want empty list", resp["options"])
	}
}

func TestServer_Suggest_Invalid(t *testing.T) {
	f := newFixture(t, true)

	for _, body := range []string{`{"n": 50}`, `not json`, `{"spice": "hot"}`} {
		w := f.do(t, http.MethodPost, "/suggest", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, w.Code)
			continue
		}
		res := decode[wire.Result](t, w)
		if res.OK || !strings.Contains(res.Error, "invalid request") {
			t.Errorf("%s: unexpected reply %+v", body, res)
		}
	}

	if w := f.do(t, http.MethodGet, "/suggest", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /suggest: expected 405, got %d", w.Code)
	}
}

func TestServer_Commit(t *testing.T) {
	f := newFixture(t, true)
	body := `{"text":"hey wyd??","stage":"Banter","heat":1,"options":["nm, you?",{"text":"thinking about you","rating":"y"}]}`

	w := f.do(t, http.MethodPost, "/commit", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	want := wire.CommitResponse{OK: true, Key: textnorm.Normalize("hey wyd??"), Added: 2, TotalItems: 2}
	if diff := cmp.Diff(want, decode[wire.CommitResponse](t, w)); diff != "" {
		t.Errorf("first commit mismatch (-want +got):\n%s", diff)
	}

	w = f.do(t, http.MethodPost, "/commit", body)
	want.Added = 0
	if diff := cmp.Diff(want, decode[wire.CommitResponse](t, w)); diff != "" {
		t.Errorf("repeat commit mismatch (-want +got):\n%s", diff)
	}

	recs, err := memory.NewFileStore(f.commitsPath).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	items := recs[want.Key].Items
	if len(items) != 2 || items[1].Rating != memory.RatingYes || items[0].Stage != "banter" {
		t.Errorf("unexpected stored items: %+v", items)
	}

	st := decode[map[string]any](t, f.do(t, http.MethodGet, "/status", ""))
	recall, _ := st["recall"].(map[string]any)
	if recall["keys"] != float64(1) {
		t.Errorf("status recall = %v", st["recall"])
	}
}

func TestServer_Commit_Invalid(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		name string
		body string
	}{
		{"no options", `{"text":"hey"}`},
		{"blank text", `{"text":"  ","options":["x"]}`},
		{"punctuation only", `{"text":"?!","options":["x"]}`},
		{"bad json", `{"text":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/commit", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			res := decode[wire.CommitResponse](t, w)
			if res.OK || res.Error == "" {
				t.Errorf("unexpected reply %+v", res)
			}
		})
	}
}

func TestServer_Feedback(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodPost, "/feedback", `{"stage":"banter","latest":"u up?","option":"always for you","label":"up","meta":{"src":"test"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if res := decode[wire.Result](t, w); !res.OK {
		t.Errorf("unexpected reply %+v", res)
	}

	st := decode[map[string]any](t, f.do(t, http.MethodGet, "/status", ""))
	if st["feedback_rows"] != float64(1) {
		t.Errorf("feedback_rows = %v", st["feedback_rows"])
	}

	if w := f.do(t, http.MethodPost, "/feedback", `{"stage":"banter","latest":"u up?"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing option: expected 400, got %d", w.Code)
	}
}

func TestServer_Feedback_Disabled(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodPost, "/feedback", `{"stage":"banter","latest":"u up?","option":"yes"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestServer_Reload(t *testing.T) {
	f := newFixture(t, true)
	data := `{"hey wyd":{"items":[{"resp":"nm","stage":"banter","heat":1,"rating":null,"reason":"","ts":1}]}}`
	if err := os.WriteFile(f.commitsPath, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	w := f.do(t, http.MethodPost, "/reload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	res := decode[map[string]any](t, w)
	recall, _ := res["recall"].(map[string]any)
	if res["ok"] != true || recall["keys"] != float64(1) {
		t.Errorf("unexpected reload reply %v", res)
	}

	if err := os.WriteFile(f.commitsPath, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	w = f.do(t, http.MethodPost, "/reload", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("corrupt store: expected 500, got %d", w.Code)
	}
	res = decode[map[string]any](t, w)
	recall, _ = res["recall"].(map[string]any)
	if res["ok"] != false || recall["keys"] != float64(0) {
		t.Errorf("unexpected reload reply %v", res)
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		BaseURL:       "http://127.0.0.1:1",
		Model:         "gpt-4o-mini",
		MaxTokens:     120,
		MaxRetries:    1,
		BackoffBase:   time.Millisecond,
		BackoffCap:    time.Millisecond,
		Timeout:       time.Second,
		Name:          "Sam",
		ContextWindow: 10,
		MemEnable:     true,
		MemTopKKeys:   5,
		MemMinJaccard: 0.22,
		MemMinLen:     6,
		MemMergeLimit: 3,
		MinSpiceFloor: 2,
		DBPath:        filepath.Join(dir, "qrizz.db"),
		CommitsPath:   filepath.Join(dir, "qr_commits.json"),
		SlangPath:     filepath.Join(dir, "missing.yaml"),
		HTTPAddr:      "127.0.0.1:0",
	}
	data := `{"so what are you up to":{"items":[{"resp":"plotting my weekend","stage":"banter","heat":1,"rating":"Y","reason":"","ts":1}]}}`
	if err := os.WriteFile(cfg.CommitsPath, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Stop()

	lines, _ := a.Service().Recall("so what are you up to")
	if diff := cmp.Diff([]string{"plotting my weekend"}, lines); diff != "" {
		t.Errorf("recall mismatch (-want +got):\n%s", diff)
	}

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
