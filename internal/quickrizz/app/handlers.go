package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bdobrica/quickrizz/common/spec/wire"
	"github.com/bdobrica/quickrizz/common/trace"
	"github.com/bdobrica/quickrizz/common/version"
	"github.com/bdobrica/quickrizz/internal/quickrizz/convo"
	"github.com/bdobrica/quickrizz/internal/quickrizz/memory"
	"github.com/bdobrica/quickrizz/internal/quickrizz/store"
	"github.com/bdobrica/quickrizz/internal/quickrizz/suggest"
)

// healthResponse is returned by GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// statusResponse is returned by GET /status.
type statusResponse struct {
	Status       string       `json:"status"`
	Version      string       `json:"version"`
	Commit       string       `json:"commit"`
	BuildTime    string       `json:"build_time"`
	StartedAt    time.Time    `json:"started_at"`
	UptimeSecs   float64      `json:"uptime_seconds"`
	Recall       memory.Stats `json:"recall"`
	FeedbackRows int          `json:"feedback_rows"`
}

// reloadResponse is returned by POST /reload.
type reloadResponse struct {
	OK     bool         `json:"ok"`
	Recall memory.Stats `json:"recall"`
	Error  string       `json:"error,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, wire.Result{OK: true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	})
}

// handleStatus responds with runtime statistics. A failing feedback count
// is logged and reported as zero.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status(r.Context())
	if err != nil {
		slog.Warn("status: feedback count failed", trace.Attr(r.Context()), "err", err)
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:       "ok",
		Version:      version.Version,
		Commit:       version.GitCommit,
		BuildTime:    version.BuildTime,
		StartedAt:    s.startedAt,
		UptimeSecs:   time.Since(s.startedAt).Seconds(),
		Recall:       st.Recall,
		FeedbackRows: st.FeedbackRows,
	})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	req, err := wire.ParseSuggest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	history := req.History()
	msgs := make([]convo.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, convo.Message{Role: convo.ParseRole(m.Role), Text: m.Body()})
	}

	res, err := s.svc.Suggest(r.Context(), suggest.Request{
		Messages:  msgs,
		N:         req.N,
		TopicHint: req.TopicHint,
		Spice:     req.Spice,
	})
	if err != nil {
		slog.Warn("suggest: request abandoned", trace.Attr(r.Context()), "err", err)
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.SuggestResponse{
		Stage:   res.Stage.String(),
		Plan:    wire.Plan{Goal: res.Plan.Goal, Tip: res.Plan.Tip},
		Options: res.Options,
		Spice:   res.Heat,
		Topic:   res.Topic,
		Debug:   res.Debug,
	})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	req, err := wire.ParseCommit(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, wire.CommitResponse{Error: err.Error()})
		return
	}

	opts := make([]memory.Reply, 0, len(req.Options))
	for _, o := range req.Options {
		opts = append(opts, memory.Reply{
			Resp:   o.Text,
			Rating: memory.ParseRating(o.Rating),
			Reason: o.Reason,
		})
	}
	res, err := s.svc.Commit(r.Context(), suggest.Commit{
		Text:    req.Text,
		Stage:   req.Stage,
		Heat:    req.Heat,
		TS:      req.TS,
		Options: opts,
	})
	switch {
	case errors.Is(err, suggest.ErrEmptyKey):
		writeJSON(w, http.StatusBadRequest, wire.CommitResponse{Error: err.Error()})
		return
	case err != nil:
		slog.Error("commit failed", trace.Attr(r.Context()), "err", err)
		writeJSON(w, http.StatusInternalServerError, wire.CommitResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, wire.CommitResponse{
		OK:         true,
		Key:        res.Key,
		Added:      res.Added,
		TotalItems: res.TotalItems,
	})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	req, err := wire.ParseFeedback(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err = s.svc.Feedback(r.Context(), &store.Feedback{
		Stage:  req.Stage,
		Latest: req.Latest,
		Option: req.Option,
		Label:  req.Label,
		Meta:   req.Meta,
	})
	switch {
	case errors.Is(err, suggest.ErrNoFeedbackLog):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		slog.Error("feedback failed", trace.Attr(r.Context()), "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Result{OK: true})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Reload(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, reloadResponse{Recall: stats, Error: err.Error()})
		return
	}
	slog.Info("recall index reloaded", trace.Attr(r.Context()), "keys", stats.Keys, "shingles", stats.Shingles)
	writeJSON(w, http.StatusOK, reloadResponse{OK: true, Recall: stats})
}

// readBody reads a bounded request body. On failure it writes the 400
// reply itself and reports false.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: read body: %v", wire.ErrInvalid, err))
		return nil, false
	}
	return body, true
}

// writeError replies with {ok:false, error}.
func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, wire.Result{Error: err.Error()})
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("app: failed to encode JSON response", "err", err)
	}
}
