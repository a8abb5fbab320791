package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/modaryn/internal/lineage"
	"github.com/leapstack-labs/modaryn/internal/output"
	"github.com/leapstack-labs/modaryn/pkg/core"
)

type projectResponse struct {
	Name       string                `json:"name"`
	Models     int                   `json:"models"`
	Edges      int                   `json:"edges"`
	Statistics *core.ScoreStatistics `json:"statistics,omitempty"`
	LoadedAt   time.Time             `json:"loaded_at"`
}

type columnResponse struct {
	Name       string                 `json:"name"`
	DataType   string                 `json:"data_type,omitempty"`
	TestCount  int                    `json:"test_count"`
	Upstream   []core.ColumnReference `json:"upstream"`
	Downstream []core.ColumnReference `json:"downstream"`
}

type modelResponse struct {
	output.ModelRow
	Parents  []string         `json:"parents"`
	Children []string         `json:"children"`
	Columns  []columnResponse `json:"columns"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// current returns the loaded project or writes 503.
func (s *Server) current(w http.ResponseWriter) (*core.Project, bool) {
	p := s.Project()
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, "project not loaded")
		return nil, false
	}
	return p, true
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	p, ok := s.current(w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := output.WriteHTMLReport(&buf, p, true); err != nil {
		s.logger.Error("failed to render report", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleGraph(w http.ResponseWriter, _ *http.Request) {
	p, ok := s.current(w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := output.WriteGraphHTML(&buf, p); err != nil {
		s.logger.Error("failed to render graph", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render graph")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleProject(w http.ResponseWriter, _ *http.Request) {
	p, ok := s.current(w)
	if !ok {
		return
	}
	s.mu.RLock()
	loadedAt := s.loadedAt
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, projectResponse{
		Name:       p.Name,
		Models:     len(p.Models),
		Edges:      p.EdgeCount(),
		Statistics: p.Statistics,
		LoadedAt:   loadedAt,
	})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	p, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, output.ScoreRows(p))
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	p, ok := s.current(w)
	if !ok {
		return
	}
	m, ok := p.FindModel(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "model not found: "+chi.URLParam(r, "id"))
		return
	}

	resp := modelResponse{
		Parents:  m.ParentIDs(),
		Children: m.ChildIDs(),
		Columns:  make([]columnResponse, 0, len(m.Columns)),
	}
	for _, row := range output.ScoreRows(p) {
		if row.ID == m.UniqueID {
			resp.ModelRow = row
			break
		}
	}
	for _, name := range m.ColumnNames() {
		c := m.Columns[name]
		resp.Columns = append(resp.Columns, columnResponse{
			Name:       c.Name,
			DataType:   c.DataType,
			TestCount:  c.TestCount,
			Upstream:   nonNil(c.Upstream),
			Downstream: nonNil(c.Downstream),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleColumnLineage(w http.ResponseWriter, r *http.Request) {
	p, ok := s.current(w)
	if !ok {
		return
	}
	m, ok := p.FindModel(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "model not found: "+chi.URLParam(r, "id"))
		return
	}
	column := chi.URLParam(r, "column")
	if _, ok := m.Columns[column]; !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("column not found: %s.%s", m.Name, column))
		return
	}

	depth := 0
	if v := r.URL.Query().Get("depth"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "invalid depth: "+v)
			return
		}
		depth = d
	}

	writeJSON(w, http.StatusOK, output.ColumnLineage{
		Model:      m.UniqueID,
		Column:     column,
		Upstream:   nonNilSteps(lineage.TraceUpstream(p, m.UniqueID, column, depth)),
		Downstream: nonNilSteps(lineage.TraceDownstream(p, m.UniqueID, column, depth)),
	})
}

// handleEvents streams a server-sent "reload" event after every reload.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	ch := s.notifier.subscribe()
	defer s.notifier.unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			_, _ = fmt.Fprint(w, "event: reload\ndata: {}\n\n")
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func nonNil(refs []core.ColumnReference) []core.ColumnReference {
	if refs == nil {
		return []core.ColumnReference{}
	}
	return refs
}

func nonNilSteps(steps []lineage.TraceStep) []lineage.TraceStep {
	if steps == nil {
		return []lineage.TraceStep{}
	}
	return steps
}
