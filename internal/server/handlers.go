package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"incidentkb/internal/domain"
	"incidentkb/internal/usecase"
	kberrors "incidentkb/pkg/errors"
)

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type toolRequest struct {
	Input string `json:"input"`
}

type toolResponse struct {
	Tool   string `json:"tool"`
	Output string `json:"output"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"incidents": s.memory.Len(),
		"dimension": s.memory.Dimension(),
		"model":     s.memory.Embedder().ModelName(),
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools := s.tools.Tools()
	out := make([]toolInfo, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolInfo{Name: t.Name, Description: t.Description})
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tool, ok := usecase.FindTool(s.tools.Tools(), name)
	if !ok {
		s.respondErr(w, kberrors.New(kberrors.CodeToolNotFound, "unknown tool", kberrors.Field("tool", name)))
		return
	}

	var req toolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondErr(w, kberrors.Wrap(err, kberrors.CodeServerRequestInvalid, "decode request"))
		return
	}

	s.logger.Debug("tool request", zap.String("tool", name), zap.String("input", req.Input))
	output, err := tool.Call(r.Context(), req.Input)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toolResponse{Tool: name, Output: output})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req usecase.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondErr(w, kberrors.Wrap(err, kberrors.CodeServerRequestInvalid, "decode request"))
		return
	}

	doc, err := s.ingest.Ingest(r.Context(), req)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, doc.WithoutEmbedding())
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	docs := s.memory.Documents()
	out := make([]domain.IncidentDocument, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.WithoutEmbedding())
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, ok := s.memory.FindByID(id)
	if !ok {
		s.respondErr(w, kberrors.New(kberrors.CodeIncidentNotFound, usecase.NotFoundMessage(id),
			kberrors.FieldIncidentID(id)))
		return
	}
	s.respondJSON(w, http.StatusOK, doc.WithoutEmbedding())
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.ask == nil {
		s.respondError(w, http.StatusNotImplemented, "no planner configured")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondErr(w, kberrors.Wrap(err, kberrors.CodeServerRequestInvalid, "decode request"))
		return
	}

	answer, err := s.ask.Ask(r.Context(), req.Question)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, askResponse{Answer: answer})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps a coded error to its HTTP status.
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := kberrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err), zap.String("code", string(kberrors.CodeOf(err))))
	}
	s.respondJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(kberrors.CodeOf(err)),
	})
}
