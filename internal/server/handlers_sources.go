package server

import (
	"net/http"

	"tams/internal/api"
)

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	filter, page, err := s.parseSourceFilter(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	sources, err := s.sources.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items, pagination := trimPage(sources, page)
	s.writeJSON(w, http.StatusOK, api.SourceListResponse{Sources: items, Pagination: pagination})
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req api.SourceCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	src, err := s.sources.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, src)
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	src, err := s.sources.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, src)
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.SourceUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	src, err := s.sources.Update(r.Context(), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, src)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	if err := s.sources.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
