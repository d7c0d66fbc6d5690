package server

import (
	"net/http"

	"tams/internal/api"
)

func (s *Server) handleListDeletionRequests(w http.ResponseWriter, r *http.Request) {
	filter, page, err := s.parseDeletionFilter(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	requests, err := s.deletions.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items, pagination := trimPage(requests, page)
	s.writeJSON(w, http.StatusOK, api.DeletionListResponse{DeletionRequests: items, Pagination: pagination})
}

func (s *Server) handleCreateDeletionRequest(w http.ResponseWriter, r *http.Request) {
	var req api.DeletionCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	dr, err := s.deletions.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, dr)
}

func (s *Server) handleGetDeletionRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	dr, err := s.deletions.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dr)
}
