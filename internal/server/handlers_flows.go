package server

import (
	"net/http"

	"tams/internal/api"
)

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	filter, page, err := s.parseFlowFilter(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	flows, err := s.flows.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items, pagination := trimPage(flows, page)
	s.writeJSON(w, http.StatusOK, api.FlowListResponse{Flows: items, Pagination: pagination})
}

func (s *Server) handleCreateFlow(w http.ResponseWriter, r *http.Request) {
	var req api.FlowCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	flow, err := s.flows.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, flow)
}

func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	flow, err := s.flows.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, flow)
}

func (s *Server) handleUpdateFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.FlowUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	flow, err := s.flows.Update(r.Context(), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, flow)
}

func (s *Server) handleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	if err := s.flows.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
