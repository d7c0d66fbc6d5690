package server

import (
	"net/http"

	"tams/internal/api"
	"tams/internal/models"
)

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.WebhookListResponse{Webhooks: s.webhooks.List()})
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req models.Webhook
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	hook, err := s.webhooks.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, hook)
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := s.webhooks.Delete(r.Context(), r.URL.Query().Get("url")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
