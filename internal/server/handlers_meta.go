package server

import (
	"net/http"

	"tams/internal/api"
	"tams/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.RootResponse{
		Name:        s.info.Name,
		Description: s.info.Description,
		Version:     s.info.Version,
	})
}

func (s *Server) handleServiceInfo(w http.ResponseWriter, r *http.Request) {
	eventTypes := make([]string, 0, len(models.EventTypes))
	for _, t := range models.EventTypes {
		eventTypes = append(eventTypes, string(t))
	}

	resp := api.ServiceInfo{
		Name:                  s.info.Name,
		Description:           s.info.Description,
		Version:               s.info.Version,
		MediaStoreType:        "file",
		EventStreamMechanisms: []string{"webhooks"},
		EventTypes:            eventTypes,
		Capabilities: api.ServiceCapabilities{
			SupportsWebhooks:        true,
			SupportsFlowDeletion:    true,
			SupportsSegmentDeletion: true,
			SupportsReadOnlyFlows:   true,
			MaxFileSize:             s.objects.MaxFileSize(),
		},
	}
	s.writeJSON(w, http.StatusOK, resp)
}
