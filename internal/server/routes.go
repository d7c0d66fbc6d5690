package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and service description.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /service", s.handleServiceInfo)

	// Webhook subscriptions.
	mux.HandleFunc("GET /service/webhooks", s.handleListWebhooks)
	mux.HandleFunc("POST /service/webhooks", s.handleCreateWebhook)
	mux.HandleFunc("DELETE /service/webhooks", s.handleDeleteWebhook)

	// Sources.
	mux.HandleFunc("GET /sources", s.handleListSources)
	mux.HandleFunc("POST /sources", s.handleCreateSource)
	mux.HandleFunc("GET /sources/{id}", s.handleGetSource)
	mux.HandleFunc("PUT /sources/{id}", s.handleUpdateSource)
	mux.HandleFunc("DELETE /sources/{id}", s.handleDeleteSource)

	// Flows.
	mux.HandleFunc("GET /flows", s.handleListFlows)
	mux.HandleFunc("POST /flows", s.handleCreateFlow)
	mux.HandleFunc("GET /flows/{id}", s.handleGetFlow)
	mux.HandleFunc("PUT /flows/{id}", s.handleUpdateFlow)
	mux.HandleFunc("DELETE /flows/{id}", s.handleDeleteFlow)

	// Flow segments.
	mux.HandleFunc("GET /flows/{id}/segments", s.handleListSegments)
	mux.HandleFunc("POST /flows/{id}/segments", s.handleAddSegment)
	mux.HandleFunc("DELETE /flows/{id}/segments", s.handleDeleteSegments)

	// Storage allocation.
	mux.HandleFunc("GET /flows/{id}/storage", s.handleAllocateStorageQuery)
	mux.HandleFunc("POST /flows/{id}/storage", s.handleAllocateStorage)

	// Media objects.
	mux.HandleFunc("GET /objects/{id}", s.handleGetObject)
	mux.HandleFunc("HEAD /objects/{id}", s.handleHeadObject)
	mux.HandleFunc("PUT /objects/{id}", s.handleUploadObject)
	mux.HandleFunc("PUT /objects/{id}/upload", s.handleUploadObject)
	mux.HandleFunc("GET /objects/{id}/download", s.handleDownloadObject)

	// Flow delete requests.
	mux.HandleFunc("GET /flow-delete-requests", s.handleListDeletionRequests)
	mux.HandleFunc("POST /flow-delete-requests", s.handleCreateDeletionRequest)
	mux.HandleFunc("GET /flow-delete-requests/{id}", s.handleGetDeletionRequest)

	// Admin.
	mux.HandleFunc("POST /admin/cleanup-staging", s.handleAdminCleanupStaging)
	mux.HandleFunc("POST /admin/gc-objects", s.handleAdminGCObjects)
	mux.HandleFunc("GET /admin/stats", s.handleAdminStats)

	return mux
}
