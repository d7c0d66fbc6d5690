package server

import (
	"net/http"
)

func (s *Server) handleAdminCleanupStaging(w http.ResponseWriter, r *http.Request) {
	if !s.requireConfirm(w, r) {
		return
	}
	s.withLimiter(w, r, s.adminLimiter, "admin", func() {
		resp, err := s.admin.CleanupStaging(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, resp)
	})
}

func (s *Server) handleAdminGCObjects(w http.ResponseWriter, r *http.Request) {
	dryRun, err := queryBool(r, "dry_run")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !dryRun && !s.requireConfirm(w, r) {
		return
	}
	s.withLimiter(w, r, s.adminLimiter, "admin", func() {
		resp, err := s.admin.GCObjects(r.Context(), dryRun)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, resp)
	})
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	resp, err := s.admin.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}
