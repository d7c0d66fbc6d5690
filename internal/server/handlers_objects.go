package server

import (
	"io"
	"net/http"
	"strconv"

	"tams/internal/api"
)

func (s *Server) handleAllocateStorage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.StorageRequest
	if r.ContentLength != 0 && !s.decodeJSONReq(w, r, &req) {
		return
	}
	objects, err := s.media.Allocate(r.Context(), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.StorageResponse{MediaObjects: objects})
}

// handleAllocateStorageQuery takes limit and object_ids from the query
// string for clients that cannot send a body.
func (s *Server) handleAllocateStorageQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	req := api.StorageRequest{Limit: limit, ObjectIDs: splitCSV(r.URL.Query().Get("object_ids"))}
	objects, err := s.media.Allocate(r.Context(), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.StorageResponse{MediaObjects: objects})
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathObjectIDOrBadRequest(w, r)
	if !ok {
		return
	}
	labels, _ := acceptGetURLs(r)
	obj, err := s.media.Get(r.Context(), id, labels)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, obj)
}

func (s *Server) handleHeadObject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathObjectIDOrBadRequest(w, r)
	if !ok {
		return
	}
	meta, err := s.media.Exists(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if meta.MIMEType != "" {
		w.Header().Set("Content-Type", meta.MIMEType)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUploadObject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathObjectIDOrBadRequest(w, r)
	if !ok {
		return
	}
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		resp, err := s.media.Upload(r.Context(), id, r.Body, r.Header.Get("Content-Type"))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, resp)
	})
}

func (s *Server) handleDownloadObject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathObjectIDOrBadRequest(w, r)
	if !ok {
		return
	}
	rc, meta, err := s.media.Open(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := meta.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.log().Warn("object download interrupted", "object_id", id, "error", err)
	}
}
