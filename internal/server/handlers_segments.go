package server

import (
	"net/http"

	"tams/internal/api"
	"tams/internal/models"
)

func (s *Server) handleListSegments(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	q, err := s.parseSegmentQuery(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	labels, include := acceptGetURLs(r)
	page, err := s.segments.Query(r.Context(), id, q, labels, include)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := api.SegmentListResponse{
		Segments: page.Segments,
		Pagination: api.Pagination{
			Limit:        q.Limit,
			Count:        len(page.Segments),
			NextKey:      page.NextCursor,
			TimeRange:    q.Range,
			ReverseOrder: q.Reverse,
		},
	}
	if resp.Segments == nil {
		resp.Segments = []models.FlowSegment{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddSegment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.SegmentCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	seg, err := s.segments.Add(r.Context(), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, seg)
}

// handleDeleteSegments removes the segments intersecting start/end, or all
// of the flow's segments when neither is given.
func (s *Server) handleDeleteSegments(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	tr, err := queryTimeRange(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp, err := s.segments.Delete(r.Context(), id, tr)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}
