package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tams/internal/api"
	"tams/internal/models"
	"tams/internal/segindex"
	"tams/internal/store"
)

// pageRequest is an offset page. The page query parameter carries the
// offset as a decimal string; segment queries use an opaque cursor instead.
type pageRequest struct {
	limit  int
	offset int
}

func (s *Server) parseLimit(r *http.Request) (int, error) {
	limit, err := queryIntDefault(r, "limit", s.defaultLimit)
	if err != nil {
		return 0, err
	}
	if limit == 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return limit, nil
}

func (s *Server) parsePage(r *http.Request) (pageRequest, error) {
	limit, err := s.parseLimit(r)
	if err != nil {
		return pageRequest{}, err
	}
	page := pageRequest{limit: limit}
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return pageRequest{}, badRequestCode(fmt.Errorf("invalid page"), ErrCodeInvalidCursor)
		}
		page.offset = offset
	}
	return page, nil
}

// trimPage cuts the look-ahead row fetched to detect a following page.
func trimPage[T any](items []T, page pageRequest) ([]T, api.Pagination) {
	p := api.Pagination{Limit: page.limit}
	if len(items) > page.limit {
		items = items[:page.limit]
		p.NextKey = strconv.Itoa(page.offset + page.limit)
	}
	if items == nil {
		items = []T{}
	}
	p.Count = len(items)
	return items, p
}

func optionalFormat(r *http.Request) (*models.ContentFormat, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("format"))
	if raw == "" {
		return nil, nil
	}
	format, err := models.ParseContentFormat(raw)
	if err != nil {
		return nil, invalidFormat(err)
	}
	return &format, nil
}

func (s *Server) parseSourceFilter(r *http.Request) (store.SourceFilter, pageRequest, error) {
	page, err := s.parsePage(r)
	if err != nil {
		return store.SourceFilter{}, page, err
	}
	format, err := optionalFormat(r)
	if err != nil {
		return store.SourceFilter{}, page, err
	}
	return store.SourceFilter{
		Label:  strings.TrimSpace(r.URL.Query().Get("label")),
		Format: format,
		Limit:  page.limit + 1,
		Offset: page.offset,
	}, page, nil
}

func (s *Server) parseFlowFilter(r *http.Request) (store.FlowFilter, pageRequest, error) {
	page, err := s.parsePage(r)
	if err != nil {
		return store.FlowFilter{}, page, err
	}
	format, err := optionalFormat(r)
	if err != nil {
		return store.FlowFilter{}, page, err
	}
	sourceID, err := normalizeOptionalID(r.URL.Query().Get("source_id"), "source_id")
	if err != nil {
		return store.FlowFilter{}, page, err
	}
	return store.FlowFilter{
		SourceID: sourceID,
		Format:   format,
		Label:    strings.TrimSpace(r.URL.Query().Get("label")),
		Limit:    page.limit + 1,
		Offset:   page.offset,
	}, page, nil
}

func (s *Server) parseDeletionFilter(r *http.Request) (store.DeletionFilter, pageRequest, error) {
	page, err := s.parsePage(r)
	if err != nil {
		return store.DeletionFilter{}, page, err
	}
	flowID, err := normalizeOptionalID(r.URL.Query().Get("flow_id"), "flow_id")
	if err != nil {
		return store.DeletionFilter{}, page, err
	}
	filter := store.DeletionFilter{FlowID: flowID, Limit: page.limit + 1, Offset: page.offset}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := models.ParseDeletionStatus(raw)
		if err != nil {
			return store.DeletionFilter{}, page, badRequestCode(err, ErrCodeInvalidQuery)
		}
		filter.Status = &status
	}
	return filter, page, nil
}

func (s *Server) parseSegmentQuery(r *http.Request) (segindex.Query, error) {
	limit, err := s.parseLimit(r)
	if err != nil {
		return segindex.Query{}, err
	}
	reverse, err := queryBool(r, "reverse_order")
	if err != nil {
		return segindex.Query{}, err
	}
	tr, err := queryTimeRange(r)
	if err != nil {
		return segindex.Query{}, err
	}
	return segindex.Query{
		Range:   tr,
		Limit:   limit,
		Reverse: reverse,
		Cursor:  strings.TrimSpace(r.URL.Query().Get("page")),
	}, nil
}

// acceptGetURLs reads the accept_get_urls parameter: absent means the
// unlabeled URL only, present but empty means none.
func acceptGetURLs(r *http.Request) (labels []string, include bool) {
	values, ok := r.URL.Query()["accept_get_urls"]
	if !ok {
		return nil, true
	}
	labels = splitCSV(strings.Join(values, ","))
	return labels, len(labels) > 0
}
