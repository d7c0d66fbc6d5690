package main

import (
	"net/url"
	"strconv"
	"strings"
)

// listQuery builds the query string of a paged list request.
type listQuery url.Values

func newListQuery(limit int, page string) listQuery {
	q := listQuery{}
	if limit > 0 {
		q["limit"] = []string{strconv.Itoa(limit)}
	}
	return q.with("page", page)
}

// with sets key unless value is blank.
func (q listQuery) with(key, value string) listQuery {
	if value = strings.TrimSpace(value); value != "" {
		url.Values(q).Set(key, value)
	}
	return q
}

func (q listQuery) values() url.Values {
	return url.Values(q)
}
