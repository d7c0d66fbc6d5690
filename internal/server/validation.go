package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tams/internal/models"
	"tams/internal/objectstore"
	"tams/internal/store"
	"tams/internal/timestamp"
)

func requirePathID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if err := store.ValidateID(id); err != nil {
		return "", badRequestCode(fmt.Errorf("invalid id"), ErrCodeInvalidID)
	}
	return id, nil
}

// normalizeOptionalID validates a caller-supplied catalog id or returns "".
func normalizeOptionalID(raw, field string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if id == "" {
		return "", nil
	}
	if err := store.ValidateID(id); err != nil {
		return "", badRequestCode(fmt.Errorf("invalid %s", field), ErrCodeInvalidID)
	}
	return id, nil
}

func parseFormat(raw string) (models.ContentFormat, error) {
	if strings.TrimSpace(raw) == "" {
		return "", missingField("format")
	}
	format, err := models.ParseContentFormat(raw)
	if err != nil {
		return "", invalidFormat(err)
	}
	return format, nil
}

func normalizeTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func validateCollection(fc *models.FlowCollection) error {
	if fc == nil {
		return nil
	}
	for i, item := range fc.Flows {
		if strings.TrimSpace(item.FlowID) == "" {
			return missingField(fmt.Sprintf("flow_collection.flows[%d].flow_id", i))
		}
		if err := store.ValidateID(item.FlowID); err != nil {
			return badRequestCode(fmt.Errorf("invalid flow_collection.flows[%d].flow_id", i), ErrCodeInvalidID)
		}
	}
	return nil
}

func validateObjectIDs(ids []string) error {
	for _, id := range ids {
		if err := objectstore.ValidateID(id); err != nil {
			return badRequestCode(err, ErrCodeInvalidObjectID)
		}
	}
	return nil
}

func validateNonNegative(field string, values ...*int64) error {
	for _, v := range values {
		if v != nil && *v < 0 {
			return badRequest(fmt.Errorf("%s must be >= 0", field))
		}
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	return queryIntDefault(r, key, 0)
}

func queryIntDefault(r *http.Request, key string, def int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, badRequestCode(fmt.Errorf("invalid %s", key), ErrCodeInvalidQuery)
	}
	if parsed < 0 {
		return 0, badRequestCode(fmt.Errorf("%s must be >= 0", key), ErrCodeInvalidQuery)
	}
	return parsed, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, badRequestCode(fmt.Errorf("invalid %s", key), ErrCodeInvalidQuery)
	}
	return parsed, nil
}

// queryTimeRange reads the start and end query parameters. Both absent
// yields nil; exactly one present is a missing field.
func queryTimeRange(r *http.Request) (*timestamp.TimeRange, error) {
	start := strings.TrimSpace(r.URL.Query().Get("start"))
	end := strings.TrimSpace(r.URL.Query().Get("end"))
	switch {
	case start == "" && end == "":
		return nil, nil
	case start == "":
		return nil, missingField("start")
	case end == "":
		return nil, missingField("end")
	}
	tr, err := timestamp.ParseRange(start, end)
	if err != nil {
		return nil, classifyError(err)
	}
	return &tr, nil
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
