package main

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"tams/internal/format"
	"tams/internal/models"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeFlowList(flows []models.Flow) error {
	for _, flow := range flows {
		if err := writePlain("%s\n", formatFlowLine(flow)); err != nil {
			return err
		}
	}
	return nil
}

func formatFlowLine(flow models.Flow) string {
	line := fmt.Sprintf("%s [%s]", flow.ID, flow.Format)
	if flow.ReadOnly {
		line += " [read-only]"
	}
	if flow.Label != "" {
		line += " - " + flow.Label
	}
	return line
}

func writeFlowDetail(flow models.Flow) error {
	lines := []string{
		fmt.Sprintf("id: %s", flow.ID),
		fmt.Sprintf("format: %s", flow.Format.URN()),
		fmt.Sprintf("read_only: %t", flow.ReadOnly),
		fmt.Sprintf("created_at: %s", formatTime(flow.CreatedAt)),
		fmt.Sprintf("updated_at: %s", formatTime(flow.UpdatedAt)),
	}
	if flow.SourceID != "" {
		lines = append(lines, fmt.Sprintf("source_id: %s", flow.SourceID))
	}
	if flow.Label != "" {
		lines = append(lines, fmt.Sprintf("label: %s", flow.Label))
	}
	if flow.Description != "" {
		lines = append(lines, fmt.Sprintf("description: %s", flow.Description))
	}
	if flow.Codec != "" {
		lines = append(lines, fmt.Sprintf("codec: %s", flow.Codec))
	}
	if flow.Container != "" {
		lines = append(lines, fmt.Sprintf("container: %s", flow.Container))
	}
	if flow.AvailableTimeRange != nil {
		lines = append(lines, fmt.Sprintf("timerange: %s", flow.AvailableTimeRange))
	}
	if len(flow.Tags) > 0 {
		tags := make([]string, 0, len(flow.Tags))
		for _, k := range slices.Sorted(maps.Keys(flow.Tags)) {
			tags = append(tags, k+"="+flow.Tags[k])
		}
		lines = append(lines, "tags: "+strings.Join(tags, ", "))
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatSegmentLine(seg models.FlowSegment) string {
	line := fmt.Sprintf("%s %s", seg.TimeRange, seg.ObjectID)
	if len(seg.GetURLs) > 0 {
		line += " " + seg.GetURLs[0].URL
	}
	return line
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
