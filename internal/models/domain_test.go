package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseContentFormat(t *testing.T) {
	got, err := ParseContentFormat(" VIDEO ")
	if err != nil {
		t.Fatalf("parse format: %v", err)
	}
	if got != FormatVideo {
		t.Fatalf("expected %q, got %q", FormatVideo, got)
	}

	got, err = ParseContentFormat("urn:x-tam:format:image")
	if err != nil {
		t.Fatalf("parse urn: %v", err)
	}
	if got != FormatImage {
		t.Fatalf("expected %q, got %q", FormatImage, got)
	}

	if _, err := ParseContentFormat("urn:x-nmos:format:subtitle"); !errors.Is(err, ErrInvalidContentFormat) {
		t.Fatalf("expected invalid format error, got %v", err)
	}
}

func TestContentFormatsHaveURNs(t *testing.T) {
	for _, f := range ContentFormats {
		if f.URN() == "" {
			t.Fatalf("format %q has no urn", f)
		}
	}
}

func TestContentFormatJSON(t *testing.T) {
	payload, err := json.Marshal(Source{ID: "s", Format: FormatAudio})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["format"] != "urn:x-nmos:format:audio" {
		t.Fatalf("unexpected format %v", decoded["format"])
	}
}

func TestNormalizeSubscription(t *testing.T) {
	got, err := NormalizeSubscription([]string{"Flow.Created", "flow.created", " * ", ""})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(got) != 2 || got[0] != "flow.created" || got[1] != "*" {
		t.Fatalf("unexpected events %#v", got)
	}

	if _, err := NormalizeSubscription([]string{"flow.exploded"}); !errors.Is(err, ErrInvalidEventType) {
		t.Fatalf("expected invalid event type, got %v", err)
	}
}

func TestDeletionStatusTransitions(t *testing.T) {
	if !DeletionPending.CanTransition(DeletionRunning) {
		t.Fatal("pending -> running must be allowed")
	}
	if !DeletionRunning.CanTransition(DeletionDone) || !DeletionRunning.CanTransition(DeletionError) {
		t.Fatal("running -> done|error must be allowed")
	}
	if DeletionRunning.CanTransition(DeletionPending) {
		t.Fatal("running -> pending must be rejected")
	}
	if DeletionDone.CanTransition(DeletionError) || DeletionError.CanTransition(DeletionDone) {
		t.Fatal("terminal states must not move")
	}
	if _, err := ParseDeletionStatus("finished"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
}
