package auth

import (
	"strings"
	"testing"
)

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "Editor.One", want: "editor.one"},
		{raw: "  ingest-bot ", want: "ingest-bot"},
		{raw: "two words", wantErr: true},
		{raw: "-leading", wantErr: true},
		{raw: strings.Repeat("a", 33), wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := NormalizeUsername(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("NormalizeUsername(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("NormalizeUsername(%q) = %q, %v; want %q", tt.raw, got, err, tt.want)
		}
	}
}

func TestHashPasswordBounds(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Fatal("expected error for short password")
	}
	if _, err := HashPassword(strings.Repeat("x", 73)); err == nil {
		t.Fatal("expected error for password over 72 bytes")
	}
}

func TestBasicCredentialsVerify(t *testing.T) {
	hash, err := HashPassword("media-vault-7")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	creds := NewBasicCredentials(" Editor ", hash)
	if !creds.Configured() {
		t.Fatal("expected configured credentials")
	}

	if user, ok := creds.Verify("EDITOR", "media-vault-7"); !ok || user != "editor" {
		t.Fatalf("expected match as editor, got %q %v", user, ok)
	}
	if _, ok := creds.Verify("editor", "wrong-password"); ok {
		t.Fatal("expected wrong password to fail")
	}
	if _, ok := creds.Verify("someone", "media-vault-7"); ok {
		t.Fatal("expected wrong user to fail")
	}

	if NewBasicCredentials("bad name", hash).Configured() {
		t.Fatal("invalid username must leave credentials unconfigured")
	}
	if NewBasicCredentials("editor", " ").Configured() {
		t.Fatal("missing hash must leave credentials unconfigured")
	}
}
