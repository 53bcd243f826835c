package validate

import (
	"errors"
	"testing"

	"github.com/maruel/localcrm/internal/models"
)

func TestPhone(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"090-1234-5678", true},
		{"09012345678", true},
		{"03-1234-5678", true},
		{"0120-12-3456", true},
		{"0123456", true},
		{"12345", false},
		{"90-1234-5678", false},
		{"090--1234-5678", false},
		{"090-1234-567", false},
		{"090-1234-56789", false},
		{"090 1234 5678", false},
		{"０９０-1234-5678", false},
		{"090-1234-5678\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Phone(tt.in); got != tt.want {
				t.Errorf("Phone(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"a@example.com", true},
		{"first.last+tag@sub.example.co.jp", true},
		{"user_%x@ex-ample.org", true},
		{"noatsign.example.com", false},
		{"a@example", false},
		{"a@example.c", false},
		{"a@example.c0m", false},
		{"a b@example.com", false},
		{"@example.com", false},
		{"a@@example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Email(tt.in); got != tt.want {
				t.Errorf("Email(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRecord(t *testing.T) {
	tests := []struct {
		name      string
		phone     string
		email     string
		wantField string
	}{
		{"valid", "090-1234-5678", "a@example.com", ""},
		{"empty optional fields", "", "", ""},
		{"bad phone", "12345", "a@example.com", models.FieldPhone},
		{"bad email", "090-1234-5678", "nope", models.FieldEmail},
		{"phone reported first", "12345", "nope", models.FieldPhone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Record(models.Record{models.FieldPhone: tt.phone, models.FieldEmail: tt.email})
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", verr.Field, tt.wantField)
			}
			if verr.Message == "" {
				t.Error("message should not be empty")
			}
		})
	}
}
