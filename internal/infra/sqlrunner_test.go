package infra

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantMarker string
		wantBody   string
		wantErr    bool
	}{
		{
			name:       "valid marker",
			query:      "--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7\nselect 1;\n",
			wantMarker: "8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7",
			wantBody:   "select 1;",
		},
		{
			name:    "missing marker",
			query:   "select 1;",
			wantErr: true,
		},
		{
			name:    "empty query",
			query:   "   ",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := extractMarker(tc.query)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("extractMarker error: %v", err)
			}
			if marker != tc.wantMarker {
				t.Fatalf("marker = %q, want %q", marker, tc.wantMarker)
			}
			if body != tc.wantBody {
				t.Fatalf("body = %q, want %q", body, tc.wantBody)
			}
		})
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)) {
		t.Fatal("expected wrapped ErrNoRows to match")
	}
	if IsNoRows(errors.New("boom")) {
		t.Fatal("unexpected match for unrelated error")
	}
}
