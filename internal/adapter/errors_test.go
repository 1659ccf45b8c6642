package adapter

import (
	"errors"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/Ning0612/drivesync/internal/domain"
)

// TestMapError tests error mapping from Google API errors to domain errors
func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		input      error
		wantReason string
		wantMsg    string
		notFound   bool
	}{
		{
			name:       "first structured detail wins",
			input:      &googleapi.Error{Code: 404, Message: "top level", Errors: []googleapi.ErrorItem{{Reason: "notFound", Message: "File not found: X."}, {Reason: "other", Message: "second"}}},
			wantReason: "notFound",
			wantMsg:    "File not found: X.",
			notFound:   true,
		},
		{
			name:    "no details falls back to message",
			input:   &googleapi.Error{Code: 403, Message: "The user does not have sufficient permissions"},
			wantMsg: "The user does not have sufficient permissions",
		},
		{
			name:       "media error body is parsed",
			input:      &googleapi.Error{Code: 404, Body: `{"error":{"code":404,"message":"File not found: Y.","errors":[{"reason":"notFound","message":"File not found: Y."}]}}`},
			wantReason: "notFound",
			wantMsg:    "File not found: Y.",
			notFound:   true,
		},
		{
			name:     "bare 404 still counts as not found",
			input:    &googleapi.Error{Code: 404},
			wantMsg:  (&googleapi.Error{Code: 404}).Error(),
			notFound: true,
		},
		{
			name:       "rate limit is a plain remote error",
			input:      &googleapi.Error{Code: 429, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded", Message: "Rate Limit Exceeded"}}},
			wantReason: "rateLimitExceeded",
			wantMsg:    "Rate Limit Exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.input)

			var remote *domain.RemoteError
			if !errors.As(got, &remote) {
				t.Fatalf("MapError() = %T, want *domain.RemoteError", got)
			}
			if remote.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", remote.Reason, tt.wantReason)
			}
			if got.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got.Error(), tt.wantMsg)
			}
			if errors.Is(got, domain.ErrNotFound) != tt.notFound {
				t.Errorf("errors.Is(ErrNotFound) = %v, want %v", !tt.notFound, tt.notFound)
			}

			// The API error stays in the chain
			var apiErr *googleapi.Error
			if !errors.As(got, &apiErr) {
				t.Error("expected *googleapi.Error in the chain")
			}
		})
	}
}

func TestMapError_Passthrough(t *testing.T) {
	if MapError(nil) != nil {
		t.Error("MapError(nil) should be nil")
	}

	generic := errors.New("connection reset by peer")
	if got := MapError(generic); got != generic {
		t.Errorf("MapError() should return non-API errors unchanged, got %v", got)
	}
}
