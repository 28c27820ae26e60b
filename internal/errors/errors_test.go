package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestServiceError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ServiceError
		want string
	}{
		{
			name: "error without underlying error",
			err:  New(ErrCodeUnauthorized, "test message", http.StatusUnauthorized),
			want: "[AUTH_2001] test message",
		},
		{
			name: "error with underlying error",
			err:  Wrap(ErrCodeUnexpected, "test message", http.StatusInternalServerError, errors.New("underlying")),
			want: "[UNEXPECTED_9001] test message: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServiceError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(ErrCodeUnexpected, "test", http.StatusInternalServerError, underlying)

	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}
}

func TestServiceError_WithDetails(t *testing.T) {
	err := New(ErrCodeValidation, "test", http.StatusBadRequest)
	err.WithDetails("field", "model_name").WithDetails("reason", "empty")

	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
}

func TestAs(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), QuotaExceeded("runs_per_day", 100, 100))
	se := As(wrapped)
	if se == nil {
		t.Fatal("expected ServiceError to be found in chain")
	}
	if se.Code != ErrCodeQuotaExceeded {
		t.Errorf("Code = %v, want %v", se.Code, ErrCodeQuotaExceeded)
	}
}

func TestHTTPStatus(t *testing.T) {
	if got := HTTPStatus(RateLimited(30)); got != http.StatusTooManyRequests {
		t.Errorf("HTTPStatus = %d, want %d", got, http.StatusTooManyRequests)
	}
	if got := HTTPStatus(errors.New("plain")); got != http.StatusInternalServerError {
		t.Errorf("HTTPStatus for plain error = %d, want %d", got, http.StatusInternalServerError)
	}
}

func TestDagCycleDetails(t *testing.T) {
	err := DagCycle([]string{"a", "b", "a"})
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusBadRequest)
	}
	cycle, ok := err.Details["cycle"].([]string)
	if !ok || len(cycle) != 3 {
		t.Errorf("Details[cycle] = %v, want 3-element slice", err.Details["cycle"])
	}
}
