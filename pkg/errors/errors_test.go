package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", http.StatusBadRequest)
	expected := "INVALID_INPUT: test error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err        *AppError
		wantCode   ErrorCode
		wantStatus int
	}{
		{NewInvalidInputError("bad"), ErrCodeInvalidInput, http.StatusBadRequest},
		{NewRateLimitError(), ErrCodeRateLimit, http.StatusTooManyRequests},
		{NewServiceUnavailableError("down"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		if tt.err.Code != tt.wantCode {
			t.Errorf("Code = %v, want %v", tt.err.Code, tt.wantCode)
		}
		if tt.err.HTTPStatus != tt.wantStatus {
			t.Errorf("HTTPStatus = %v, want %v", tt.err.HTTPStatus, tt.wantStatus)
		}
	}
}

func TestGetAppError(t *testing.T) {
	appErr := NewInvalidInputError("bad input")
	wrapped := fmt.Errorf("handler: %w", appErr)

	if got := GetAppError(wrapped); got != appErr {
		t.Errorf("GetAppError should find the AppError in the chain")
	}
	if got := GetAppError(errors.New("plain")); got != nil {
		t.Errorf("GetAppError on a plain error should be nil, got %v", got)
	}
}
