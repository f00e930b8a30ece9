package errors

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "zone not found",
			},
			expected: "NOT_FOUND: zone not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("connection refused"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: connection refused)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appErr.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Wrap(originalErr, CodeInternal, "wrapped", http.StatusInternalServerError)

	if errors.Unwrap(appErr) != originalErr {
		t.Errorf("Unwrap() should return original error")
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := Validation("validation failed", nil).WithDetails(map[string]any{
		"field": "start_time",
	})

	if err.Details["field"] != "start_time" {
		t.Errorf("expected field 'start_time', got %v", err.Details["field"])
	}
}

func TestScheduleConflict(t *testing.T) {
	err := ScheduleConflict("overlaps an existing session", "sess-1")

	if err.Code != CodeScheduleConflict {
		t.Errorf("expected code %s, got %s", CodeScheduleConflict, err.Code)
	}
	if err.HTTPStatus != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, err.HTTPStatus)
	}
	if err.Details["blocking_id"] != "sess-1" {
		t.Errorf("expected blocking_id 'sess-1', got %v", err.Details["blocking_id"])
	}
}

func TestCapacityExceeded(t *testing.T) {
	err := CapacityExceeded("sess-2", 10)

	if err.Code != CodeCapacityExceeded {
		t.Errorf("expected code %s, got %s", CodeCapacityExceeded, err.Code)
	}
	if err.Details["capacity"] != 10 {
		t.Errorf("expected capacity 10, got %v", err.Details["capacity"])
	}
}

func TestInsufficientBalance(t *testing.T) {
	err := InsufficientBalance("zone-3")

	if err.Code != CodeInsufficientBalance {
		t.Errorf("expected code %s, got %s", CodeInsufficientBalance, err.Code)
	}
	if err.HTTPStatus != http.StatusPaymentRequired {
		t.Errorf("expected status %d, got %d", http.StatusPaymentRequired, err.HTTPStatus)
	}
	if err.Details["zone_id"] != "zone-3" {
		t.Errorf("expected zone_id 'zone-3', got %v", err.Details["zone_id"])
	}
}

func TestLifecycleConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code string
	}{
		{"already completed", AlreadyCompleted("s1"), CodeAlreadyCompleted},
		{"already cancelled", AlreadyCancelled("s1"), CodeAlreadyCancelled},
		{"nothing to complete", NothingToComplete("s1"), CodeNothingToComplete},
		{"already inside", AlreadyInside("v1"), CodeAlreadyInside},
		{"no open visit", NoOpenVisit(), CodeNoOpenVisit},
		{"already holding locker", AlreadyHoldingLocker("l1"), CodeAlreadyHolding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.HTTPStatus != http.StatusConflict {
				t.Errorf("expected status %d, got %d", http.StatusConflict, tt.err.HTTPStatus)
			}
		})
	}
}

func TestNotFoundWithID(t *testing.T) {
	err := NotFoundWithID("Session", "12345")

	if err.Code != CodeNotFound {
		t.Errorf("expected code %s, got %s", CodeNotFound, err.Code)
	}
	if err.Details["id"] != "12345" {
		t.Errorf("expected id '12345', got %v", err.Details["id"])
	}
	if err.Details["resource"] != "Session" {
		t.Errorf("expected resource 'Session', got %v", err.Details["resource"])
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Locker")
	regularErr := errors.New("regular error")

	if AsAppError(appErr) != appErr {
		t.Errorf("AsAppError() should return same AppError")
	}

	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should wrap the original error")
	}
}

func TestHasCode(t *testing.T) {
	err := InsufficientBalance("zone-1")

	if !HasCode(err, CodeInsufficientBalance) {
		t.Errorf("HasCode() should match the error's own code")
	}
	if HasCode(err, CodeCapacityExceeded) {
		t.Errorf("HasCode() should not match a different code")
	}
	if HasCode(errors.New("plain"), CodeInternal) {
		t.Errorf("HasCode() should be false for non-AppError")
	}
}

func TestAppError_ToJSON(t *testing.T) {
	err := ScheduleConflict("overlaps an existing session", "sess-9")
	data := string(err.ToJSON())

	if !strings.Contains(data, CodeScheduleConflict) {
		t.Errorf("ToJSON() should contain error code, got %s", data)
	}
	if !strings.Contains(data, "sess-9") {
		t.Errorf("ToJSON() should contain details, got %s", data)
	}
}
