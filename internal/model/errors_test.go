package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAPIError_ErrorIncludesCode(t *testing.T) {
	err := NewAccountNotFoundError(42)
	if got := err.Error(); !strings.HasPrefix(got, "["+ErrCodeAccountNotFound+"]") || !strings.Contains(got, "42") {
		t.Errorf("Error() = %q", got)
	}
}

func TestAPIError_SurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("delete account: %w", NewConfirmationRequiredError())

	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("errors.As should find the APIError")
	}
	if apiErr.Code != ErrCodeConfirmationRequired {
		t.Errorf("Code = %q", apiErr.Code)
	}
}

func TestIdentityProviderError_KeepsProviderMessage(t *testing.T) {
	if got := NewIdentityProviderError("User already registered").Message; got != "User already registered" {
		t.Errorf("Message = %q", got)
	}
	if got := NewIdentityProviderError("").Message; got == "" {
		t.Error("empty provider message should fall back to a default")
	}
	if got := NewInvalidCredentialsError("").Message; got == "" {
		t.Error("empty credentials message should fall back to a default")
	}
}

func TestOrphanedIdentityError_SharesRecordStoreCode(t *testing.T) {
	orphan := NewOrphanedIdentityError()
	store := NewRecordStoreError()
	if orphan.Code != store.Code {
		t.Errorf("orphan code = %q, want %q", orphan.Code, store.Code)
	}
	if orphan.Message == store.Message {
		t.Error("orphan message should say the identity was created")
	}
}

func TestConstructors_HaveCategoryAndAction(t *testing.T) {
	all := []*APIError{
		NewValidationError("name"),
		NewPasswordMismatchError(),
		NewPasswordTooShortError(6),
		NewInvalidExpiryDateError("2026-13-01"),
		NewIdentityProviderError("x"),
		NewRecordStoreError(),
		NewOrphanedIdentityError(),
		NewAccessDeniedError(),
		NewAccountNotFoundError(1),
		NewConfirmationRequiredError(),
		NewNoEditInProgressError(1),
		NewInvalidCredentialsError("x"),
		NewAccountFrozenError(),
		NewAccountExpiredError(),
		NewUnauthorizedError(),
		NewCSRFInvalidError(),
		NewRateLimitExceededError(),
		NewInternalError(),
		NewInvalidRequestError("body"),
	}
	for _, e := range all {
		if e.Code == "" || e.Category == "" || e.Action == "" || e.Message == "" {
			t.Errorf("incomplete error: %+v", e)
		}
	}
}
