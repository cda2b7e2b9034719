// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package validation

import (
	"strings"
	"testing"
)

type historyRequest struct {
	Type      string `validate:"omitempty,oneof=movies shows seasons episodes"`
	Limit     int    `validate:"min=0,max=1000"`
	Page      int    `validate:"min=0"`
	MinRating int    `validate:"min=0,max=10"`
}

func TestValidateStructPasses(t *testing.T) {
	req := historyRequest{Type: "movies", Limit: 50, Page: 1, MinRating: 7}
	if verr := ValidateStruct(&req); verr != nil {
		t.Errorf("expected valid, got %v", verr)
	}
}

func TestValidateStructZeroValuesPass(t *testing.T) {
	if verr := ValidateStruct(&historyRequest{}); verr != nil {
		t.Errorf("zero request must pass with omitempty/min=0 tags, got %v", verr)
	}
}

func TestValidateStructOneofFails(t *testing.T) {
	req := historyRequest{Type: "albums"}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation error")
	}
	errs := verr.Errors()
	if len(errs) != 1 || errs[0].Field() != "Type" || errs[0].Tag() != "oneof" {
		t.Errorf("unexpected errors: %v", verr)
	}
	if !strings.Contains(errs[0].Error(), "must be one of") {
		t.Errorf("message = %q", errs[0].Error())
	}
}

func TestValidateStructMultipleFailures(t *testing.T) {
	req := historyRequest{Type: "albums", Limit: 5000, MinRating: 11}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation error")
	}
	if len(verr.Errors()) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(verr.Errors()), verr)
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", apiErr.Code)
	}
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Error("multi-error APIError must carry per-field details")
	}
}

func TestToAPIErrorSingleFailure(t *testing.T) {
	verr := ValidateStruct(&historyRequest{Limit: -1})
	if verr == nil {
		t.Fatal("expected validation error")
	}
	apiErr := verr.ToAPIError()
	if apiErr.Details["field"] != "Limit" {
		t.Errorf("details = %v", apiErr.Details)
	}
	if !strings.Contains(apiErr.Message, "at least 0") {
		t.Errorf("message = %q", apiErr.Message)
	}
}
