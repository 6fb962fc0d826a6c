// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package validation

import (
	"strings"
	"testing"
)

type scheduleRequest struct {
	Schedule string `json:"schedule" validate:"required,cron"`
}

type exportRequest struct {
	AccountID int64  `json:"accountId" validate:"gt=0"`
	Format    string `json:"format" validate:"omitempty,exportformat"`
}

type restoreRequest struct {
	FilePath string `json:"filePath" validate:"required,relpath"`
}

func TestGetValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

func TestCronTag(t *testing.T) {
	tests := []struct {
		schedule string
		valid    bool
	}{
		{"0 0 * * 0", true},
		{"*/5 * * * * *", true},
		{"@daily", true},
		{"61 * * * *", false},
		{"not a cron", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			err := ValidateStruct(&scheduleRequest{Schedule: tt.schedule})
			if (err == nil) != tt.valid {
				t.Errorf("ValidateStruct(%q) err = %v, want valid=%v", tt.schedule, err, tt.valid)
			}
		})
	}
}

func TestExportFormatTag(t *testing.T) {
	for _, f := range []string{"", "markdown", "csv", "json"} {
		if err := ValidateStruct(&exportRequest{AccountID: 1, Format: f}); err != nil {
			t.Errorf("format %q rejected: %v", f, err)
		}
	}
	err := ValidateStruct(&exportRequest{AccountID: 1, Format: "pdf"})
	if err == nil {
		t.Fatal("expected pdf to be rejected")
	}
	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", apiErr.Code)
	}
	if apiErr.Message != "format must be one of: markdown, csv, json" {
		t.Errorf("message = %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "format" {
		t.Errorf("details field = %v, want json name", apiErr.Details["field"])
	}
}

func TestRelPathTag(t *testing.T) {
	tests := []struct {
		path  string
		valid bool
	}{
		{"notevault_export.bko", true},
		{"/api/file/notevault_export.bko", true},
		{"temp/notes_export_1.zip", true},
		{"../etc/passwd", false},
		{"files/../../x", false},
		{"/", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidateStruct(&restoreRequest{FilePath: tt.path})
			if (err == nil) != tt.valid {
				t.Errorf("relpath(%q) err = %v, want valid=%v", tt.path, err, tt.valid)
			}
		})
	}
}

func TestMultipleErrors(t *testing.T) {
	err := ValidateStruct(&exportRequest{AccountID: 0, Format: "xml"})
	if err == nil {
		t.Fatal("expected errors")
	}
	if len(err.Errors()) != 2 {
		t.Fatalf("got %d errors, want 2", len(err.Errors()))
	}
	apiErr := err.ToAPIError()
	if !strings.Contains(apiErr.Message, "accountId: accountId must be greater than 0") {
		t.Errorf("message = %q", apiErr.Message)
	}
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Error("expected fields detail")
	}
}
