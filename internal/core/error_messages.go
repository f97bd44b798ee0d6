package core

// # Error Codes Reference
//
// User-facing messages carry a code that can be quoted to support staff.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Not authorized to run imports
//	IMP002 - Import already finished (source exhausted)
//	IMP003 - Invalid step request
//	IMP004 - Unknown import type
//	IMP005 - Step already running for this import
//	IMP006 - Too many imports running
//	IMP007 - Import session not found
//
// # Progress Store Errors (STORE001-STORE099)
//
//	STORE001 - Progress store unavailable; the step can be retried as is
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key
//	DB003 - Foreign key
//	DB004 - Connection refused
//	DB006 - Timeout
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Invalid CSV
//	FILE004 - No file provided
//	FILE005 - Empty file
//	FILE006 - Invalid column mapping
//
// # Other
//
//	RATE001 - Rate limit exceeded
//	ERR000  - Unexpected error; check the server logs

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage is a user-facing rendering of an error.
type UserMessage struct {
	Message string // Plain-language description
	Action  string // What the user can do about it
	Code    string // Error code for support reference
}

// sentinelMessages are checked with errors.Is before any pattern matching.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrUnauthorized, UserMessage{
		Message: "You are not allowed to run imports",
		Action:  "Ask an administrator for import access",
		Code:    "IMP001",
	}},
	{ErrSourceExhausted, UserMessage{
		Message: "All rows of this import have been processed",
		Action:  "Finish the import to clear its progress",
		Code:    "IMP002",
	}},
	{ErrInvalidStep, UserMessage{
		Message: "Invalid import step",
		Action:  "Steps start at 0 and must be sent in order",
		Code:    "IMP003",
	}},
	{ErrUnknownEntity, UserMessage{
		Message: "Unknown import type",
		Action:  "Choose one of the listed import types",
		Code:    "IMP004",
	}},
	{ErrStepInProgress, UserMessage{
		Message: "A step of this import is already running",
		Action:  "Wait for the running step to finish before sending the next one",
		Code:    "IMP005",
	}},
	{ErrTooManySteps, UserMessage{
		Message: "Too many imports in progress",
		Action:  "Please wait a moment and try again",
		Code:    "IMP006",
	}},
	{ErrStoreUnavailable, UserMessage{
		Message: "Import progress could not be saved",
		Action:  "Retry the same step in a few moments",
		Code:    "STORE001",
	}},
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// The first matching pattern wins, so specific patterns come first.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"import session not found", UserMessage{
		Message: "Import session not found",
		Action:  "The import may have been finished or aborted. Start a new import",
		Code:    "IMP007",
	}},
	{"duplicate key", UserMessage{
		Message: "A record with this ID already exists",
		Action:  "Remove rows that were already imported",
		Code:    "DB001",
	}},
	{"violates foreign key", UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Ensure parent records are imported first",
		Code:    "DB003",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller step size or try again later",
		Code:    "DB006",
	}},
	{"file too large", UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}},
	{"invalid csv", UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure file is comma-separated with consistent columns",
		Code:    "FILE002",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV file to import",
		Code:    "FILE004",
	}},
	{"empty file", UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a CSV file with a header row",
		Code:    "FILE005",
	}},
	{"mapping", UserMessage{
		Message: "Invalid column mapping",
		Action:  "Map each column to a distinct field name",
		Code:    "FILE006",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Known sentinels are matched with errors.Is, then the error text is matched
// against known patterns. Unmatched errors map to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
