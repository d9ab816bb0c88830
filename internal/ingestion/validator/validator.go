// Package validator provides input validation for record ingestion
// requests. It enforces path shape and value size constraints and returns
// per-field error details.
package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kvstore/fulltext/internal/ingestion"
)

const (
	maxPathLength  = 1024
	maxValueBytes  = 1048576
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateWriteRequest checks that path and req meet the required shape and
// size constraints and returns a ValidationError if not.
func ValidateWriteRequest(path string, req *ingestion.WriteRequest) error {
	errs := make(map[string]string)

	if strings.TrimSpace(path) == "" {
		errs["path"] = "path is required"
	} else if !strings.HasPrefix(path, "/") {
		errs["path"] = "path must be absolute (start with /)"
	} else if len(path) > maxPathLength {
		errs["path"] = fmt.Sprintf("path must be at most %d characters", maxPathLength)
	}

	if req.Value == nil {
		errs["value"] = "value is required"
	} else if raw, err := json.Marshal(req.Value); err != nil {
		errs["value"] = "value must be valid JSON"
	} else if len(raw) > maxValueBytes {
		errs["value"] = fmt.Sprintf("value must be at most %d bytes", maxValueBytes)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
