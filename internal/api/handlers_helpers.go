// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ouvidoria/internal/validation"
)

var errEmptyBody = errors.New("request body is empty")

// sanitizeLogValue escapes control characters so client input cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// decodeBody decodes a size-limited JSON body into v and validates it.
// On failure it writes the error response and returns false.
func decodeBody(rw *ResponseWriter, r *http.Request, v any) bool {
	if err := readJSON(rw.w, r, v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
		case errors.Is(err, errEmptyBody):
			rw.BadRequest(err.Error())
		default:
			rw.BadRequest("invalid JSON body")
		}
		return false
	}
	return validateRequest(rw, v)
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errEmptyBody
	}
	return json.Unmarshal(body, v)
}

// validateRequest runs the struct validator and writes a 400 on failure.
func validateRequest(rw *ResponseWriter, v any) bool {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return true
	}
	apiErr := verr.ToAPIError()
	rw.ValidationError(apiErr.Message, apiErr.Details)
	return false
}

// parseCommaSeparated splits a comma-separated query value, dropping
// empty items.
func parseCommaSeparated(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
