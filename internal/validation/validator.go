// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

// Package validation validates API request bodies and filter clauses with
// go-playground/validator v10. Field names in errors are the JSON names
// clients send.
//
//	type applyRequest struct {
//	    Field    string          `json:"field" validate:"required"`
//	    Operator filter.Operator `json:"operator" validate:"omitempty,filterop"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    rw.ValidationError(apiErr.Message, apiErr.Details)
//	    return
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/ouvidoria/internal/crossfilter"
	"github.com/tomtom215/ouvidoria/internal/filter"
)

// ErrorCode is the API error code for every validation failure.
const ErrorCode = "VALIDATION_ERROR"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Value   any
	Message string
}

func (e FieldError) Error() string { return e.Message }

// RequestValidationError collects every failed rule of one struct.
type RequestValidationError struct {
	Fields []FieldError
}

func (ve *RequestValidationError) Error() string {
	if len(ve.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve.Fields))
	for i, f := range ve.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// APIError is the envelope-ready form of a RequestValidationError. It is
// kept here rather than in package api to avoid an import cycle.
type APIError struct {
	Code    string
	Message string
	Details map[string]any
}

// ToAPIError renders ve for the API. One failure reports its field, tag and
// value; several report a "fields" list and a joined message.
func (ve *RequestValidationError) ToAPIError() *APIError {
	switch len(ve.Fields) {
	case 0:
		return &APIError{Code: ErrorCode, Message: "Validation failed"}
	case 1:
		f := ve.Fields[0]
		return &APIError{
			Code:    ErrorCode,
			Message: f.Message,
			Details: map[string]any{"field": f.Field, "tag": f.Tag, "value": f.Value},
		}
	}

	fields := make([]map[string]any, len(ve.Fields))
	msgs := make([]string, len(ve.Fields))
	for i, f := range ve.Fields {
		fields[i] = map[string]any{"field": f.Field, "tag": f.Tag, "message": f.Message}
		msgs[i] = f.Field + ": " + f.Message
	}
	return &APIError{
		Code:    ErrorCode,
		Message: strings.Join(msgs, "; "),
		Details: map[string]any{"fields": fields},
	}
}

// GetValidator returns the shared validator with the dashboard rules
// registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)

		// Registration only fails for an empty tag or nil function.
		_ = validate.RegisterValidation("filterop", func(fl validator.FieldLevel) bool {
			_, err := filter.ParseOperator(fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation("dimension", func(fl validator.FieldLevel) bool {
			_, err := crossfilter.ParseDimension(fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation("endpoint", func(fl validator.FieldLevel) bool {
			return validEndpoint(fl.Field().String())
		})
	})
	return validate
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// validEndpoint accepts absolute aggregation API paths with an optional
// query string.
func validEndpoint(s string) bool {
	return strings.HasPrefix(s, "/api/") &&
		!strings.Contains(s, "..") &&
		!strings.ContainsAny(s, " \t\r\n#")
}

// ValidateStruct returns nil when s passes every rule.
func ValidateStruct(s any) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationError: s was not a struct.
		return &RequestValidationError{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	out := &RequestValidationError{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		out.Fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: message(fe),
		}
	}
	return out
}

func message(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "filterop":
		return field + " must be one of: " + joinOperators()
	case "dimension":
		return field + " must be one of: " + joinDimensions()
	case "endpoint":
		return field + " must be an /api/ path"
	case "dive":
		return field + " contains an invalid entry"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, param, unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, param, unit)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

func joinOperators() string {
	ops := filter.Operators()
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = string(op)
	}
	return strings.Join(names, ", ")
}

func joinDimensions() string {
	dims := crossfilter.Dimensions()
	names := make([]string, len(dims))
	for i, d := range dims {
		names[i] = string(d)
	}
	return strings.Join(names, ", ")
}
