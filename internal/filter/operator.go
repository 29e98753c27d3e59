// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package filter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOperator is returned when an operator name is not one of the
// supported comparison operators.
var ErrInvalidOperator = errors.New("filter: invalid operator")

// Operator is the comparison a clause applies to its field.
type Operator string

// Supported operators.
const (
	OpEq       Operator = "eq"
	OpContains Operator = "contains"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
	OpGt       Operator = "gt"
	OpLt       Operator = "lt"
	OpIn       Operator = "in"
)

var operators = []Operator{OpEq, OpContains, OpGte, OpLte, OpGt, OpLt, OpIn}

// Operators returns every supported operator.
func Operators() []Operator {
	out := make([]Operator, len(operators))
	copy(out, operators)
	return out
}

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEq, OpContains, OpGte, OpLte, OpGt, OpLt, OpIn:
		return true
	}
	return false
}

func (op Operator) String() string {
	return string(op)
}

// ParseOperator converts a name into an Operator. The empty string parses
// as OpEq.
func ParseOperator(s string) (Operator, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return OpEq, nil
	}
	op := Operator(s)
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOperator, s)
	}
	return op, nil
}

// Clause is a single filter condition. SourceID names the chart that
// produced it and is empty for filters set programmatically.
type Clause struct {
	Field    string   `json:"field" validate:"required,max=128"`
	Value    string   `json:"value" validate:"required,max=512"`
	Operator Operator `json:"operator" validate:"filterop"`
	SourceID string   `json:"chartId,omitempty" validate:"omitempty,max=128"`
}

func (c Clause) same(field, value string) bool {
	return c.Field == field && c.Value == value
}
