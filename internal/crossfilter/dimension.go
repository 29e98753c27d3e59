// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package crossfilter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDimension is returned for a dimension name outside the fixed set.
var ErrUnknownDimension = errors.New("crossfilter: unknown dimension")

// Dimension names one of the fixed crossfilter slots.
type Dimension string

const (
	Status     Dimension = "status"
	Tema       Dimension = "tema"
	Orgaos     Dimension = "orgaos"
	Tipo       Dimension = "tipo"
	Canal      Dimension = "canal"
	Prioridade Dimension = "prioridade"
	Unidade    Dimension = "unidade"
	Bairro     Dimension = "bairro"
)

type dimensionInfo struct {
	field     string // global filter field
	label     string
	bucketKey string // label key inside aggregate buckets
}

// dimensionOrder fixes the iteration and serialization order.
var dimensionOrder = [...]Dimension{Status, Tema, Orgaos, Tipo, Canal, Prioridade, Unidade, Bairro}

const numDimensions = len(dimensionOrder)

var dimensionInfos = map[Dimension]dimensionInfo{
	Status:     {field: "Status", label: "Status", bucketKey: "status"},
	Tema:       {field: "Tema", label: "Tema", bucketKey: "theme"},
	Orgaos:     {field: "Orgaos", label: "Órgão", bucketKey: "organ"},
	Tipo:       {field: "Tipo", label: "Tipo", bucketKey: "type"},
	Canal:      {field: "Canal", label: "Canal", bucketKey: "channel"},
	Prioridade: {field: "Prioridade", label: "Prioridade", bucketKey: "priority"},
	Unidade:    {field: "Unidade", label: "Unidade", bucketKey: "unit"},
	Bairro:     {field: "Bairro", label: "Bairro", bucketKey: "neighborhood"},
}

// Dimensions returns every dimension in serialization order.
func Dimensions() []Dimension {
	return append([]Dimension(nil), dimensionOrder[:]...)
}

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(strings.ToLower(strings.TrimSpace(s)))
	if d.index() < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
	}
	return d, nil
}

// DimensionForField returns the dimension a global filter field maps to.
func DimensionForField(field string) (Dimension, bool) {
	for _, d := range dimensionOrder {
		if dimensionInfos[d].field == field {
			return d, true
		}
	}
	return "", false
}

// Field is the global filter field equivalent of the dimension.
func (d Dimension) Field() string { return dimensionInfos[d].field }

// Label is the display name of the dimension.
func (d Dimension) Label() string {
	if info, ok := dimensionInfos[d]; ok {
		return info.label
	}
	return string(d)
}

func (d Dimension) index() int {
	for i, x := range dimensionOrder {
		if x == d {
			return i
		}
	}
	return -1
}
