// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

/*
Custom rules

	filterop   filter.Operator values: eq, contains, gte, lte, gt, lt, in
	           (case-insensitive; empty means eq)
	dimension  crossfilter dimensions: status, tema, orgaos, tipo, canal,
	           prioridade, unidade, bairro
	endpoint   aggregation API paths starting with /api/

Error format

ToAPIError produces the VALIDATION_ERROR code used by the API envelope. A
single failure carries field, tag and value in Details; several failures
carry a "fields" list and a message joining every field message.
*/
package validation
