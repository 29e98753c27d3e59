// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package registry

import "github.com/tomtom215/ouvidoria/internal/filter"

// Mapping is the data field a chart filters on when one of its segments is
// clicked. A zero Field marks a chart that does not filter.
type Mapping struct {
	Field    string          `json:"field"`
	Operator filter.Operator `json:"op"`
}

// Filterable reports whether clicking the chart should produce a filter.
func (m Mapping) Filterable() bool {
	return m.Field != ""
}

func eq(field string) Mapping       { return Mapping{Field: field, Operator: filter.OpEq} }
func contains(field string) Mapping { return Mapping{Field: field, Operator: filter.OpContains} }

var noFilter = Mapping{}

// defaultChartFields is the built-in chart id to field table.
var defaultChartFields = map[string]Mapping{
	// Overview
	"chartStatus":            eq("Status"),
	"chartStatusPage":        eq("Status"),
	"chartStatusTema":        eq("Status"),
	"chartStatusAssunto":     eq("Status"),
	"chartTrend":             contains("Data"),
	"chartTopOrgaos":         contains("Orgaos"),
	"chartTopOrgaosBar":      contains("Orgaos"),
	"chartTopTemas":          eq("Tema"),
	"chartFunnelStatus":      eq("Status"),
	"chartSlaOverview":       noFilter,
	"chartSLA":               noFilter,
	"chartTiposManifestacao": eq("Tipo"),
	"chartCanais":            eq("Canal"),
	"chartPrioridades":       eq("Prioridade"),
	"chartUnidadesCadastro":  contains("Unidade"),
	"chartDailyDistribution": contains("Data"),

	"chartStatusMes": contains("Data"),

	"chartTema":    eq("Tema"),
	"chartTemaMes": contains("Data"),

	"chartAssunto":    contains("Assunto"),
	"chartAssuntoMes": contains("Data"),

	"chartTipo": eq("Tipo"),

	"chartOrgaoMes": contains("Data"),
	"chartOrgaos":   contains("Orgaos"),

	"chartSecretaria":           contains("Secretaria"),
	"chartSecretariaMes":        contains("Data"),
	"chartSecretariasDistritos": contains("Secretaria"),

	"chartSetor": contains("Setor"),

	"chartCategoria":    eq("Categoria"),
	"chartCategoriaMes": contains("Data"),

	"chartBairro":    contains("Bairro"),
	"chartBairroMes": contains("Data"),

	"chartUAC":         contains("UAC"),
	"chartResponsavel": contains("Responsavel"),
	"chartCanal":       eq("Canal"),
	"chartPrioridade":  eq("Prioridade"),

	"chartTempoMedio":           contains("Orgaos"),
	"chartTempoMedioMes":        contains("Data"),
	"chartTempoMedioDia":        contains("Data"),
	"chartTempoMedioSemana":     contains("Data"),
	"chartTempoMedioUnidade":    contains("Unidade"),
	"chartTempoMedioUnidadeMes": contains("Data"),

	"chartCadastranteMes": contains("Data"),

	"chartReclamacoesTipo": eq("Tipo"),
	"chartReclamacoesMes":  contains("Data"),

	"chartProjecaoMensal":        contains("Data"),
	"chartCrescimentoPercentual": contains("Data"),
	"chartComparacaoAnual":       contains("Data"),
	"chartSazonalidade":          contains("Data"),
	"chartProjecaoTema":          eq("Tema"),
	"chartProjecaoTipo":          eq("Tipo"),

	"chartUnitTipos": eq("Tipo"),

	// Zeladoria
	"zeladoria-chart-status":             eq("Status"),
	"zeladoria-chart-categoria":          eq("Categoria"),
	"zeladoria-chart-departamento":       contains("Departamento"),
	"zeladoria-chart-mensal":             contains("Data"),
	"zeladoria-status-chart":             eq("Status"),
	"zeladoria-categoria-chart":          eq("Categoria"),
	"zeladoria-departamento-chart":       contains("Departamento"),
	"zeladoria-bairro-chart":             contains("Bairro"),
	"zeladoria-responsavel-chart":        contains("Responsavel"),
	"zeladoria-canal-chart":              eq("Canal"),
	"zeladoria-tempo-chart":              contains("Data"),
	"zeladoria-tempo-mes-chart":          contains("Data"),
	"zeladoria-tempo-distribuicao-chart": noFilter,
	"zeladoria-mensal-chart":             contains("Data"),
	"zeladoria-bairro-mes-chart":         contains("Data"),
	"zeladoria-canal-mes-chart":          contains("Data"),
	"zeladoria-responsavel-mes-chart":    contains("Data"),
	"zeladoria-departamento-mes-chart":   contains("Data"),
	"zeladoria-categoria-mes-chart":      contains("Data"),
	"zeladoria-categoria-dept-chart":     contains("Departamento"),
	"zeladoria-status-mes-chart":         contains("Data"),
	"chartZeladoriaStatus":               eq("Status"),
	"chartZeladoriaCategoria":            eq("Categoria"),

	"chartMonth": contains("Data"),
}

// DefaultMappings returns a copy of the built-in chart field table.
func DefaultMappings() map[string]Mapping {
	out := make(map[string]Mapping, len(defaultChartFields))
	for id, m := range defaultChartFields {
		out[id] = m
	}
	return out
}

var fieldLabels = map[string]string{
	"Status":       "Status",
	"Tema":         "Tema",
	"Assunto":      "Assunto",
	"Orgaos":       "Órgão",
	"Tipo":         "Tipo",
	"Canal":        "Canal",
	"Prioridade":   "Prioridade",
	"Setor":        "Setor",
	"Categoria":    "Categoria",
	"Bairro":       "Bairro",
	"UAC":          "UAC",
	"Responsavel":  "Responsável",
	"Secretaria":   "Secretaria",
	"Unidade":      "Unidade",
	"Departamento": "Departamento",
	"Data":         "Data",
}

// FieldLabel returns the display label for a data field, or the field itself
// when it has none.
func FieldLabel(field string) string {
	if label, ok := fieldLabels[field]; ok {
		return label
	}
	return field
}
