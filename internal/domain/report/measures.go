package report

import (
	"fmt"
	"time"

	"github.com/hms/hms/internal/platform/apperr"
)

// MeasureDefinition names a report that can be evaluated on demand.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Parameters  []string `json:"parameters"`

	eval func(s Snapshot, params map[string]string) (any, error)
}

// MeasureReport holds the result of evaluating a measure.
type MeasureReport struct {
	MeasureID   string            `json:"measureId"`
	MeasureName string            `json:"measureName"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Results     any               `json:"results"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}

// PredefinedMeasures is the list of available measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "dashboard",
		Name:        "Hospital Dashboard",
		Description: "Patients, today's appointments, billing totals, bed occupancy and claim totals",
		Parameters:  []string{},
		eval: func(s Snapshot, _ map[string]string) (any, error) {
			return BuildDashboard(s), nil
		},
	},
	{
		ID:          "revenue-monthly",
		Name:        "Monthly Revenue",
		Description: "Billed, collected and outstanding amounts per month of a year",
		Parameters:  []string{"year"},
		eval: func(s Snapshot, p map[string]string) (any, error) {
			year, ok := parseYear(p["year"], s.TakenAt.Year())
			if !ok {
				return nil, apperr.Invalid("year must be a four digit year")
			}
			return MonthlySeries(s.Bills, year), nil
		},
	},
	{
		ID:          "revenue-yearly",
		Name:        "Yearly Revenue",
		Description: "Billed, collected and outstanding amounts per year",
		Parameters:  []string{},
		eval: func(s Snapshot, _ map[string]string) (any, error) {
			return YearlySeries(s.Bills), nil
		},
	},
	{
		ID:          "revenue-by-source",
		Name:        "Revenue by Source",
		Description: "Billed and collected amounts per charge source",
		Parameters:  []string{},
		eval: func(s Snapshot, _ map[string]string) (any, error) {
			return BySource(s.Bills), nil
		},
	},
	{
		ID:          "revenue-by-method",
		Name:        "Revenue by Payment Method",
		Description: "Collected amounts per payment method",
		Parameters:  []string{},
		eval: func(s Snapshot, _ map[string]string) (any, error) {
			return ByPaymentMethod(s.Bills), nil
		},
	},
}

// FindMeasure returns the measure with the given ID, or nil.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

// Evaluate runs m against s. Only the declared parameters are kept.
func (m *MeasureDefinition) Evaluate(s Snapshot, params map[string]string) (*MeasureReport, error) {
	kept := map[string]string{}
	for _, p := range m.Parameters {
		if v, ok := params[p]; ok && v != "" {
			kept[p] = v
		}
	}
	results, err := m.eval(s, kept)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", m.ID, err)
	}
	return &MeasureReport{
		MeasureID:   m.ID,
		MeasureName: m.Name,
		GeneratedAt: s.TakenAt,
		Results:     results,
		Parameters:  kept,
	}, nil
}
