package lab

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Assignment statuses, in workflow order.
const (
	StatusAssigned        = "Assigned"
	StatusSampleCollected = "Sample Collected"
	StatusInProgress      = "In Progress"
	StatusCompleted       = "Completed"
)

var statusOrder = map[string]int{
	StatusAssigned:        0,
	StatusSampleCollected: 1,
	StatusInProgress:      2,
	StatusCompleted:       3,
}

const (
	FlagNormal   = "normal"
	FlagAbnormal = "abnormal"
	FlagCritical = "critical"
)

var validFlags = map[string]bool{"": true, FlagNormal: true, FlagAbnormal: true, FlagCritical: true}

// TestID accepts both string and numeric ids; older assignments stored the
// catalog's numeric ids.
type TestID string

func (id *TestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TestID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = TestID(n.String())
	return nil
}

type CatalogTest struct {
	ID          TestID          `json:"id"`
	Name        string          `json:"name"`
	Format      string          `json:"format"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	SampleType  string          `json:"sampleType"`
}

type AssignedTest struct {
	ID    TestID          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type Result struct {
	TestID         TestID `json:"testId"`
	Value          string `json:"value"`
	Unit           string `json:"unit,omitempty"`
	ReferenceRange string `json:"referenceRange,omitempty"`
	Flag           string `json:"flag,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

type Assignment struct {
	ID                string         `json:"id"`
	PatientID         string         `json:"patientId"`
	PatientName       string         `json:"patientName"`
	DoctorName        string         `json:"doctorName,omitempty"`
	Priority          string         `json:"priority,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	Tests             []AssignedTest `json:"tests"`
	Status            string         `json:"status"`
	Results           []Result       `json:"results"`
	BillingID         string         `json:"billingId,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt,omitzero"`
	SampleCollectedAt *time.Time     `json:"sampleCollectedAt,omitempty"`
	CompletedAt       *time.Time     `json:"completedAt,omitempty"`
}

// Total is the sum of the assigned test prices.
func (a *Assignment) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range a.Tests {
		sum = sum.Add(t.Price)
	}
	return sum
}

type AssignRequest struct {
	PatientID   string   `json:"patientId"`
	PatientName string   `json:"patientName"`
	DoctorName  string   `json:"doctorName"`
	Priority    string   `json:"priority"`
	Notes       string   `json:"notes"`
	TestIDs     []TestID `json:"testIds"`
}

type Filter struct {
	PatientID string
	Status    string
}

func (f Filter) match(a Assignment) bool {
	if f.PatientID != "" && a.PatientID != f.PatientID {
		return false
	}
	return f.Status == "" || strings.EqualFold(a.Status, f.Status)
}

func price(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// DefaultCatalog is the laboratory price list.
func DefaultCatalog() []CatalogTest {
	return []CatalogTest{
		{"1", "Complete Blood Count (CBC)", "Blood", price(500), "Full blood count with differential (Hb, RBC, WBC, Platelets)", "EDTA Tube - 3ml"},
		{"2", "ESR (Erythrocyte Sedimentation Rate)", "Blood", price(200), "Inflammation marker", "EDTA Tube - 2ml"},
		{"3", "CRP (C-Reactive Protein)", "Blood Serum", price(350), "Acute phase reactant for inflammation", "SST Tube - 3ml"},
		{"4", "Blood Culture", "Blood", price(1200), "Detect bacterial/fungal growth in blood", "Blood Culture Bottles"},
		{"5", "Blood Group & Rh Typing", "Blood", price(300), "ABO and Rh (D) grouping", "EDTA Tube - 2ml"},
		{"6", "HbA1c (Glycated Hemoglobin)", "Blood", price(600), "Average blood glucose over 2-3 months", "EDTA Tube - 2ml"},
		{"7", "Fasting Blood Sugar (FBS)", "Blood Plasma", price(300), "Glucose level after 8-12 hours fasting", "Fluoride Tube - 2ml"},
		{"8", "Random Blood Sugar (RBS)", "Blood Plasma", price(250), "Random glucose measurement", "Fluoride Tube - 2ml"},
		{"9", "Lipid Profile", "Blood Serum", price(700), "Total Cholesterol, LDL, HDL, Triglycerides", "SST Tube - 5ml"},
		{"10", "Liver Function Test (LFT)", "Blood Serum", price(600), "Bilirubin, AST, ALT, ALP, Albumin", "SST Tube - 5ml"},
		{"11", "Kidney Function Test (KFT)", "Blood Serum", price(550), "Creatinine, BUN, Electrolytes", "SST Tube - 5ml"},
		{"12", "Serum Electrolytes", "Blood Serum", price(400), "Sodium, Potassium, Chloride, Bicarbonate", "SST Tube - 3ml"},
		{"13", "Coagulation Profile (PT/INR, aPTT)", "Blood Plasma", price(650), "Clotting function tests", "Citrate Tube - 3ml"},
		{"14", "Thyroid Profile (TSH, T3, T4)", "Blood Serum", price(800), "Thyroid function assessment", "SST Tube - 5ml"},
		{"15", "Urine Routine (URINE R/M)", "Urine", price(250), "Physical, chemical, and microscopic examination", "Urine Cup - 60ml"},
		{"16", "Urine Culture & Sensitivity", "Urine", price(800), "Identify urinary pathogens and antibiotic sensitivity", "Sterile Urine Container"},
		{"17", "Stool Routine", "Stool", price(350), "Macroscopic and microscopic analysis", "Stool Container"},
		{"18", "Stool Culture", "Stool", price(900), "Detect enteric pathogens", "Stool Container"},
		{"19", "Pregnancy Test (β-hCG)", "Blood/Urine", price(300), "Detect pregnancy hormone", "Serum or Urine"},
		{"20", "HIV (Screening)", "Blood Serum", price(700), "HIV antibody/antigen screening", "SST Tube - 3ml"},
		{"21", "HBsAg (Hepatitis B)", "Blood Serum", price(500), "Hepatitis B surface antigen", "SST Tube - 3ml"},
		{"22", "Anti-HCV (Hepatitis C)", "Blood Serum", price(700), "Hepatitis C antibody test", "SST Tube - 3ml"},
		{"23", "Vitamin B12", "Blood Serum", price(900), "Serum Vitamin B12 level", "SST Tube - 3ml"},
		{"24", "Serum Ferritin", "Blood Serum", price(650), "Iron stores indicator", "SST Tube - 3ml"},
		{"25", "Blood Gas Analysis (ABG)", "Arterial Blood", price(1200), "pH, pO2, pCO2, HCO3-", "Heparinised Syringe"},
	}
}
