package tpa

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ClaimPending   = "pending"
	ClaimApproved  = "approved"
	ClaimRejected  = "rejected"
	ClaimDisbursed = "disbursed"
)

const (
	BillGenerated = "generated"
	BillPartial   = "partial"
	BillPaid      = "paid"
)

const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

var validTPAStatuses = map[string]bool{StatusActive: true, StatusInactive: true}

var validPolicyStatuses = map[string]bool{StatusActive: true, StatusExpired: true, StatusCancelled: true}

// BillDueAfter is the payment term of a TPA bill.
const BillDueAfter = 30 * 24 * time.Hour

type TPA struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Code          string    `json:"code,omitempty"`
	ContactPerson string    `json:"contactPerson,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Address       string    `json:"address,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt,omitzero"`
}

// PolicyStats are derived from the policy's claims on every read.
type PolicyStats struct {
	ClaimsCount           int             `json:"claimsCount"`
	TotalClaimed          decimal.Decimal `json:"totalClaimed"`
	TotalApproved         decimal.Decimal `json:"totalApproved"`
	TotalDisbursed        decimal.Decimal `json:"totalDisbursed"`
	UtilizationPercentage float64         `json:"utilizationPercentage"`
}

type Policy struct {
	ID              string          `json:"id"`
	PolicyNumber    string          `json:"policyNumber"`
	PatientID       string          `json:"patientId"`
	PatientName     string          `json:"patientName,omitempty"`
	TPAID           string          `json:"tpaId"`
	InsurerName     string          `json:"insurerName,omitempty"`
	CoverageAmount  decimal.Decimal `json:"coverageAmount"`
	CopayPercentage decimal.Decimal `json:"copayPercentage"`
	FixedDeductible decimal.Decimal `json:"fixedDeductible"`
	StartDate       string          `json:"startDate,omitempty"`
	EndDate         string          `json:"endDate,omitempty"`
	Status          string          `json:"status"`
	PolicyStats
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"type"`
	Size        int64     `json:"size"`
	BlobKey     string    `json:"blobKey,omitempty"`
	UploadedAt  time.Time `json:"uploadDate"`
	// Base64 holds the content of documents attached before the blob
	// store existed.
	Base64 string `json:"base64,omitempty"`
}

type Response struct {
	Status          string          `json:"status"`
	ApprovalDate    *time.Time      `json:"approvalDate,omitempty"`
	RejectionDate   *time.Time      `json:"rejectionDate,omitempty"`
	ApprovedAmount  decimal.Decimal `json:"approvedAmount"`
	DeductionAmount decimal.Decimal `json:"deductionAmount"`
	PayableAmount   decimal.Decimal `json:"payableAmount"`
	Remarks         string          `json:"remarks,omitempty"`
	Reason          string          `json:"reason,omitempty"`
}

type Claim struct {
	ID                  string          `json:"id"`
	PolicyID            string          `json:"policyId"`
	TPAID               string          `json:"tpaId"`
	PatientID           string          `json:"patientId"`
	PatientName         string          `json:"patientName,omitempty"`
	HospitalBillID      string          `json:"hospitalBillId,omitempty"`
	Diagnosis           string          `json:"diagnosis,omitempty"`
	TreatmentDetails    string          `json:"treatmentDetails,omitempty"`
	AdmissionDate       string          `json:"admissionDate,omitempty"`
	DischargeDate       string          `json:"dischargeDate,omitempty"`
	ClaimAmount         decimal.Decimal `json:"claimAmount"`
	ApprovedAmount      decimal.Decimal `json:"approvedAmount"`
	DeductionAmount     decimal.Decimal `json:"deductionAmount"`
	PayableAmount       decimal.Decimal `json:"payableAmount"`
	Status              string          `json:"status"`
	AuthorizationNumber string          `json:"authorizationNumber"`
	SubmissionDate      time.Time       `json:"submissionDate"`
	Documents           []Document      `json:"documents"`
	TPAResponse         *Response       `json:"tpaResponse"`
	Remarks             string          `json:"remarks"`
	DisbursementDate    *time.Time      `json:"disbursementDate,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt,omitzero"`
}

type BillDetail struct {
	ClaimID         string          `json:"claimId"`
	ClaimAmount     decimal.Decimal `json:"claimAmount"`
	ApprovedAmount  decimal.Decimal `json:"approvedAmount"`
	DeductionAmount decimal.Decimal `json:"deductionAmount"`
	PayableAmount   decimal.Decimal `json:"payableAmount"`
}

type Bill struct {
	ID            string          `json:"id"`
	TPAID         string          `json:"tpaId"`
	ClaimIDs      []string        `json:"claimIds"`
	BillingPeriod string          `json:"billingPeriod"`
	ClaimsCount   int             `json:"claimsCount"`
	BillAmount    decimal.Decimal `json:"billAmount"`
	PaidAmount    decimal.Decimal `json:"paidAmount"`
	Status        string          `json:"status"`
	CreatedDate   time.Time       `json:"createdDate"`
	DueDate       time.Time       `json:"dueDate"`
	PaymentDate   *time.Time      `json:"paymentDate"`
	Details       []BillDetail    `json:"details"`
}

// BillStatusFor derives a TPA bill status from the absolute paid amount.
func BillStatusFor(billAmount, paid decimal.Decimal) string {
	switch {
	case paid.GreaterThanOrEqual(billAmount):
		return BillPaid
	case paid.IsZero():
		return BillGenerated
	default:
		return BillPartial
	}
}

// CalculateDeduction applies co-pay and the fixed deductible, capped at the
// claimed amount.
func CalculateDeduction(claimAmount decimal.Decimal, p *Policy) decimal.Decimal {
	ded := decimal.Zero
	if p.CopayPercentage.IsPositive() {
		ded = ded.Add(claimAmount.Mul(p.CopayPercentage).Div(decimal.NewFromInt(100)))
	}
	if p.FixedDeductible.IsPositive() {
		ded = ded.Add(p.FixedDeductible)
	}
	return decimal.Min(ded, claimAmount)
}

// Stats totals claims against one policy.
func Stats(p *Policy, claims []*Claim) PolicyStats {
	st := PolicyStats{TotalClaimed: decimal.Zero, TotalApproved: decimal.Zero, TotalDisbursed: decimal.Zero}
	for _, c := range claims {
		if c.PolicyID != p.ID {
			continue
		}
		st.ClaimsCount++
		st.TotalClaimed = st.TotalClaimed.Add(c.ClaimAmount)
		if c.Status == ClaimApproved || c.Status == ClaimDisbursed {
			st.TotalApproved = st.TotalApproved.Add(c.ApprovedAmount)
		}
		if c.Status == ClaimDisbursed {
			st.TotalDisbursed = st.TotalDisbursed.Add(c.PayableAmount)
		}
	}
	if p.CoverageAmount.IsPositive() {
		pct, _ := st.TotalApproved.Div(p.CoverageAmount).Mul(decimal.NewFromInt(100)).Float64()
		st.UtilizationPercentage = math.Round(pct*100) / 100
	}
	return st
}

type ClaimAmounts struct {
	TotalClaimed   decimal.Decimal `json:"totalClaimed"`
	TotalApproved  decimal.Decimal `json:"totalApproved"`
	TotalDeducted  decimal.Decimal `json:"totalDeducted"`
	TotalPayable   decimal.Decimal `json:"totalPayable"`
	TotalDisbursed decimal.Decimal `json:"totalDisbursed"`
}

type BillSummary struct {
	TotalBills         int             `json:"totalBills"`
	GeneratedBills     int             `json:"generatedBills"`
	PaidBills          int             `json:"paidBills"`
	PartialBills       int             `json:"partialBills"`
	TotalBillAmount    decimal.Decimal `json:"totalBillAmount"`
	TotalPaidAmount    decimal.Decimal `json:"totalPaidAmount"`
	TotalPendingAmount decimal.Decimal `json:"totalPendingAmount"`
}

type Dashboard struct {
	TPAID           string       `json:"tpaId"`
	TotalClaims     int          `json:"totalClaims"`
	PendingClaims   int          `json:"pendingClaims"`
	ApprovedClaims  int          `json:"approvedClaims"`
	DisbursedClaims int          `json:"disbursedClaims"`
	RejectedClaims  int          `json:"rejectedClaims"`
	ClaimAmounts    ClaimAmounts `json:"claimAmounts"`
	BillSummary     BillSummary  `json:"billSummary"`
	Claims          []*Claim     `json:"claims"`
	Bills           []*Bill      `json:"bills"`
}

// BuildDashboard summarises one TPA's claims and bills.
func BuildDashboard(tpaID string, claims []*Claim, bills []*Bill) *Dashboard {
	d := &Dashboard{
		TPAID:  tpaID,
		Claims: []*Claim{},
		Bills:  []*Bill{},
		ClaimAmounts: ClaimAmounts{
			TotalClaimed: decimal.Zero, TotalApproved: decimal.Zero, TotalDeducted: decimal.Zero,
			TotalPayable: decimal.Zero, TotalDisbursed: decimal.Zero,
		},
		BillSummary: BillSummary{
			TotalBillAmount: decimal.Zero, TotalPaidAmount: decimal.Zero, TotalPendingAmount: decimal.Zero,
		},
	}
	for _, c := range claims {
		if c.TPAID != tpaID {
			continue
		}
		d.Claims = append(d.Claims, c)
		d.TotalClaims++
		switch c.Status {
		case ClaimPending:
			d.PendingClaims++
		case ClaimApproved:
			d.ApprovedClaims++
		case ClaimDisbursed:
			d.DisbursedClaims++
			d.ClaimAmounts.TotalDisbursed = d.ClaimAmounts.TotalDisbursed.Add(c.PayableAmount)
		case ClaimRejected:
			d.RejectedClaims++
		}
		d.ClaimAmounts.TotalClaimed = d.ClaimAmounts.TotalClaimed.Add(c.ClaimAmount)
		d.ClaimAmounts.TotalApproved = d.ClaimAmounts.TotalApproved.Add(c.ApprovedAmount)
		d.ClaimAmounts.TotalDeducted = d.ClaimAmounts.TotalDeducted.Add(c.DeductionAmount)
		d.ClaimAmounts.TotalPayable = d.ClaimAmounts.TotalPayable.Add(c.PayableAmount)
	}
	for _, b := range bills {
		if b.TPAID != tpaID {
			continue
		}
		d.Bills = append(d.Bills, b)
		bs := &d.BillSummary
		bs.TotalBills++
		switch b.Status {
		case BillGenerated:
			bs.GeneratedBills++
		case BillPaid:
			bs.PaidBills++
		case BillPartial:
			bs.PartialBills++
		}
		bs.TotalBillAmount = bs.TotalBillAmount.Add(b.BillAmount)
		bs.TotalPaidAmount = bs.TotalPaidAmount.Add(b.PaidAmount)
		bs.TotalPendingAmount = bs.TotalPendingAmount.Add(b.BillAmount.Sub(b.PaidAmount))
	}
	return d
}

type ClaimFilter struct {
	TPAID     string
	PolicyID  string
	PatientID string
	Status    string
}

func (f ClaimFilter) match(c *Claim) bool {
	return (f.TPAID == "" || c.TPAID == f.TPAID) &&
		(f.PolicyID == "" || c.PolicyID == f.PolicyID) &&
		(f.PatientID == "" || c.PatientID == f.PatientID) &&
		(f.Status == "" || c.Status == f.Status)
}

type PolicyFilter struct {
	TPAID     string
	PatientID string
	Status    string
}

func (f PolicyFilter) match(p *Policy) bool {
	return (f.TPAID == "" || p.TPAID == f.TPAID) &&
		(f.PatientID == "" || p.PatientID == f.PatientID) &&
		(f.Status == "" || p.Status == f.Status)
}
