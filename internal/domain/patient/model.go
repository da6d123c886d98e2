package patient

import (
	"regexp"
	"strings"
	"time"
)

const (
	VisitOPD = "OPD"
	VisitIPD = "IPD"
)

const (
	VisitActive     = "active"
	VisitCompleted  = "completed"
	VisitAdmitted   = "admitted"
	VisitDischarged = "discharged"
)

const dateLayout = "2006-01-02"

var validGenders = map[string]string{
	"male":   "Male",
	"female": "Female",
	"other":  "Other",
}

var validVisitStatuses = map[string]bool{
	VisitActive: true, VisitCompleted: true, VisitAdmitted: true, VisitDischarged: true,
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigit     = regexp.MustCompile(`\D`)
)

type Patient struct {
	ID               string    `json:"id"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	DateOfBirth      string    `json:"dateOfBirth"`
	Gender           string    `json:"gender"`
	Phone            string    `json:"phone"`
	Email            string    `json:"email"`
	Address          string    `json:"address"`
	BloodGroup       string    `json:"bloodGroup,omitempty"`
	EmergencyContact string    `json:"emergencyContact,omitempty"`
	Visits           []Visit   `json:"visits"`
	RegistrationDate time.Time `json:"registrationDate"`
	UpdatedAt        time.Time `json:"updatedAt,omitzero"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Age is the patient's age in whole years on at. It is -1 when the date of
// birth cannot be parsed.
func (p *Patient) Age(at time.Time) int {
	dob, err := time.Parse(dateLayout, p.DateOfBirth)
	if err != nil {
		return -1
	}
	age := at.Year() - dob.Year()
	if at.Month() < dob.Month() || (at.Month() == dob.Month() && at.Day() < dob.Day()) {
		age--
	}
	return age
}

// Validate checks the registration fields. The returned map is keyed by
// field name and is empty when the patient is valid.
func (p *Patient) Validate(now time.Time) map[string]string {
	errs := map[string]string{}
	if strings.TrimSpace(p.FirstName) == "" {
		errs["firstName"] = "First name is required"
	}
	if strings.TrimSpace(p.LastName) == "" {
		errs["lastName"] = "Last name is required"
	}
	if p.DateOfBirth == "" {
		errs["dateOfBirth"] = "Date of birth is required"
	} else if dob, err := time.Parse(dateLayout, p.DateOfBirth); err != nil {
		errs["dateOfBirth"] = "Date of birth must be YYYY-MM-DD"
	} else if dob.After(now) {
		errs["dateOfBirth"] = "Date of birth cannot be in the future"
	}
	if p.Gender == "" {
		errs["gender"] = "Gender is required"
	} else if _, ok := validGenders[strings.ToLower(p.Gender)]; !ok {
		errs["gender"] = "Gender must be Male, Female or Other"
	}
	if strings.TrimSpace(p.Phone) == "" {
		errs["phone"] = "Phone number is required"
	} else if len(nonDigit.ReplaceAllString(p.Phone, "")) != 10 {
		errs["phone"] = "Phone must be 10 digits"
	}
	if strings.TrimSpace(p.Email) == "" {
		errs["email"] = "Email is required"
	} else if !emailPattern.MatchString(p.Email) {
		errs["email"] = "Invalid email format"
	}
	if strings.TrimSpace(p.Address) == "" {
		errs["address"] = "Address is required"
	}
	return errs
}

func (p *Patient) normalize() {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if g, ok := validGenders[strings.ToLower(p.Gender)]; ok {
		p.Gender = g
	}
}

type Visit struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Department      string    `json:"department"`
	Doctor          string    `json:"doctor"`
	VisitReason     string    `json:"visitReason,omitempty"`
	Symptoms        string    `json:"symptoms,omitempty"`
	AdmissionReason string    `json:"admissionReason,omitempty"`
	Ward            string    `json:"ward,omitempty"`
	BedNumber       string    `json:"bedNumber,omitempty"`
	VisitDate       time.Time `json:"visitDate"`
	Status          string    `json:"status"`
}

// Validate applies the OPD or IPD registration rules.
func (v *Visit) Validate() map[string]string {
	errs := map[string]string{}
	required := func(field, label, value string) {
		if strings.TrimSpace(value) == "" {
			errs[field] = label + " is required"
		}
	}
	required("department", "Department", v.Department)
	required("doctor", "Doctor", v.Doctor)
	switch v.Type {
	case VisitOPD:
		required("visitReason", "Visit reason", v.VisitReason)
		required("symptoms", "Symptoms", v.Symptoms)
	case VisitIPD:
		required("admissionReason", "Admission reason", v.AdmissionReason)
		required("ward", "Ward", v.Ward)
		required("bedNumber", "Bed number", v.BedNumber)
	default:
		errs["type"] = "Visit type must be OPD or IPD"
	}
	if v.Status != "" && !validVisitStatuses[v.Status] {
		errs["status"] = "Invalid visit status"
	}
	return errs
}

type Filter struct {
	// Search matches a name or phone number fragment.
	Search    string
	VisitType string
}

func (f Filter) match(p *Patient) bool {
	if f.VisitType != "" && !p.hasVisit(f.VisitType) {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if strings.Contains(strings.ToLower(p.FullName()), q) {
		return true
	}
	digits := nonDigit.ReplaceAllString(q, "")
	return digits != "" && strings.Contains(nonDigit.ReplaceAllString(p.Phone, ""), digits)
}

func (p *Patient) hasVisit(visitType string) bool {
	for _, v := range p.Visits {
		if v.Type == visitType {
			return true
		}
	}
	return false
}

// Departments offered at registration.
var Departments = []string{
	"Cardiology", "Neurology", "Orthopedics", "Pediatrics", "General Medicine",
	"Surgery", "Gynecology", "ENT", "Dermatology", "Psychiatry",
}
