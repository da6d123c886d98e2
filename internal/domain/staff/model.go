package staff

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusOnLeave  = "on_leave"
)

var validStatuses = map[string]bool{StatusActive: true, StatusInactive: true, StatusOnLeave: true}

var weekdays = map[string]bool{
	"Mon": true, "Tue": true, "Wed": true, "Thu": true, "Fri": true, "Sat": true, "Sun": true,
}

// ID accepts both string and numeric JSON; the first doctor records used
// numeric ids.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

type Doctor struct {
	ID              ID              `json:"id"`
	Name            string          `json:"name"`
	Specialization  string          `json:"specialization"`
	Department      string          `json:"department,omitempty"`
	Email           string          `json:"email,omitempty"`
	Phone           string          `json:"phone,omitempty"`
	Qualification   string          `json:"qualification,omitempty"`
	Experience      int             `json:"experience,omitempty"`
	ConsultationFee decimal.Decimal `json:"consultationFee"`
	AvailableDays   []string        `json:"availableDays,omitempty"`
	// Availability is the free-text schedule kept by older records, such as
	// "Mon-Fri 9AM-5PM".
	Availability string    `json:"availability,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
}

// AvailableOn reports whether the doctor consults on the weekday. Doctors
// without listed days are treated as always available.
func (d *Doctor) AvailableOn(day time.Weekday) bool {
	if len(d.AvailableDays) == 0 {
		return true
	}
	abbr := day.String()[:3]
	for _, ad := range d.AvailableDays {
		if strings.EqualFold(ad, abbr) {
			return true
		}
	}
	return false
}

type DoctorFilter struct {
	Specialization string
	Department     string
	Status         string
}

func (f DoctorFilter) match(d *Doctor) bool {
	return (f.Specialization == "" || strings.EqualFold(d.Specialization, f.Specialization)) &&
		(f.Department == "" || strings.EqualFold(d.Department, f.Department)) &&
		(f.Status == "" || d.Status == f.Status)
}

type Member struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	Department     string    `json:"department,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	Qualification  string    `json:"qualification,omitempty"`
	JoinDate       string    `json:"joinDate,omitempty"`
	License        string    `json:"license,omitempty"`
	Experience     int       `json:"experience,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt,omitzero"`
	UpdatedAt      time.Time `json:"updatedAt,omitzero"`
}

type MemberFilter struct {
	Role       string
	Department string
	Status     string
}

func (f MemberFilter) match(m *Member) bool {
	return (f.Role == "" || m.Role == f.Role) &&
		(f.Department == "" || strings.EqualFold(m.Department, f.Department)) &&
		(f.Status == "" || m.Status == f.Status)
}
