package ward

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeICU     = "ICU"
	TypeGeneral = "GENERAL"
	TypePrivate = "PRIVATE"
)

const (
	RoomAvailable = "available"
	RoomPartial   = "partial"
	RoomFull      = "full"
)

const (
	StatusAdmitted   = "admitted"
	StatusDischarged = "discharged"
)

const dateLayout = "2006-01-02"

type RoomType struct {
	Code      string          `json:"code"`
	Label     string          `json:"label"`
	DailyRate decimal.Decimal `json:"dailyRate"`
	Prefix    string          `json:"-"`
}

var roomTypes = map[string]RoomType{
	TypeICU:     {Code: TypeICU, Label: "ICU", DailyRate: decimal.NewFromInt(5000), Prefix: "ICU"},
	TypeGeneral: {Code: TypeGeneral, Label: "General Ward", DailyRate: decimal.NewFromInt(1500), Prefix: "GEN"},
	TypePrivate: {Code: TypePrivate, Label: "Private Room", DailyRate: decimal.NewFromInt(3000), Prefix: "PRI"},
}

// RoomTypes returns the room types in display order.
func RoomTypes() []RoomType {
	return []RoomType{roomTypes[TypeICU], roomTypes[TypeGeneral], roomTypes[TypePrivate]}
}

// LookupRoomType falls back to GENERAL for unknown codes, as rooms saved
// before types were enforced may carry none.
func LookupRoomType(code string) RoomType {
	if rt, ok := roomTypes[code]; ok {
		return rt
	}
	return roomTypes[TypeGeneral]
}

type Room struct {
	ID         string    `json:"id"`
	RoomNumber string    `json:"roomNumber"`
	Type       string    `json:"type"`
	Beds       int       `json:"beds"`
	Occupancy  int       `json:"occupancy"`
	Available  int       `json:"available"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt,omitzero"`
	UpdatedAt  time.Time `json:"updatedAt,omitzero"`
}

// UnmarshalJSON accepts bed counts typed into the browser's room form,
// which were stored as strings.
func (r *Room) UnmarshalJSON(data []byte) error {
	type plain Room
	var aux struct {
		plain
		Beds      json.RawMessage `json:"beds"`
		Occupancy json.RawMessage `json:"occupancy"`
		Available json.RawMessage `json:"available"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Room(aux.plain)
	var err error
	if r.Beds, err = flexInt("beds", aux.Beds); err != nil {
		return err
	}
	if r.Occupancy, err = flexInt("occupancy", aux.Occupancy); err != nil {
		return err
	}
	if r.Available, err = flexInt("available", aux.Available); err != nil {
		return err
	}
	return nil
}

// recompute keeps available and status consistent with occupancy.
func (r *Room) recompute() {
	if r.Occupancy < 0 {
		r.Occupancy = 0
	}
	if r.Occupancy > r.Beds {
		r.Occupancy = r.Beds
	}
	r.Available = r.Beds - r.Occupancy
	switch {
	case r.Available == 0:
		r.Status = RoomFull
	case r.Available == r.Beds:
		r.Status = RoomAvailable
	default:
		r.Status = RoomPartial
	}
}

type Admission struct {
	ID              string          `json:"id"`
	PatientID       string          `json:"patientId"`
	PatientName     string          `json:"patientName"`
	RoomID          string          `json:"roomId"`
	RoomNumber      string          `json:"roomNumber,omitempty"`
	RoomType        string          `json:"roomType"`
	BedNumber       int             `json:"bedNumber"`
	Diagnosis       string          `json:"diagnosis,omitempty"`
	Doctor          string          `json:"doctor,omitempty"`
	AdmissionDate   string          `json:"admissionDate"`
	DischargeDate   string          `json:"dischargeDate,omitempty"`
	DaysStayed      int             `json:"daysStayed,omitempty"`
	TotalCharges    decimal.Decimal `json:"totalCharges"`
	Status          string          `json:"status"`
	AdmissionBillID string          `json:"admissionBillId,omitempty"`
	DischargeBillID string          `json:"dischargeBillId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt,omitzero"`
	UpdatedAt       time.Time       `json:"updatedAt,omitzero"`
}

// UnmarshalJSON accepts the bed number as the admission form stored it,
// a string such as "2".
func (a *Admission) UnmarshalJSON(data []byte) error {
	type plain Admission
	var aux struct {
		plain
		BedNumber json.RawMessage `json:"bedNumber"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*a = Admission(aux.plain)
	bed, err := flexInt("bedNumber", aux.BedNumber)
	if err != nil {
		return err
	}
	a.BedNumber = bed
	return nil
}

// flexInt reads a JSON number or a numeric string. Missing, null and empty
// values read as zero.
func flexInt(field string, raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("%s: %w", field, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return 0, nil
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a whole number", field, text)
	}
	return n, nil
}

type AdmitRequest struct {
	PatientID   string `json:"patientId"`
	PatientName string `json:"patientName"`
	RoomID      string `json:"roomId"`
	BedNumber   int    `json:"bedNumber"`
	Diagnosis   string `json:"diagnosis"`
	Doctor      string `json:"doctor"`
}

// DaysStayed counts calendar days between two dates, with a minimum of one.
func DaysStayed(admitted, discharged time.Time) int {
	a := time.Date(admitted.Year(), admitted.Month(), admitted.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(discharged.Year(), discharged.Month(), discharged.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Ceil(b.Sub(a).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

type RoomFilter struct {
	Type   string
	Status string
}

func (f RoomFilter) match(r Room) bool {
	return (f.Type == "" || r.Type == f.Type) && (f.Status == "" || r.Status == f.Status)
}

type AdmissionFilter struct {
	Status    string
	PatientID string
	RoomID    string
}

func (f AdmissionFilter) match(a Admission) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.PatientID != "" && a.PatientID != f.PatientID {
		return false
	}
	return f.RoomID == "" || a.RoomID == f.RoomID
}

type TypeSummary struct {
	Type                string          `json:"type"`
	Label               string          `json:"label"`
	DailyRate           decimal.Decimal `json:"dailyRate"`
	Rooms               int             `json:"rooms"`
	Beds                int             `json:"beds"`
	Occupied            int             `json:"occupied"`
	Available           int             `json:"available"`
	OccupancyPercentage float64         `json:"occupancyPercentage"`
}

type Summary struct {
	TotalRooms          int           `json:"totalRooms"`
	TotalBeds           int           `json:"totalBeds"`
	Occupied            int           `json:"occupied"`
	Available           int           `json:"available"`
	OccupancyPercentage float64       `json:"occupancyPercentage"`
	ActiveAdmissions    int           `json:"activeAdmissions"`
	ByType              []TypeSummary `json:"byType"`
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}

// SampleRooms is the ward layout a fresh installation starts with.
func SampleRooms() []Room {
	rooms := []Room{
		{ID: "ICU-001", RoomNumber: "101", Type: TypeICU, Beds: 2, Occupancy: 1},
		{ID: "ICU-002", RoomNumber: "102", Type: TypeICU, Beds: 2, Occupancy: 0},
		{ID: "GEN-001", RoomNumber: "201", Type: TypeGeneral, Beds: 4, Occupancy: 2},
		{ID: "GEN-002", RoomNumber: "202", Type: TypeGeneral, Beds: 4, Occupancy: 4},
		{ID: "GEN-003", RoomNumber: "203", Type: TypeGeneral, Beds: 4, Occupancy: 0},
		{ID: "PRI-001", RoomNumber: "301", Type: TypePrivate, Beds: 1, Occupancy: 1},
		{ID: "PRI-002", RoomNumber: "302", Type: TypePrivate, Beds: 1, Occupancy: 0},
		{ID: "PRI-003", RoomNumber: "303", Type: TypePrivate, Beds: 1, Occupancy: 0},
	}
	for i := range rooms {
		rooms[i].recompute()
	}
	return rooms
}
