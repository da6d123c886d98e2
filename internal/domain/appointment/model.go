package appointment

import "time"

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type Appointment struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patientId"`
	PatientName string    `json:"patientName"`
	DoctorID    string    `json:"doctorId"`
	DoctorName  string    `json:"doctorName,omitempty"`
	Department  string    `json:"department,omitempty"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Reason      string    `json:"reason,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

type Filter struct {
	Date      string
	DoctorID  string
	PatientID string
	Status    string
}

func (f Filter) match(a *Appointment) bool {
	return (f.Date == "" || a.Date == f.Date) &&
		(f.DoctorID == "" || a.DoctorID == f.DoctorID) &&
		(f.PatientID == "" || a.PatientID == f.PatientID) &&
		(f.Status == "" || a.Status == f.Status)
}
