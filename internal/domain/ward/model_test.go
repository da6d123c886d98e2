package ward

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRoom_Recompute(t *testing.T) {
	tests := []struct {
		beds, occupancy int
		wantAvail       int
		wantStatus      string
	}{
		{4, 0, 4, RoomAvailable},
		{4, 1, 3, RoomPartial},
		{4, 4, 0, RoomFull},
		{1, 1, 0, RoomFull},
		{2, -1, 2, RoomAvailable},
		{2, 5, 0, RoomFull},
	}
	for _, tt := range tests {
		r := Room{Beds: tt.beds, Occupancy: tt.occupancy}
		r.recompute()
		if r.Available != tt.wantAvail || r.Status != tt.wantStatus {
			t.Errorf("beds=%d occ=%d: expected %d/%s, got %d/%s",
				tt.beds, tt.occupancy, tt.wantAvail, tt.wantStatus, r.Available, r.Status)
		}
		if r.Available != r.Beds-r.Occupancy {
			t.Errorf("available %d != beds %d - occupancy %d", r.Available, r.Beds, r.Occupancy)
		}
	}
}

func TestDaysStayed(t *testing.T) {
	day := func(d, h int) time.Time { return time.Date(2024, 3, d, h, 0, 0, 0, time.UTC) }

	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same day", day(5, 8), day(5, 20), 1},
		{"next day", day(5, 23), day(6, 1), 1},
		{"three days", day(5, 10), day(8, 9), 3},
		{"discharge before admission", day(6, 0), day(5, 0), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysStayed(tt.a, tt.b); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestSampleRooms(t *testing.T) {
	rooms := SampleRooms()
	if len(rooms) != 8 {
		t.Fatalf("expected 8 sample rooms, got %d", len(rooms))
	}
	want := map[string]string{"ICU-001": RoomPartial, "GEN-002": RoomFull, "PRI-002": RoomAvailable}
	for _, r := range rooms {
		if s, ok := want[r.ID]; ok && r.Status != s {
			t.Errorf("%s: expected %s, got %s", r.ID, s, r.Status)
		}
	}
}

func TestLookupRoomType_FallsBackToGeneral(t *testing.T) {
	if rt := LookupRoomType("SUITE"); rt.Code != TypeGeneral || !rt.DailyRate.Equal(roomTypes[TypeGeneral].DailyRate) {
		t.Errorf("expected GENERAL fallback, got %+v", rt)
	}
	if rt := LookupRoomType(TypeICU); rt.Label != "ICU" {
		t.Errorf("expected ICU, got %+v", rt)
	}
}

func TestAdmission_UnmarshalBrowserRecord(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"string bed", `{"id":"ADM-1","bedNumber":"2","status":"admitted"}`, 2, false},
		{"numeric bed", `{"id":"ADM-1","bedNumber":3}`, 3, false},
		{"empty bed", `{"id":"ADM-1","bedNumber":""}`, 0, false},
		{"missing bed", `{"id":"ADM-1"}`, 0, false},
		{"text bed", `{"id":"ADM-1","bedNumber":"window"}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Admission
			err := json.Unmarshal([]byte(tt.raw), &a)
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.BedNumber != tt.want || a.ID != "ADM-1" {
				t.Errorf("expected bed %d on ADM-1, got %d on %s", tt.want, a.BedNumber, a.ID)
			}
		})
	}
}

func TestRoom_UnmarshalStringCounts(t *testing.T) {
	var r Room
	if err := json.Unmarshal([]byte(`{"id":"GEN-9","type":"GENERAL","beds":"4","occupancy":"1","available":3}`), &r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Beds != 4 || r.Occupancy != 1 || r.Available != 3 || r.Type != TypeGeneral {
		t.Errorf("unexpected room %+v", r)
	}
}
