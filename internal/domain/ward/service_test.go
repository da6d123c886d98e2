package ward

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/store"
)

type fixture struct {
	svc     *Service
	billing *billing.Service
	clock   *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	clock := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	bills := billing.NewService(billing.NewBillRepoStore(st), zerolog.Nop())
	bills.SetClock(now)
	svc := NewService(NewRoomRepoStore(st), NewAdmissionRepoStore(st), st, bills, zerolog.Nop())
	svc.SetClock(now)
	return &fixture{svc: svc, billing: bills, clock: &clock}
}

func (f *fixture) room(t *testing.T, beds int) *Room {
	t.Helper()
	r, err := f.svc.CreateRoom(context.Background(), &Room{RoomNumber: "401", Type: TypeGeneral, Beds: beds})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return r
}

func TestAdmitAndDischarge_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, 4)

	adm, err := f.svc.AdmitPatient(ctx, AdmitRequest{PatientID: "PAT-1", PatientName: "Asha", RoomID: room.ID, BedNumber: 1, Diagnosis: "Fever"})
	if err != nil {
		t.Fatalf("AdmitPatient: %v", err)
	}
	got, _ := f.svc.GetRoom(ctx, room.ID)
	if got.Occupancy != 1 || got.Available != 3 || got.Status != RoomPartial {
		t.Errorf("expected occupancy 1 / available 3 / partial, got %d / %d / %s", got.Occupancy, got.Available, got.Status)
	}

	bills, _ := f.billing.ListBills(ctx, billing.Filter{})
	if len(bills) != 1 {
		t.Fatalf("expected 1 bill after admission, got %d", len(bills))
	}
	b := bills[0]
	if !b.TotalAmount.Equal(decimal.NewFromInt(1500)) || b.Source != billing.SourceWardAdmission || b.BillType != billing.TypeIPD {
		t.Errorf("unexpected admission bill %s %s %s", b.TotalAmount, b.Source, b.BillType)
	}
	if b.Items[0].Code != "ROOM-GENERAL" || b.Items[0].Description != "General Ward - Room 401 (Initial Charge)" {
		t.Errorf("unexpected admission item %+v", b.Items[0])
	}
	if adm.AdmissionBillID != b.ID || b.ReferenceID != adm.ID {
		t.Error("expected admission and bill to reference each other")
	}

	*f.clock = f.clock.Add(24 * time.Hour)
	adm, err = f.svc.DischargePatient(ctx, adm.ID)
	if err != nil {
		t.Fatalf("DischargePatient: %v", err)
	}
	if adm.Status != StatusDischarged || adm.DaysStayed != 1 || adm.DischargeDate != "2024-03-06" {
		t.Errorf("unexpected discharged admission %+v", adm)
	}
	got, _ = f.svc.GetRoom(ctx, room.ID)
	if got.Occupancy != 0 || got.Available != 4 || got.Status != RoomAvailable {
		t.Errorf("expected room back to empty, got %d / %d / %s", got.Occupancy, got.Available, got.Status)
	}

	bills, _ = f.billing.ListBills(ctx, billing.Filter{Source: billing.SourceWardDischarge})
	if len(bills) != 1 {
		t.Fatalf("expected 1 discharge bill, got %d", len(bills))
	}
	stay := bills[0].Items[0]
	if stay.Code != "ROOM-GENERAL-STAY" || stay.Quantity != 1 || !bills[0].TotalAmount.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("unexpected stay item %+v total %s", stay, bills[0].TotalAmount)
	}
	if stay.Description != "General Ward - 1 day(s) @ ₹1500/day" {
		t.Errorf("unexpected stay description %q", stay.Description)
	}
}

func TestDischarge_SameDayBillsOneDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, _ := f.svc.CreateRoom(ctx, &Room{RoomNumber: "101", Type: TypeICU, Beds: 2})

	adm, _ := f.svc.AdmitPatient(ctx, AdmitRequest{PatientID: "PAT-1", RoomID: room.ID, BedNumber: 2})
	*f.clock = f.clock.Add(3 * time.Hour)
	adm, err := f.svc.DischargePatient(ctx, adm.ID)
	if err != nil {
		t.Fatalf("DischargePatient: %v", err)
	}
	if adm.DaysStayed != 1 || !adm.TotalCharges.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("expected 1 day at 5000, got %d / %s", adm.DaysStayed, adm.TotalCharges)
	}
}

func TestDischarge_MultipleDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, _ := f.svc.CreateRoom(ctx, &Room{RoomNumber: "301", Type: TypePrivate, Beds: 1})

	adm, _ := f.svc.AdmitPatient(ctx, AdmitRequest{PatientID: "PAT-1", RoomID: room.ID, BedNumber: 1})
	*f.clock = f.clock.Add(72 * time.Hour)
	adm, _ = f.svc.DischargePatient(ctx, adm.ID)
	if adm.DaysStayed != 3 || !adm.TotalCharges.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("expected 3 days at 9000, got %d / %s", adm.DaysStayed, adm.TotalCharges)
	}
}

func TestAdmit_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, 2)

	if _, err := f.svc.AdmitPatient(ctx, AdmitRequest{PatientID: "P", RoomID: room.ID, BedNumber: 3}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("bed > beds: expected validation error, got %v", err)
	}
	if _, err := f.svc.AdmitPatient(ctx, AdmitRequest{PatientID: "P", RoomID: room.ID, BedNumber: 0}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("bed 0: expected validation error, got %v", err)
	}
	if _, err := f.svc.AdmitPatient(ctx, AdmitRequest{PatientID: "P", RoomID: "NOPE", BedNumber: 1}); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("missing room: expected ErrRoomNotFound, got %v", err)
	}

	f.svc.AdmitPatient(ctx, AdmitRequest{PatientID: "P1", RoomID: room.ID, BedNumber: 1})
	if _, err := f.svc.AdmitPatient(ctx, AdmitRequest{PatientID: "P2", RoomID: room.ID, BedNumber: 1}); !errors.Is(err, ErrBedOccupied) {
		t.Errorf("same bed: expected ErrBedOccupied, got %v", err)
	}
	f.svc.AdmitPatient(ctx, AdmitRequest{PatientID: "P2", RoomID: room.ID, BedNumber: 2})
	if _, err := f.svc.AdmitPatient(ctx, AdmitRequest{PatientID: "P3", RoomID: room.ID, BedNumber: 1}); !errors.Is(err, ErrRoomFull) {
		t.Errorf("full room: expected ErrRoomFull, got %v", err)
	}

	got, _ := f.svc.GetRoom(ctx, room.ID)
	if got.Occupancy != 2 {
		t.Errorf("expected rejected admissions to leave occupancy at 2, got %d", got.Occupancy)
	}
	bills, _ := f.billing.ListBills(ctx, billing.Filter{})
	if len(bills) != 2 {
		t.Errorf("expected only the 2 successful admissions to be billed, got %d", len(bills))
	}
}

type failingSink struct{}

func (failingSink) OnChargeIncurred(context.Context, billing.Charge) (*billing.Bill, error) {
	return nil, errors.New("ledger unavailable")
}

func TestAdmit_RollsBackWhenChargeFails(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(NewRoomRepoStore(st), NewAdmissionRepoStore(st), st, failingSink{}, zerolog.Nop())
	ctx := context.Background()
	room, _ := svc.CreateRoom(ctx, &Room{RoomNumber: "1", Type: TypeICU, Beds: 2})

	if _, err := svc.AdmitPatient(ctx, AdmitRequest{PatientID: "P", RoomID: room.ID, BedNumber: 1}); err == nil {
		t.Fatal("expected error")
	}
	got, _ := svc.GetRoom(ctx, room.ID)
	if got.Occupancy != 0 {
		t.Errorf("expected occupancy rolled back to 0, got %d", got.Occupancy)
	}
	list, _ := svc.ListAdmissions(ctx, AdmissionFilter{})
	if len(list) != 0 {
		t.Errorf("expected no admissions, got %d", len(list))
	}
}

func TestDischarge_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, 4)
	adm, _ := f.svc.AdmitPatient(ctx, AdmitRequest{PatientID: "P", RoomID: room.ID, BedNumber: 1})
	f.svc.DischargePatient(ctx, adm.ID)

	if _, err := f.svc.DischargePatient(ctx, adm.ID); !errors.Is(err, ErrAlreadyDischarged) {
		t.Errorf("expected ErrAlreadyDischarged, got %v", err)
	}
	got, _ := f.svc.GetRoom(ctx, room.ID)
	if got.Occupancy != 0 {
		t.Errorf("expected a single decrement, got occupancy %d", got.Occupancy)
	}
}

func TestDeleteRoom_RejectedWhileOccupied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, 1)
	adm, _ := f.svc.AdmitPatient(ctx, AdmitRequest{PatientID: "P", RoomID: room.ID, BedNumber: 1})

	if err := f.svc.DeleteRoom(ctx, room.ID); !errors.Is(err, ErrRoomOccupied) {
		t.Errorf("expected ErrRoomOccupied, got %v", err)
	}
	f.svc.DischargePatient(ctx, adm.ID)
	if err := f.svc.DeleteRoom(ctx, room.ID); err != nil {
		t.Errorf("expected delete to succeed after discharge, got %v", err)
	}
}

func TestCreateRoom_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := map[string]*Room{
		"no number":      {Type: TypeICU, Beds: 1},
		"bad type":       {RoomNumber: "1", Type: "SUITE", Beds: 1},
		"no beds":        {RoomNumber: "1", Type: TypeICU},
		"over occupancy": {RoomNumber: "1", Type: TypeICU, Beds: 1, Occupancy: 2},
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := f.svc.CreateRoom(ctx, r); !errors.Is(err, apperr.ErrInvalid) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSeedDefaultRooms_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seeded, err := f.svc.SeedDefaultRooms(ctx)
	if err != nil || !seeded {
		t.Fatalf("expected first seed to run, got %v / %v", seeded, err)
	}
	seeded, _ = f.svc.SeedDefaultRooms(ctx)
	if seeded {
		t.Error("expected second seed to be skipped")
	}
	rooms, _ := f.svc.ListRooms(ctx, RoomFilter{Type: TypeICU})
	if len(rooms) != 2 {
		t.Errorf("expected 2 ICU rooms, got %d", len(rooms))
	}
}

func TestOccupancySummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.SeedDefaultRooms(ctx)

	sum, err := f.svc.OccupancySummary(ctx)
	if err != nil {
		t.Fatalf("OccupancySummary: %v", err)
	}
	if sum.TotalRooms != 8 || sum.TotalBeds != 19 || sum.Occupied != 8 || sum.Available != 11 {
		t.Errorf("unexpected totals %+v", sum)
	}
	for _, ts := range sum.ByType {
		if ts.Type == TypeGeneral && (ts.Beds != 12 || ts.Occupied != 6 || ts.OccupancyPercentage != 50) {
			t.Errorf("unexpected GENERAL summary %+v", ts)
		}
	}
}
