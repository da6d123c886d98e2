package ward

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/events"
	"github.com/hms/hms/internal/platform/metrics"
	"github.com/hms/hms/internal/platform/store"
)

var (
	ErrRoomNotFound      = fmt.Errorf("room %w", apperr.ErrNotFound)
	ErrAdmissionNotFound = fmt.Errorf("admission %w", apperr.ErrNotFound)
	ErrRoomFull          = fmt.Errorf("%w: room is full", apperr.ErrConflict)
	ErrBedOccupied       = fmt.Errorf("%w: bed is already occupied", apperr.ErrConflict)
	ErrRoomOccupied      = fmt.Errorf("%w: room has occupied beds", apperr.ErrConflict)
	ErrAlreadyDischarged = fmt.Errorf("%w: admission is already discharged", apperr.ErrConflict)
)

// ChargeSink receives the room charges raised by admissions and
// discharges.
type ChargeSink interface {
	OnChargeIncurred(ctx context.Context, ch billing.Charge) (*billing.Bill, error)
}

type Service struct {
	rooms      RoomRepository
	admissions AdmissionRepository
	tx         store.Transactor
	charges    ChargeSink
	logger     zerolog.Logger
	now        func() time.Time
	events     events.Publisher
	metrics    *metrics.Metrics
}

func NewService(rooms RoomRepository, admissions AdmissionRepository, tx store.Transactor, charges ChargeSink, logger zerolog.Logger) *Service {
	return &Service{
		rooms:      rooms,
		admissions: admissions,
		tx:         tx,
		charges:    charges,
		logger:     logger.With().Str("component", "ward").Logger(),
		now:        time.Now,
		events:     events.Nop{},
	}
}

func (s *Service) SetPublisher(p events.Publisher) { s.events = p }

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// -- Rooms --

func (s *Service) CreateRoom(ctx context.Context, r *Room) (*Room, error) {
	if strings.TrimSpace(r.RoomNumber) == "" {
		return nil, apperr.Invalid("roomNumber is required")
	}
	rt, ok := roomTypes[r.Type]
	if !ok {
		return nil, apperr.Invalid("invalid room type: %s", r.Type)
	}
	if r.Beds < 1 {
		return nil, apperr.Invalid("beds must be at least 1")
	}
	if r.Occupancy < 0 || r.Occupancy > r.Beds {
		return nil, apperr.Invalid("occupancy must be between 0 and %d", r.Beds)
	}
	if r.ID == "" {
		r.ID = store.NewID(rt.Prefix)
	}
	now := s.now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.recompute()

	if err := s.rooms.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return r, nil
}

func (s *Service) GetRoom(ctx context.Context, id string) (*Room, error) {
	return s.rooms.GetByID(ctx, id)
}

func (s *Service) ListRooms(ctx context.Context, f RoomFilter) ([]*Room, error) {
	return s.rooms.List(ctx, f)
}

func (s *Service) DeleteRoom(ctx context.Context, id string) error {
	return s.tx.Atomic(ctx, func(ctx context.Context) error {
		r, err := s.rooms.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if r.Occupancy > 0 {
			return ErrRoomOccupied
		}
		return s.rooms.Delete(ctx, id)
	})
}

// SeedDefaultRooms stores the sample ward layout on an empty store.
func (s *Service) SeedDefaultRooms(ctx context.Context) (bool, error) {
	now := s.now().UTC()
	rooms := SampleRooms()
	for i := range rooms {
		rooms[i].CreatedAt = now
		rooms[i].UpdatedAt = now
	}
	seeded, err := s.rooms.Seed(ctx, rooms)
	if err != nil {
		return false, err
	}
	if seeded {
		s.logger.Info().Int("rooms", len(rooms)).Msg("seeded default rooms")
	}
	return seeded, nil
}

// -- Admissions --

// AdmitPatient occupies a bed and posts the initial room charge. The room,
// the admission and the bill are committed together.
func (s *Service) AdmitPatient(ctx context.Context, req AdmitRequest) (*Admission, error) {
	if req.PatientID == "" {
		return nil, apperr.Invalid("patientId is required")
	}
	if req.RoomID == "" {
		return nil, apperr.Invalid("roomId is required")
	}

	ctx, deferred := events.Defer(ctx)
	var adm *Admission
	var room *Room
	err := s.tx.Atomic(ctx, func(ctx context.Context) error {
		var err error
		room, err = s.rooms.GetByID(ctx, req.RoomID)
		if err != nil {
			return err
		}
		if req.BedNumber < 1 || req.BedNumber > room.Beds {
			return apperr.Invalid("bedNumber must be between 1 and %d", room.Beds)
		}
		if room.Beds-room.Occupancy <= 0 {
			return ErrRoomFull
		}
		active, err := s.admissions.List(ctx, AdmissionFilter{RoomID: room.ID, Status: StatusAdmitted})
		if err != nil {
			return err
		}
		for _, a := range active {
			if a.BedNumber == req.BedNumber {
				return fmt.Errorf("%w: room %s bed %d", ErrBedOccupied, room.RoomNumber, req.BedNumber)
			}
		}

		now := s.now().UTC()
		room, err = s.rooms.Update(ctx, room.ID, func(r *Room) error {
			r.Occupancy++
			r.UpdatedAt = now
			r.recompute()
			return nil
		})
		if err != nil {
			return err
		}

		rt := LookupRoomType(room.Type)
		adm = &Admission{
			ID:            store.NewID("ADM"),
			PatientID:     req.PatientID,
			PatientName:   req.PatientName,
			RoomID:        room.ID,
			RoomNumber:    room.RoomNumber,
			RoomType:      rt.Code,
			BedNumber:     req.BedNumber,
			Diagnosis:     req.Diagnosis,
			Doctor:        req.Doctor,
			AdmissionDate: now.Format(dateLayout),
			TotalCharges:  decimal.Zero,
			Status:        StatusAdmitted,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		bill, err := s.charges.OnChargeIncurred(ctx, billing.Charge{
			PatientID:   adm.PatientID,
			PatientName: adm.PatientName,
			BillType:    billing.TypeIPD,
			Source:      billing.SourceWardAdmission,
			ReferenceID: adm.ID,
			Description: "Room admission - " + adm.Diagnosis,
			Items: []billing.Item{{
				Code:        "ROOM-" + rt.Code,
				Description: fmt.Sprintf("%s - Room %s (Initial Charge)", rt.Label, room.RoomNumber),
				Quantity:    1,
				UnitPrice:   rt.DailyRate,
			}},
		})
		if err != nil {
			return fmt.Errorf("post admission charge: %w", err)
		}
		adm.AdmissionBillID = bill.ID

		return s.admissions.Create(ctx, adm)
	})
	if err != nil {
		deferred.Discard()
		return nil, err
	}

	a, r := *adm, *room
	events.OnCommit(ctx, func() {
		s.logger.Info().Str("admission_id", a.ID).Str("room_id", r.ID).Int("bed", a.BedNumber).
			Int("occupancy", r.Occupancy).Msg("patient admitted")
		s.metrics.WardEvent("admission", r.ID, r.Type, r.Occupancy)
		s.publish(ctx, "ward.admitted", "Admission", a.ID, &a)
	})
	deferred.Run()
	return adm, nil
}

// DischargePatient frees the bed and posts the stay charge for the number
// of calendar days since admission.
func (s *Service) DischargePatient(ctx context.Context, id string) (*Admission, error) {
	ctx, deferred := events.Defer(ctx)
	var adm *Admission
	var room *Room
	err := s.tx.Atomic(ctx, func(ctx context.Context) error {
		cur, err := s.admissions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status != StatusAdmitted {
			return fmt.Errorf("%w: %s", ErrAlreadyDischarged, id)
		}

		now := s.now().UTC()
		admitted, err := time.Parse(dateLayout, cur.AdmissionDate)
		if err != nil {
			admitted = cur.CreatedAt
		}
		days := DaysStayed(admitted, now)

		room, err = s.rooms.Update(ctx, cur.RoomID, func(r *Room) error {
			r.Occupancy--
			r.UpdatedAt = now
			r.recompute()
			return nil
		})
		if err != nil {
			return err
		}

		rt := LookupRoomType(cur.RoomType)
		total := rt.DailyRate.Mul(decimal.NewFromInt(int64(days)))
		bill, err := s.charges.OnChargeIncurred(ctx, billing.Charge{
			PatientID:   cur.PatientID,
			PatientName: cur.PatientName,
			BillType:    billing.TypeIPD,
			Source:      billing.SourceWardDischarge,
			ReferenceID: cur.ID,
			Description: "Room stay charges - " + cur.Diagnosis,
			Items: []billing.Item{{
				Code:        "ROOM-" + rt.Code + "-STAY",
				Description: fmt.Sprintf("%s - %d day(s) @ ₹%s/day", rt.Label, days, rt.DailyRate.String()),
				Quantity:    days,
				UnitPrice:   rt.DailyRate,
			}},
		})
		if err != nil {
			return fmt.Errorf("post discharge charge: %w", err)
		}

		adm, err = s.admissions.Update(ctx, id, func(a *Admission) error {
			a.Status = StatusDischarged
			a.DischargeDate = now.Format(dateLayout)
			a.DaysStayed = days
			a.TotalCharges = total
			a.DischargeBillID = bill.ID
			a.UpdatedAt = now
			return nil
		})
		return err
	})
	if err != nil {
		deferred.Discard()
		return nil, err
	}

	a, r := *adm, *room
	events.OnCommit(ctx, func() {
		s.logger.Info().Str("admission_id", a.ID).Str("room_id", r.ID).Int("days", a.DaysStayed).
			Int("occupancy", r.Occupancy).Msg("patient discharged")
		s.metrics.WardEvent("discharge", r.ID, r.Type, r.Occupancy)
		s.publish(ctx, "ward.discharged", "Admission", a.ID, &a)
	})
	deferred.Run()
	return adm, nil
}

func (s *Service) GetAdmission(ctx context.Context, id string) (*Admission, error) {
	return s.admissions.GetByID(ctx, id)
}

func (s *Service) ListAdmissions(ctx context.Context, f AdmissionFilter) ([]*Admission, error) {
	return s.admissions.List(ctx, f)
}

// OccupancySummary totals beds per room type. It is recomputed on every
// call.
func (s *Service) OccupancySummary(ctx context.Context) (*Summary, error) {
	rooms, err := s.rooms.List(ctx, RoomFilter{})
	if err != nil {
		return nil, err
	}
	active, err := s.admissions.List(ctx, AdmissionFilter{Status: StatusAdmitted})
	if err != nil {
		return nil, err
	}

	byType := map[string]*TypeSummary{}
	sum := &Summary{ActiveAdmissions: len(active)}
	for _, rt := range RoomTypes() {
		ts := &TypeSummary{Type: rt.Code, Label: rt.Label, DailyRate: rt.DailyRate}
		byType[rt.Code] = ts
	}
	for _, r := range rooms {
		ts := byType[LookupRoomType(r.Type).Code]
		ts.Rooms++
		ts.Beds += r.Beds
		ts.Occupied += r.Occupancy
		ts.Available += r.Beds - r.Occupancy
	}
	for _, rt := range RoomTypes() {
		ts := byType[rt.Code]
		ts.OccupancyPercentage = percent(ts.Occupied, ts.Beds)
		sum.TotalRooms += ts.Rooms
		sum.TotalBeds += ts.Beds
		sum.Occupied += ts.Occupied
		sum.Available += ts.Available
		sum.ByType = append(sum.ByType, *ts)
	}
	sum.OccupancyPercentage = percent(sum.Occupied, sum.TotalBeds)
	return sum, nil
}

func (s *Service) publish(ctx context.Context, eventType, entityType, id string, payload any) {
	ev := events.New(events.TopicWard, eventType, entityType, id, payload)
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish failed")
	}
}
