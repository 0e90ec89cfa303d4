package models_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/salon_backend/models"
	"github.com/mmdatafocus/salon_backend/utils"
)

func TestAppointmentStatus_Transitions(t *testing.T) {
	allowed := []struct{ from, to models.AppointmentStatus }{
		{models.AppointmentStatusPending, models.AppointmentStatusRescheduled},
		{models.AppointmentStatusPending, models.AppointmentStatusByCollection},
		{models.AppointmentStatusPending, models.AppointmentStatusPaid},
		{models.AppointmentStatusPending, models.AppointmentStatusCancelled},
		{models.AppointmentStatusRescheduled, models.AppointmentStatusRescheduled},
		{models.AppointmentStatusRescheduled, models.AppointmentStatusPaid},
		{models.AppointmentStatusByCollection, models.AppointmentStatusPaid},
		{models.AppointmentStatusByCollection, models.AppointmentStatusCancelled},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to models.AppointmentStatus }{
		{models.AppointmentStatusPaid, models.AppointmentStatusCancelled},
		{models.AppointmentStatusPaid, models.AppointmentStatusRescheduled},
		{models.AppointmentStatusCancelled, models.AppointmentStatusPending},
		{models.AppointmentStatusCancelled, models.AppointmentStatusPaid},
		{models.AppointmentStatusByCollection, models.AppointmentStatusRescheduled},
		{models.AppointmentStatusByCollection, models.AppointmentStatusPending},
		{models.AppointmentStatusPending, models.AppointmentStatusPending},
	}
	for _, tc := range denied {
		if tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("%s -> %s should be rejected", tc.from, tc.to)
		}
	}

	if !models.AppointmentStatusPaid.IsTerminal() || !models.AppointmentStatusCancelled.IsTerminal() {
		t.Fatalf("Paid and Cancelled must be terminal")
	}
	if models.AppointmentStatus("Done").IsValid() {
		t.Fatalf("unknown status reported as valid")
	}
}

func TestProfessional_CanPerform(t *testing.T) {
	all := models.Professional{AssignedServices: "ALL"}
	if !all.CanPerform(42) {
		t.Fatalf("ALL should cover every service")
	}
	some := models.Professional{AssignedServices: "1, 3,5"}
	if !some.CanPerform(3) || !some.CanPerform(5) {
		t.Fatalf("assigned services not recognised")
	}
	if some.CanPerform(2) {
		t.Fatalf("service 2 is not assigned")
	}
}

func TestFilterAvailableProfessionals(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.Local)
	ana := &models.Professional{ID: 1, Name: "Ana", IsActive: utils.NewTrue()}
	luis := &models.Professional{ID: 2, Name: "Luis", IsActive: utils.NewTrue()}
	eva := &models.Professional{ID: 3, Name: "Eva", IsActive: utils.NewFalse()}
	professionals := []*models.Professional{ana, luis, eva}

	blocks := []*models.Block{
		{ProfessionalId: 1, Date: day, StartTime: models.Midnight, EndTime: models.DayEnd, Reason: "Vacation"},
		{ProfessionalId: 2, Date: day, StartTime: tod("12:00"), EndTime: tod("13:00"), Reason: "Lunch"},
	}
	got := models.FilterAvailableProfessionals(professionals, blocks)
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected only Luis, got %+v", got)
	}

	midnightEnd := []*models.Block{{ProfessionalId: 2, Date: day, StartTime: models.Midnight, EndTime: models.Midnight}}
	if got := models.FilterAvailableProfessionals(professionals, midnightEnd); len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("00:00-00:00 is a full-day block, got %+v", got)
	}

	global := append(blocks, &models.Block{ProfessionalId: models.AllProfessionals, Date: day, StartTime: models.Midnight, EndTime: models.EndOfDay, Reason: "Holiday"})
	if got := models.FilterAvailableProfessionals(professionals, global); len(got) != 0 {
		t.Fatalf("global full-day block should empty the list, got %d", len(got))
	}
}

func TestOpeningHourBlocks(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.Local)
	blocks, err := models.OpeningHourBlocks(day, tod("08:00"), tod("19:00"))
	if err != nil {
		t.Fatalf("OpeningHourBlocks: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].StartTime != models.Midnight || blocks[0].EndTime != tod("08:00") {
		t.Fatalf("unexpected morning block %s-%s", blocks[0].StartTime, blocks[0].EndTime)
	}
	if blocks[1].StartTime != tod("19:00") || blocks[1].EndTime != models.EndOfDay {
		t.Fatalf("evening block must run to 24:00, got %s-%s", blocks[1].StartTime, blocks[1].EndTime)
	}
	lastMinute := []models.Interval{{Kind: models.IntervalKindBlock, Start: blocks[1].StartTime, End: blocks[1].EndTime, Reason: blocks[1].Reason}}
	if err := models.CheckInterval(models.DayEnd, models.EndOfDay, lastMinute); !errors.Is(err, utils.ErrConflict) {
		t.Fatalf("23:59-24:00 must be closed, got %v", err)
	}
	for _, b := range blocks {
		if !b.IsGlobal() || b.Reason != models.BlockReasonOutOfHours {
			t.Fatalf("opening-hour blocks must be global and out-of-hours: %+v", b)
		}
	}

	if blocks, _ := models.OpeningHourBlocks(day, models.Midnight, models.DayEnd); len(blocks) != 0 {
		t.Fatalf("an all-day opening needs no blocks, got %d", len(blocks))
	}
	if _, err := models.OpeningHourBlocks(day, tod("19:00"), tod("08:00")); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBlockDays(t *testing.T) {
	from := time.Date(2026, 2, 27, 10, 0, 0, 0, time.Local)
	to := time.Date(2026, 3, 2, 8, 0, 0, 0, time.Local)
	days, err := models.BlockDays(from, to)
	if err != nil {
		t.Fatalf("BlockDays: %v", err)
	}
	want := []string{"2026-02-27", "2026-02-28", "2026-03-01", "2026-03-02"}
	if len(days) != len(want) {
		t.Fatalf("expected %d days, got %d", len(want), len(days))
	}
	for i, d := range days {
		if utils.FormatDate(d) != want[i] {
			t.Fatalf("day %d: expected %s, got %s", i, want[i], utils.FormatDate(d))
		}
	}

	if days, err := models.BlockDays(from, from); err != nil || len(days) != 1 {
		t.Fatalf("single-day range: %v %v", days, err)
	}
	if _, err := models.BlockDays(to, from); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("expected validation error for reversed range, got %v", err)
	}
	if _, err := models.BlockDays(from, from.AddDate(2, 0, 0)); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("expected validation error for a two-year range, got %v", err)
	}
}

func TestNewBlock_Span(t *testing.T) {
	var omitted models.NewBlock
	if err := json.Unmarshal([]byte(`{"professional_id":1,"date_from":"2026-10-20"}`), &omitted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, _, err := omitted.Span(); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("a block without times must be rejected, got %v", err)
	}
	onlyStart := models.NewBlock{DateFrom: "2026-10-20", Start: tod("10:00").Ptr()}
	if _, _, err := onlyStart.Span(); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("a block without an end must be rejected, got %v", err)
	}

	fullDay := models.NewBlock{DateFrom: "2026-10-20", FullDay: true}
	start, end, err := fullDay.Span()
	if err != nil || start != models.Midnight || end != models.EndOfDay || !models.IsFullDay(start, end) {
		t.Fatalf("full_day should block 00:00-24:00, got %s-%s %v", start, end, err)
	}
	fullDay.Start = tod("09:00").Ptr()
	if _, _, err := fullDay.Span(); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("full_day with times is ambiguous, got %v", err)
	}

	untilMidnight := models.NewBlock{DateFrom: "2026-10-20", Start: tod("18:00").Ptr(), End: models.Midnight.Ptr()}
	if start, end, err := untilMidnight.Span(); err != nil || start != tod("18:00") || end != models.EndOfDay {
		t.Fatalf("an explicit 00:00 end means midnight, got %s-%s %v", start, end, err)
	}
	reversed := models.NewBlock{DateFrom: "2026-10-20", Start: tod("12:00").Ptr(), End: tod("09:00").Ptr()}
	if _, _, err := reversed.Span(); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("reversed block must be rejected, got %v", err)
	}
}

func TestCreateAppointments_RequiresStart(t *testing.T) {
	var item models.NewBookingItem
	if err := json.Unmarshal([]byte(`{"professional_id":1,"service_id":2,"date":"2026-10-20"}`), &item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.Start != nil {
		t.Fatalf("an omitted start must stay unset, got %s", item.Start)
	}
	_, err := models.CreateAppointments(context.Background(), &models.NewBooking{
		ClientName: "Maria",
		Items:      []*models.NewBookingItem{&item},
	})
	if !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("booking without a start must be a validation error, got %v", err)
	}

	var midnight models.NewBookingItem
	if err := json.Unmarshal([]byte(`{"professional_id":1,"service_id":2,"date":"2026-10-20","start":"00:00"}`), &midnight); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if midnight.Start == nil || *midnight.Start != models.Midnight {
		t.Fatalf("an explicit 00:00 start must be kept, got %v", midnight.Start)
	}
}

func TestReschedule_RequiresStart(t *testing.T) {
	_, err := models.Reschedule(context.Background(), 1, &models.NewReschedule{Date: "2026-10-20"})
	if !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("reschedule without a start must be a validation error, got %v", err)
	}
}
