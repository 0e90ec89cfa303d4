package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/salon_backend/utils"
	"gorm.io/gorm"
)

// TimeOfDay is a wall-clock time in minutes since midnight, stored as "HH:MM".
type TimeOfDay int

const (
	Midnight TimeOfDay = 0
	// DayEnd is the last minute of the day; closing at DayEnd leaves the evening open.
	DayEnd TimeOfDay = 23*60 + 59
	// EndOfDay is the exclusive upper bound an interval may reach.
	EndOfDay TimeOfDay = 24 * 60
)

// ParseTimeOfDay accepts HH:MM (and HH:MM:SS as returned by MySQL TIME columns).
// 24:00 is accepted as the exclusive end of the day.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	parts := strings.Split(value, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, utils.ValidationErrorf("invalid time %q, expected HH:MM", value)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) == 0 || len(parts[0]) > 2 {
		return 0, utils.ValidationErrorf("invalid time %q, expected HH:MM", value)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return 0, utils.ValidationErrorf("invalid time %q, expected HH:MM", value)
	}
	if h == 24 && m == 0 {
		return EndOfDay, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, utils.ValidationErrorf("invalid time %q, expected HH:MM", value)
	}
	return TimeOfDay(h*60 + m), nil
}

func MustTimeOfDay(value string) TimeOfDay {
	t, err := ParseTimeOfDay(value)
	if err != nil {
		panic(err)
	}
	return t
}

// Ptr is for request structs, where an omitted time must stay distinguishable from 00:00.
func (t TimeOfDay) Ptr() *TimeOfDay {
	return &t
}

// RequireTime dereferences a time taken from a request, rejecting an omitted one.
func RequireTime(name string, t *TimeOfDay) (TimeOfDay, error) {
	if t == nil {
		return 0, utils.ValidationErrorf("%s is required, expected HH:MM", name)
	}
	return *t, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// AddMinutes returns the time shifted by d minutes, or a validation error past the end of the day.
func (t TimeOfDay) AddMinutes(d int) (TimeOfDay, error) {
	end := t + TimeOfDay(d)
	if end > EndOfDay {
		return 0, utils.ValidationErrorf("interval %s + %d min runs past midnight", t, d)
	}
	return end, nil
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

func (t *TimeOfDay) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case time.Time:
		*t = TimeOfDay(v.Hour()*60 + v.Minute())
		return nil
	case nil:
		*t = 0
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return utils.ValidationErrorf("invalid time, expected \"HH:MM\"")
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Interval is an occupied half-open [Start, End) range of one professional's day.
type Interval struct {
	Kind           IntervalKind `json:"kind"`
	ProfessionalId int          `json:"professional_id"`
	Start          TimeOfDay    `json:"start"`
	End            TimeOfDay    `json:"end"`
	ReferenceId    int          `json:"reference_id"`
	Reason         string       `json:"reason,omitempty"`
}

// Overlaps uses the half-open test; touching endpoints do not overlap.
func (i Interval) Overlaps(start, end TimeOfDay) bool {
	return start < i.End && end > i.Start
}

func (i Interval) Describe() string {
	if i.Kind == IntervalKindBlock {
		return "blocked: " + i.Reason
	}
	return fmt.Sprintf("occupied (%s-%s)", i.Start, i.End)
}

// IsFullDay reports whether a block covers the whole day (00:00-23:59, 00:00-24:00 or 00:00-00:00).
func IsFullDay(start, end TimeOfDay) bool {
	return start == Midnight && (end >= DayEnd || end == Midnight)
}

// ConflictError carries the first interval that collides with a request.
type ConflictError struct {
	Interval Interval
}

func (e *ConflictError) Error() string {
	return e.Interval.Describe()
}

func (e *ConflictError) Is(target error) bool {
	return target == utils.ErrConflict
}

// FindConflict returns the first interval overlapping [start, end).
// Bookings are checked before blocks; within a kind the slice order wins.
func FindConflict(start, end TimeOfDay, intervals []Interval) *Interval {
	for _, kind := range []IntervalKind{IntervalKindBooking, IntervalKindBlock} {
		for i := range intervals {
			if intervals[i].Kind == kind && intervals[i].Overlaps(start, end) {
				found := intervals[i]
				return &found
			}
		}
	}
	return nil
}

// CheckInterval validates the range and returns a *ConflictError on overlap.
func CheckInterval(start, end TimeOfDay, intervals []Interval) error {
	if end <= start {
		return utils.ValidationErrorf("end %s must be after start %s", end, start)
	}
	if end > EndOfDay {
		return utils.ValidationErrorf("end %s runs past midnight", end)
	}
	if c := FindConflict(start, end, intervals); c != nil {
		return &ConflictError{Interval: *c}
	}
	return nil
}

func scheduleLockKey(professionalId int, date time.Time) string {
	return fmt.Sprintf("schedule:%d:%s", professionalId, utils.FormatDate(date))
}

// LoadDayIntervals returns the occupied intervals of (professional, date):
// non-cancelled bookings ordered by start, then the professional's own and global blocks.
// excludeAppointmentId removes one booking from the set (used when rescheduling it).
func LoadDayIntervals(tx *gorm.DB, professionalId int, date time.Time, excludeAppointmentId int) ([]Interval, error) {
	day := utils.FormatDate(date)

	var appointments []*Appointment
	q := tx.Model(&Appointment{}).
		Where("professional_id = ? AND date = ? AND status <> ?", professionalId, day, AppointmentStatusCancelled)
	if excludeAppointmentId > 0 {
		q = q.Where("id <> ?", excludeAppointmentId)
	}
	if err := q.Order("start_time ASC").Order("id ASC").Find(&appointments).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}

	var blocks []*Block
	if err := tx.Model(&Block{}).
		Where("date = ? AND professional_id IN ?", day, []int{professionalId, AllProfessionals}).
		Order("start_time ASC").Order("id ASC").
		Find(&blocks).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}

	intervals := make([]Interval, 0, len(appointments)+len(blocks))
	for _, a := range appointments {
		intervals = append(intervals, a.interval())
	}
	for _, b := range blocks {
		intervals = append(intervals, b.interval())
	}
	return intervals, nil
}
