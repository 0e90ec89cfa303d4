package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
	"gorm.io/gorm"
)

// ProposeBooking checks [start, start+duration) against the professional's day without writing.
// On success it returns the computed end; a collision comes back as *ConflictError.
func ProposeBooking(ctx context.Context, professionalId int, date time.Time, start TimeOfDay, durationMinutes int) (TimeOfDay, error) {
	if durationMinutes <= 0 {
		return 0, utils.ValidationErrorf("duration must be greater than zero")
	}
	if start < Midnight || start >= EndOfDay {
		return 0, utils.ValidationErrorf("invalid start time %s", start)
	}
	if _, err := GetResource[Professional](ctx, professionalId); err != nil {
		return 0, err
	}
	end, err := start.AddMinutes(durationMinutes)
	if err != nil {
		return 0, err
	}
	db := config.GetDB()
	intervals, err := LoadDayIntervals(db.WithContext(ctx), professionalId, date, 0)
	if err != nil {
		return 0, err
	}
	if err := CheckInterval(start, end, intervals); err != nil {
		return 0, err
	}
	return end, nil
}

type NewBookingItem struct {
	ProfessionalId int        `json:"professional_id" validate:"required,gt=0"`
	ServiceId      int        `json:"service_id" validate:"required,gt=0"`
	Date           string     `json:"date" validate:"required"`
	Start          *TimeOfDay `json:"start"`
}

type NewBooking struct {
	ClientId    int               `json:"client_id"`
	ClientName  string            `json:"client_name" validate:"max=100"`
	ClientPhone string            `json:"client_phone"`
	Notes       string            `json:"notes"`
	Items       []*NewBookingItem `json:"items" validate:"required,min=1,dive"`
}

// resolved booking line, everything looked up before any lock is taken
type plannedBooking struct {
	professional *Professional
	service      *Service
	date         time.Time
	start        TimeOfDay
	end          TimeOfDay
	lockKey      string
}

func (input *NewBooking) plan(ctx context.Context) ([]*plannedBooking, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.ClientId <= 0 && strings.TrimSpace(input.ClientName) == "" {
		return nil, utils.ValidationErrorf("client id or client name is required")
	}
	starts := make([]TimeOfDay, len(input.Items))
	for i, item := range input.Items {
		start, err := RequireTime("start", item.Start)
		if err != nil {
			return nil, err
		}
		starts[i] = start
	}
	planned := make([]*plannedBooking, 0, len(input.Items))
	for i, item := range input.Items {
		professional, err := GetResource[Professional](ctx, item.ProfessionalId)
		if err != nil {
			return nil, err
		}
		if !professional.Active() {
			return nil, utils.ValidationErrorf("professional %s is disabled", professional.Name)
		}
		service, err := GetResource[Service](ctx, item.ServiceId)
		if err != nil {
			return nil, err
		}
		if !service.Active() {
			return nil, utils.ValidationErrorf("service %s is disabled", service.Name)
		}
		if !professional.CanPerform(service.ID) {
			return nil, utils.ValidationErrorf("%s does not perform %s", professional.Name, service.Name)
		}
		date, err := utils.ParseDate(item.Date)
		if err != nil {
			return nil, err
		}
		end, err := starts[i].AddMinutes(service.DurationMinutes)
		if err != nil {
			return nil, err
		}
		planned = append(planned, &plannedBooking{
			professional: professional,
			service:      service,
			date:         date,
			start:        starts[i],
			end:          end,
			lockKey:      scheduleLockKey(professional.ID, date),
		})
	}
	return planned, nil
}

// CreateAppointments commits a booking cart. Every (professional, date) touched is locked
// across re-check and insert, and items of the same cart are checked against each other.
func CreateAppointments(ctx context.Context, input *NewBooking) ([]*Appointment, error) {
	planned, err := input.plan(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(planned))
	for _, p := range planned {
		keys = append(keys, p.lockKey)
	}

	var created []*Appointment
	err = utils.RunSerialized(ctx, keys, func(tx *gorm.DB) error {
		created = make([]*Appointment, 0, len(planned))
		clientId, err := resolveBookingClient(tx, input.ClientId, input.ClientName, input.ClientPhone)
		if err != nil {
			return err
		}
		days := make(map[string][]Interval)
		for _, p := range planned {
			intervals, loaded := days[p.lockKey]
			if !loaded {
				intervals, err = LoadDayIntervals(tx, p.professional.ID, p.date, 0)
				if err != nil {
					return err
				}
			}
			if err := CheckInterval(p.start, p.end, intervals); err != nil {
				return err
			}
			appointment := Appointment{
				ClientId:       clientId,
				ProfessionalId: p.professional.ID,
				ServiceId:      p.service.ID,
				Date:           p.date,
				StartTime:      p.start,
				EndTime:        p.end,
				FinalPrice:     p.service.Price,
				Status:         AppointmentStatusPending,
				PayrollSettled: utils.NewFalse(),
				Notes:          input.Notes,
			}
			if err := tx.Create(&appointment).Error; err != nil {
				return err
			}
			days[p.lockKey] = append(intervals, appointment.interval())
			created = append(created, &appointment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, a := range created {
		p := planned[i]
		RecordAudit(ctx, AuditCategoryBooking, fmt.Sprintf("appointment #%d: %s with %s on %s %s-%s",
			a.ID, p.service.Name, p.professional.Name, utils.FormatDate(a.Date), a.StartTime, a.EndTime))
	}
	return created, nil
}

type NewReschedule struct {
	Date           string     `json:"date" validate:"required"`
	Start          *TimeOfDay `json:"start"`
	ProfessionalId int        `json:"professional_id"`
}

// Reschedule moves an appointment. The appointment's own interval is ignored during the
// check; on any failure the appointment is left untouched.
func Reschedule(ctx context.Context, appointmentId int, input *NewReschedule) (*Appointment, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	start, err := RequireTime("start", input.Start)
	if err != nil {
		return nil, err
	}
	current, err := utils.FetchModel[Appointment](ctx, appointmentId)
	if err != nil {
		return nil, err
	}
	if err := current.checkTransition(AppointmentStatusRescheduled); err != nil {
		return nil, err
	}
	professionalId := input.ProfessionalId
	if professionalId <= 0 {
		professionalId = current.ProfessionalId
	}
	professional, err := GetResource[Professional](ctx, professionalId)
	if err != nil {
		return nil, err
	}
	if !professional.Active() {
		return nil, utils.ValidationErrorf("professional %s is disabled", professional.Name)
	}
	service, err := GetResource[Service](ctx, current.ServiceId)
	if err != nil {
		return nil, err
	}
	if !professional.CanPerform(service.ID) {
		return nil, utils.ValidationErrorf("%s does not perform %s", professional.Name, service.Name)
	}
	date, err := utils.ParseDate(input.Date)
	if err != nil {
		return nil, err
	}
	end, err := start.AddMinutes(service.DurationMinutes)
	if err != nil {
		return nil, err
	}

	var result *Appointment
	err = utils.RunSerialized(ctx, []string{scheduleLockKey(professionalId, date)}, func(tx *gorm.DB) error {
		appointment, err := utils.FetchModelForUpdate[Appointment](tx, appointmentId)
		if err != nil {
			return err
		}
		if err := appointment.checkTransition(AppointmentStatusRescheduled); err != nil {
			return err
		}
		intervals, err := LoadDayIntervals(tx, professionalId, date, appointmentId)
		if err != nil {
			return err
		}
		if err := CheckInterval(start, end, intervals); err != nil {
			return err
		}
		if err := tx.Model(appointment).Updates(map[string]interface{}{
			"ProfessionalId": professionalId,
			"Date":           date,
			"StartTime":      start,
			"EndTime":        end,
			"Status":         AppointmentStatusRescheduled,
		}).Error; err != nil {
			return err
		}
		result = appointment
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.ProfessionalId = professionalId
	result.Date = date
	result.StartTime = start
	result.EndTime = end
	result.Status = AppointmentStatusRescheduled
	RecordAudit(ctx, AuditCategoryReschedule, fmt.Sprintf("appointment #%d moved to %s %s-%s with %s",
		appointmentId, utils.FormatDate(date), start, end, professional.Name))
	return result, nil
}

// FilterAvailableProfessionals keeps active professionals without a full-day block.
// A global full-day block empties the list.
func FilterAvailableProfessionals(professionals []*Professional, blocks []*Block) []*Professional {
	closed := make(map[int]bool)
	for _, b := range blocks {
		if !IsFullDay(b.StartTime, b.EndTime) {
			continue
		}
		if b.ProfessionalId == AllProfessionals {
			return []*Professional{}
		}
		closed[b.ProfessionalId] = true
	}
	available := make([]*Professional, 0, len(professionals))
	for _, p := range professionals {
		if p.Active() && !closed[p.ID] {
			available = append(available, p)
		}
	}
	return available
}

func ListAvailableProfessionals(ctx context.Context, date time.Time) ([]*Professional, error) {
	professionals, err := ListProfessionals(ctx, false)
	if err != nil {
		return nil, err
	}
	blocks, err := blocksOnDate(config.GetDB().WithContext(ctx), date)
	if err != nil {
		return nil, err
	}
	return FilterAvailableProfessionals(professionals, blocks), nil
}
