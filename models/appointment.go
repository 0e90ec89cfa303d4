package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Appointment struct {
	ID             int               `gorm:"primary_key" json:"id"`
	ClientId       int               `gorm:"not null;index" json:"client_id"`
	ProfessionalId int               `gorm:"not null;index:idx_appointment_day,priority:1" json:"professional_id"`
	ServiceId      int               `gorm:"not null;index" json:"service_id"`
	Date           time.Time         `gorm:"type:date;not null;index:idx_appointment_day,priority:2" json:"date"`
	StartTime      TimeOfDay         `gorm:"type:char(5);not null" json:"start_time"`
	EndTime        TimeOfDay         `gorm:"type:char(5);not null" json:"end_time"`
	FinalPrice     decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"final_price"`
	Discount       decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"discount"`
	Status         AppointmentStatus `gorm:"size:20;not null;index" json:"status"`
	PayrollSettled *bool             `gorm:"not null;default:false" json:"payroll_settled"`
	Notes          string            `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a Appointment) interval() Interval {
	return Interval{
		Kind:           IntervalKindBooking,
		ProfessionalId: a.ProfessionalId,
		Start:          a.StartTime,
		End:            a.EndTime,
		ReferenceId:    a.ID,
	}
}

// checkTransition rejects moves the appointment state machine does not allow.
func (a Appointment) checkTransition(next AppointmentStatus) error {
	if !a.Status.CanTransitionTo(next) {
		return utils.ValidationErrorf("appointment #%d cannot move from %s to %s", a.ID, a.Status, next)
	}
	return nil
}

// transitionAppointment moves one appointment through the state machine inside tx.
func transitionAppointment(tx *gorm.DB, id int, next AppointmentStatus) (*Appointment, error) {
	appointment, err := utils.FetchModelForUpdate[Appointment](tx, id)
	if err != nil {
		return nil, err
	}
	if err := appointment.checkTransition(next); err != nil {
		return nil, err
	}
	if err := tx.Model(appointment).UpdateColumn("status", next).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	appointment.Status = next
	return appointment, nil
}

// ConfirmAttendance marks the service as delivered and waiting for payment.
func ConfirmAttendance(ctx context.Context, id int) (*Appointment, error) {
	db := config.GetDB()
	var result *Appointment
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = transitionAppointment(tx, id, AppointmentStatusByCollection)
		return err
	})
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	RecordAudit(ctx, AuditCategoryAppointment, fmt.Sprintf("appointment #%d attended, awaiting collection", id))
	return result, nil
}

// CancelAppointment frees the interval; cancelled bookings never take part in conflict checks.
func CancelAppointment(ctx context.Context, id int, reason string) (*Appointment, error) {
	db := config.GetDB()
	var result *Appointment
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = transitionAppointment(tx, id, AppointmentStatusCancelled)
		return err
	})
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	detail := fmt.Sprintf("appointment #%d cancelled", id)
	if reason = strings.TrimSpace(reason); reason != "" {
		detail += ": " + reason
	}
	RecordAudit(ctx, AuditCategoryAppointment, detail)
	return result, nil
}

type NewPriceAdjustment struct {
	FinalPrice decimal.Decimal `json:"final_price"`
	Discount   decimal.Decimal `json:"discount"`
}

// AdjustAppointmentPrice edits the price of an open appointment. The price is frozen once Paid.
func AdjustAppointmentPrice(ctx context.Context, id int, input *NewPriceAdjustment) (*Appointment, error) {
	if input.FinalPrice.IsNegative() || input.Discount.IsNegative() {
		return nil, utils.ValidationErrorf("price and discount must not be negative")
	}
	db := config.GetDB()
	var result *Appointment
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		appointment, err := utils.FetchModelForUpdate[Appointment](tx, id)
		if err != nil {
			return err
		}
		if appointment.Status.IsTerminal() {
			return utils.ValidationErrorf("appointment #%d is %s, its price can no longer change", id, appointment.Status)
		}
		if err := tx.Model(appointment).Updates(map[string]interface{}{
			"FinalPrice": input.FinalPrice,
			"Discount":   input.Discount,
		}).Error; err != nil {
			return err
		}
		appointment.FinalPrice = input.FinalPrice
		appointment.Discount = input.Discount
		result = appointment
		return nil
	})
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	RecordAudit(ctx, AuditCategoryAppointment, fmt.Sprintf("appointment #%d price set to %s (discount %s)", id, input.FinalPrice, input.Discount))
	return result, nil
}

// AppointmentView is an appointment joined with its directory names.
type AppointmentView struct {
	ID                int               `json:"id"`
	Date              time.Time         `json:"date"`
	StartTime         TimeOfDay         `json:"start_time"`
	EndTime           TimeOfDay         `json:"end_time"`
	Status            AppointmentStatus `json:"status"`
	FinalPrice        decimal.Decimal   `json:"final_price"`
	Discount          decimal.Decimal   `json:"discount"`
	PayrollSettled    bool              `json:"payroll_settled"`
	ClientId          int               `json:"client_id"`
	ClientName        string            `json:"client_name"`
	ClientPhone       string            `json:"client_phone"`
	ProfessionalId    int               `json:"professional_id"`
	ProfessionalName  string            `json:"professional_name"`
	ProfessionalColor string            `json:"professional_color"`
	ServiceId         int               `json:"service_id"`
	ServiceName       string            `json:"service_name"`
}

func appointmentViewQuery(db *gorm.DB) *gorm.DB {
	return db.Table("appointments AS a").
		Select(`a.id, a.date, a.start_time, a.end_time, a.status, a.final_price, a.discount, a.payroll_settled,
			a.client_id, c.name AS client_name, c.phone AS client_phone,
			a.professional_id, p.name AS professional_name, p.color AS professional_color,
			a.service_id, s.name AS service_name`).
		Joins("LEFT JOIN clients AS c ON c.id = a.client_id").
		Joins("LEFT JOIN professionals AS p ON p.id = a.professional_id").
		Joins("LEFT JOIN services AS s ON s.id = a.service_id")
}

func GetAppointmentView(ctx context.Context, id int) (*AppointmentView, error) {
	db := config.GetDB()
	var views []*AppointmentView
	if err := appointmentViewQuery(db.WithContext(ctx)).Where("a.id = ?", id).Find(&views).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	if len(views) == 0 {
		return nil, utils.NotFoundError("Appointment", id)
	}
	return views[0], nil
}

type AgendaFilter struct {
	Date           *time.Time
	ProfessionalId int
	Search         string
}

// ListAgenda lists non-cancelled appointments ordered by day, time and professional.
func ListAgenda(ctx context.Context, filter AgendaFilter) ([]*AppointmentView, error) {
	db := config.GetDB()
	q := appointmentViewQuery(db.WithContext(ctx)).Where("a.status <> ?", AppointmentStatusCancelled)
	if filter.Date != nil {
		q = q.Where("a.date = ?", utils.FormatDate(*filter.Date))
	}
	if filter.ProfessionalId > 0 {
		q = q.Where("a.professional_id = ?", filter.ProfessionalId)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + term + "%"
		q = q.Where("c.name LIKE ? OR c.phone LIKE ? OR p.name LIKE ? OR s.name LIKE ?", like, like, like, like)
	}
	var views []*AppointmentView
	if err := q.Order("a.date ASC").Order("a.start_time ASC").Order("p.name ASC").Find(&views).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return views, nil
}

// UpcomingAppointmentsForClient returns the client's open appointments from today on.
func UpcomingAppointmentsForClient(ctx context.Context, clientId int) ([]*AppointmentView, error) {
	db := config.GetDB()
	today := utils.FormatDate(time.Now())
	var views []*AppointmentView
	err := appointmentViewQuery(db.WithContext(ctx)).
		Where("a.client_id = ? AND a.date >= ?", clientId, today).
		Where("a.status IN ?", []AppointmentStatus{AppointmentStatusPending, AppointmentStatusRescheduled}).
		Order("a.date ASC").Order("a.start_time ASC").
		Find(&views).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return views, nil
}

// ClientCollection groups the attended appointments one client still has to pay.
type ClientCollection struct {
	ClientId     int                `json:"client_id"`
	ClientName   string             `json:"client_name"`
	Total        decimal.Decimal    `json:"total"`
	Appointments []*AppointmentView `json:"appointments"`
}

func GroupCollections(views []*AppointmentView) []*ClientCollection {
	groups := make([]*ClientCollection, 0)
	byClient := make(map[int]*ClientCollection)
	for _, v := range views {
		g, ok := byClient[v.ClientId]
		if !ok {
			g = &ClientCollection{ClientId: v.ClientId, ClientName: v.ClientName, Total: decimal.Zero}
			byClient[v.ClientId] = g
			groups = append(groups, g)
		}
		g.Appointments = append(g.Appointments, v)
		g.Total = g.Total.Add(v.FinalPrice)
	}
	return groups
}

// PendingCollections lists ByCollection appointments grouped by client.
func PendingCollections(ctx context.Context) ([]*ClientCollection, error) {
	db := config.GetDB()
	var views []*AppointmentView
	err := appointmentViewQuery(db.WithContext(ctx)).
		Where("a.status = ?", AppointmentStatusByCollection).
		Order("c.name ASC").Order("a.date ASC").Order("a.start_time ASC").
		Find(&views).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return GroupCollections(views), nil
}

// BusyDates returns the days from `from` on that have at least one open appointment.
func BusyDates(ctx context.Context, from time.Time) ([]string, error) {
	db := config.GetDB()
	var days []time.Time
	err := db.WithContext(ctx).Model(&Appointment{}).
		Distinct("date").
		Where("date >= ? AND status <> ?", utils.FormatDate(from), AppointmentStatusCancelled).
		Order("date ASC").
		Pluck("date", &days).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	result := make([]string, 0, len(days))
	for _, d := range days {
		result = append(result, utils.FormatDate(d))
	}
	return result, nil
}
