package models

import (
	"context"
	"sort"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// Commission is price × percent / 100, rounded to cents.
func Commission(finalPrice decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	return finalPrice.Mul(percent).Div(hundred).Round(2)
}

type CommissionLine struct {
	AppointmentId int             `json:"appointment_id"`
	Date          time.Time       `json:"date"`
	StartTime     TimeOfDay       `json:"start_time"`
	ClientName    string          `json:"client_name"`
	ServiceName   string          `json:"service_name"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	Commission    decimal.Decimal `json:"commission"`
}

type CommissionSummaryResult struct {
	Professional     *Professional     `json:"professional"`
	From             time.Time         `json:"from"`
	To               time.Time         `json:"to"`
	Lines            []*CommissionLine `json:"lines"`
	TotalSales       decimal.Decimal   `json:"total_sales"`
	TotalCommission  decimal.Decimal   `json:"total_commission"`
	PendingLoans     []*Loan           `json:"pending_loans"`
	LoansOutstanding decimal.Decimal   `json:"loans_outstanding"`
}

// CommissionSummary lists the unsettled Paid work of a professional in [from, to]
// together with the loans a payroll run could deduct from. Read only.
func CommissionSummary(ctx context.Context, professionalId int, from, to time.Time) (*CommissionSummaryResult, error) {
	professional, err := GetResource[Professional](ctx, professionalId)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	var views []*AppointmentView
	err = appointmentViewQuery(db.WithContext(ctx)).
		Where("a.professional_id = ? AND a.status = ? AND a.payroll_settled = ?", professionalId, AppointmentStatusPaid, false).
		Where("a.date BETWEEN ? AND ?", utils.FormatDate(from), utils.FormatDate(to)).
		Order("a.date ASC").Order("a.start_time ASC").
		Find(&views).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	loans, err := ListLoans(ctx, professionalId, true)
	if err != nil {
		return nil, err
	}

	result := &CommissionSummaryResult{
		Professional:     professional,
		From:             from,
		To:               to,
		Lines:            make([]*CommissionLine, 0, len(views)),
		TotalSales:       decimal.Zero,
		TotalCommission:  decimal.Zero,
		PendingLoans:     loans,
		LoansOutstanding: decimal.Zero,
	}
	for _, v := range views {
		line := &CommissionLine{
			AppointmentId: v.ID,
			Date:          v.Date,
			StartTime:     v.StartTime,
			ClientName:    v.ClientName,
			ServiceName:   v.ServiceName,
			FinalPrice:    v.FinalPrice,
			Commission:    Commission(v.FinalPrice, professional.Commission),
		}
		result.Lines = append(result.Lines, line)
		result.TotalSales = result.TotalSales.Add(line.FinalPrice)
		result.TotalCommission = result.TotalCommission.Add(line.Commission)
	}
	for _, l := range loans {
		result.LoansOutstanding = result.LoansOutstanding.Add(l.Outstanding)
	}
	return result, nil
}

type CommissionPayable struct {
	ProfessionalId   int             `json:"professional_id"`
	ProfessionalName string          `json:"professional_name"`
	Appointments     int             `json:"appointments"`
	Commission       decimal.Decimal `json:"commission"`
}

// CommissionsPayable is the commission owed per professional across all unsettled Paid work.
func CommissionsPayable(ctx context.Context) ([]*CommissionPayable, error) {
	db := config.GetDB()
	var results []*CommissionPayable
	err := db.WithContext(ctx).Table("appointments AS a").
		Select(`a.professional_id, p.name AS professional_name, COUNT(a.id) AS appointments,
			ROUND(SUM(a.final_price * p.commission / 100), 2) AS commission`).
		Joins("JOIN professionals AS p ON p.id = a.professional_id").
		Where("a.status = ? AND a.payroll_settled = ?", AppointmentStatusPaid, false).
		Group("a.professional_id, p.name").
		Order("p.name ASC").
		Find(&results).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return results, nil
}

// MarkPayrollSettled flags the appointments as paid out. Re-flagging is harmless.
// Every id must belong to the professional and be Paid.
func MarkPayrollSettled(tx *gorm.DB, professionalId int, appointmentIds []int) error {
	ids := utils.UniqueSlice(appointmentIds)
	if len(ids) == 0 {
		return nil
	}
	var appointments []*Appointment
	if err := tx.Where("id IN ?", ids).Find(&appointments).Error; err != nil {
		return utils.ClassifyStorageError(err)
	}
	found := make(map[int]*Appointment, len(appointments))
	for _, a := range appointments {
		found[a.ID] = a
	}
	for _, id := range ids {
		a, ok := found[id]
		if !ok {
			return utils.NotFoundError("Appointment", id)
		}
		if a.ProfessionalId != professionalId {
			return utils.ValidationErrorf("appointment #%d does not belong to professional %d", id, professionalId)
		}
		if a.Status != AppointmentStatusPaid {
			return utils.ValidationErrorf("appointment #%d is %s, only Paid work can be settled", id, a.Status)
		}
	}
	if err := tx.Model(&Appointment{}).Where("id IN ?", ids).UpdateColumn("payroll_settled", true).Error; err != nil {
		return utils.ClassifyStorageError(err)
	}
	return nil
}

type LoanLedgerEntryType string

const (
	LoanLedgerEntryLoan        LoanLedgerEntryType = "Loan"
	LoanLedgerEntryInstallment LoanLedgerEntryType = "Installment"
)

type LoanLedgerEntry struct {
	Date        time.Time           `json:"date"`
	Type        LoanLedgerEntryType `json:"type"`
	LoanId      int                 `json:"loan_id"`
	Description string              `json:"description"`
	Method      string              `json:"method"`
	Amount      decimal.Decimal     `json:"amount"`
	Balance     decimal.Decimal     `json:"balance"`
}

// BuildLoanLedger merges loans (+) and installments (−) by date with a running balance.
// The sort is stable, so on the same day loans come before installments.
func BuildLoanLedger(loans []*Loan, installments []*LoanInstallment) []*LoanLedgerEntry {
	entries := make([]*LoanLedgerEntry, 0, len(loans)+len(installments))
	for _, l := range loans {
		entries = append(entries, &LoanLedgerEntry{
			Date:        l.Date,
			Type:        LoanLedgerEntryLoan,
			LoanId:      l.ID,
			Description: l.Description,
			Method:      l.Method,
			Amount:      l.Amount,
		})
	}
	for _, i := range installments {
		entries = append(entries, &LoanLedgerEntry{
			Date:        i.Date,
			Type:        LoanLedgerEntryInstallment,
			LoanId:      i.LoanId,
			Description: i.Description,
			Method:      i.Method,
			Amount:      i.Amount.Neg(),
		})
	}
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Date.Before(entries[b].Date)
	})
	balance := decimal.Zero
	for _, e := range entries {
		balance = balance.Add(e.Amount)
		e.Balance = balance
	}
	return entries
}

// LoanLedger is the running-balance statement of every loan of a professional.
func LoanLedger(ctx context.Context, professionalId int) ([]*LoanLedgerEntry, error) {
	if _, err := GetResource[Professional](ctx, professionalId); err != nil {
		return nil, err
	}
	loans, err := ListLoans(ctx, professionalId, false)
	if err != nil {
		return nil, err
	}
	installments := make([]*LoanInstallment, 0)
	for _, l := range loans {
		installments = append(installments, l.Installments...)
	}
	sort.SliceStable(installments, func(a, b int) bool {
		return installments[a].ID < installments[b].ID
	})
	return BuildLoanLedger(loans, installments), nil
}

// LoanStatement lists a professional's loans with their installments.
func LoanStatement(ctx context.Context, professionalId int) ([]*Loan, error) {
	if _, err := GetResource[Professional](ctx, professionalId); err != nil {
		return nil, err
	}
	return ListLoans(ctx, professionalId, false)
}
