package models

type AppointmentStatus string

const (
	AppointmentStatusPending      AppointmentStatus = "Pending"
	AppointmentStatusRescheduled  AppointmentStatus = "Rescheduled"
	AppointmentStatusByCollection AppointmentStatus = "ByCollection"
	AppointmentStatusPaid         AppointmentStatus = "Paid"
	AppointmentStatusCancelled    AppointmentStatus = "Cancelled"
)

// legal appointment transitions; Paid and Cancelled are terminal
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusPending: {
		AppointmentStatusRescheduled,
		AppointmentStatusByCollection,
		AppointmentStatusPaid,
		AppointmentStatusCancelled,
	},
	AppointmentStatusRescheduled: {
		AppointmentStatusRescheduled,
		AppointmentStatusByCollection,
		AppointmentStatusPaid,
		AppointmentStatusCancelled,
	},
	AppointmentStatusByCollection: {
		AppointmentStatusPaid,
		AppointmentStatusCancelled,
	},
}

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusRescheduled, AppointmentStatusByCollection,
		AppointmentStatusPaid, AppointmentStatusCancelled:
		return true
	}
	return false
}

func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentStatusPaid || s == AppointmentStatusCancelled
}

func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type IntervalKind string

const (
	IntervalKindBooking IntervalKind = "Booking"
	IntervalKindBlock   IntervalKind = "Block"
)

type LoanStatus string

const (
	LoanStatusPending LoanStatus = "Pending"
	LoanStatusPaid    LoanStatus = "Paid"
)

type PurchaseStatus string

const (
	PurchaseStatusPending PurchaseStatus = "Pending"
	PurchaseStatusPaid    PurchaseStatus = "Paid"
)

type ExpenseType string

const (
	ExpenseTypeExpense ExpenseType = "Expense"
	ExpenseTypeCost    ExpenseType = "Cost"
)

// Expense categories used by the reports.
const (
	ExpenseCategoryLoans               = "Prestamos"
	ExpenseCategorySalesDiscount       = "Descuento Ventas"
	ExpenseCategorySupplierPayment     = "Pago Proveedor"
	ExpenseCategoryPayroll             = "Nomina"
	ExpenseCategoryMerchandisePurchase = "Compra Mercancia"
)

// Payment method names with a ledger meaning.
const (
	PaymentMethodCredit           = "CREDIT"
	PaymentMethodCash             = "Cash"
	PaymentMethodAccountingOffset = "Accounting Offset"
	PaymentMethodPayrollDeduction = "Payroll Deduction"
)

const (
	InstallmentDescriptionPayroll = "Payroll Deduction"
	BlockReasonOutOfHours         = "Out of hours"
)

type AuditCategory string

const (
	AuditCategoryLogin       AuditCategory = "LOGIN"
	AuditCategoryLoginFail   AuditCategory = "LOGIN_FAIL"
	AuditCategoryBooking     AuditCategory = "BOOKING"
	AuditCategoryReschedule  AuditCategory = "RESCHEDULE"
	AuditCategoryAppointment AuditCategory = "APPOINTMENT"
	AuditCategoryBlock       AuditCategory = "BLOCK"
	AuditCategorySale        AuditCategory = "SALE"
	AuditCategoryCredit      AuditCategory = "CREDIT"
	AuditCategoryLoan        AuditCategory = "LOAN"
	AuditCategoryPurchase    AuditCategory = "PURCHASE"
	AuditCategoryExpense     AuditCategory = "EXPENSE"
	AuditCategoryPayroll     AuditCategory = "PAYROLL"
	AuditCategoryDirectory   AuditCategory = "DIRECTORY"
	AuditCategorySettings    AuditCategory = "SETTINGS"
	AuditCategoryUser        AuditCategory = "USER"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "Admin"
	UserRoleStaff UserRole = "Staff"
)
