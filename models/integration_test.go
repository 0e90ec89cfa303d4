package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/models"
	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/mmdatafocus/salon_backend/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TestSalonLedgerIntegration runs the booking and ledger flows against real MySQL and redis.
func TestSalonLedgerIntegration(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "salon_test")
	t.Setenv("STRICT_OVERPAYMENT", "")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test")
	if err := models.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}

	ana, err := models.CreateProfessional(ctx, &models.NewProfessional{Name: "Ana", Commission: decimal.NewFromInt(40)})
	if err != nil {
		t.Fatalf("CreateProfessional: %v", err)
	}
	manicure, err := models.CreateService(ctx, &models.NewService{Name: "Manicure", DurationMinutes: 60, Price: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("CreateService: %v", err)
	}
	bea, err := models.CreateProfessional(ctx, &models.NewProfessional{Name: "Bea", Commission: decimal.NewFromInt(60)})
	if err != nil {
		t.Fatalf("CreateProfessional: %v", err)
	}
	day := utils.FormatDate(time.Now().AddDate(0, 0, 1))
	db := config.GetDB()

	bookOn := func(t *testing.T, professionalId int, date, client, start string) *models.Appointment {
		t.Helper()
		created, err := models.CreateAppointments(ctx, &models.NewBooking{
			ClientName: client,
			Items: []*models.NewBookingItem{
				{ProfessionalId: professionalId, ServiceId: manicure.ID, Date: date, Start: models.MustTimeOfDay(start).Ptr()},
			},
		})
		if err != nil {
			t.Fatalf("CreateAppointments(%s %s): %v", client, start, err)
		}
		return created[0]
	}
	book := func(t *testing.T, client, start string) *models.Appointment {
		t.Helper()
		return bookOn(t, ana.ID, day, client, start)
	}

	t.Run("credit settled in two installments", func(t *testing.T) {
		appointment := book(t, "Maria", "09:00")
		sale, err := models.RecordSale(ctx, &models.NewSale{
			AppointmentIds: []int{appointment.ID},
			Payments:       []*models.PaymentLine{{Method: models.PaymentMethodCredit, Amount: decimal.NewFromInt(100)}},
		})
		if err != nil {
			t.Fatalf("RecordSale: %v", err)
		}
		if len(sale.Payments) != 1 || !sale.Payments[0].IsCredit() {
			t.Fatalf("expected one credit payment, got %+v", sale.Payments)
		}
		creditId := sale.Payments[0].ID

		first, err := models.SettleClientCredit(ctx, creditId, &models.NewCreditSettlement{Amount: decimal.NewFromInt(40), Method: "Cash"})
		if err != nil {
			t.Fatalf("first settlement: %v", err)
		}
		if first.Settled || !first.Remaining.Equal(decimal.NewFromInt(60)) {
			t.Fatalf("expected 60 remaining, got %+v", first)
		}
		open, err := models.OutstandingCredits(ctx, "Maria")
		if err != nil || len(open) != 1 || !open[0].Outstanding.Equal(decimal.NewFromInt(60)) {
			t.Fatalf("expected one open credit of 60, got %v %v", open, err)
		}

		second, err := models.SettleClientCredit(ctx, creditId, &models.NewCreditSettlement{Amount: decimal.NewFromInt(60), Method: "Card"})
		if err != nil {
			t.Fatalf("second settlement: %v", err)
		}
		if !second.Settled || second.Message() != "credit fully settled" {
			t.Fatalf("expected the credit to be settled, got %+v", second)
		}

		if _, err := models.SettleClientCredit(ctx, creditId, &models.NewCreditSettlement{Amount: decimal.NewFromInt(10), Method: "Cash"}); !errors.Is(err, utils.ErrInsufficientResource) {
			t.Fatalf("settling a paid credit should fail, got %v", err)
		}
		history, err := models.CreditHistory(ctx, creditId)
		if err != nil || len(history) != 2 {
			t.Fatalf("expected two settlement events, got %d %v", len(history), err)
		}
		open, _ = models.OutstandingCredits(ctx, "Maria")
		if len(open) != 0 {
			t.Fatalf("settled credit still listed as open: %+v", open[0])
		}

		var collections []*models.Payment
		if err := db.Where("credit_payment_id = ?", creditId).Order("id ASC").Find(&collections).Error; err != nil {
			t.Fatalf("load collections: %v", err)
		}
		collected := decimal.Zero
		for _, p := range collections {
			if p.IsCredit() {
				t.Fatalf("a credit collection must not itself be CREDIT: %+v", p)
			}
			collected = collected.Add(p.Amount)
		}
		if len(collections) != 2 || collections[0].Method != "Cash" || collections[1].Method != "Card" || !collected.Equal(decimal.NewFromInt(100)) {
			t.Fatalf("expected Cash 40 + Card 60 collected, got %d rows totalling %s", len(collections), collected)
		}
	})

	t.Run("sale with short stock writes nothing", func(t *testing.T) {
		gel, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Gel", Price: decimal.NewFromInt(20), Stock: 1})
		if err != nil {
			t.Fatalf("CreateProduct: %v", err)
		}
		appointment := book(t, "Julia", "11:00")

		var salesBefore int64
		config.GetDB().Model(&models.Sale{}).Count(&salesBefore)

		_, err = models.RecordSale(ctx, &models.NewSale{
			AppointmentIds: []int{appointment.ID},
			CartItems:      []*models.CartItem{{ProductId: gel.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(20)}},
			Payments:       []*models.PaymentLine{{Method: "Cash", Amount: decimal.NewFromInt(140)}},
		})
		if !errors.Is(err, utils.ErrInsufficientResource) {
			t.Fatalf("expected insufficient stock, got %v", err)
		}

		var stored models.Appointment
		if err := config.GetDB().First(&stored, appointment.ID).Error; err != nil {
			t.Fatalf("reload appointment: %v", err)
		}
		if stored.Status != models.AppointmentStatusPending {
			t.Fatalf("appointment must stay Pending after a failed sale, got %s", stored.Status)
		}
		var product models.Product
		if err := config.GetDB().First(&product, gel.ID).Error; err != nil {
			t.Fatalf("reload product: %v", err)
		}
		if product.Stock != 1 {
			t.Fatalf("stock must be untouched, got %d", product.Stock)
		}
		var salesAfter int64
		config.GetDB().Model(&models.Sale{}).Count(&salesAfter)
		if salesAfter != salesBefore {
			t.Fatalf("a failed sale left %d sale rows behind", salesAfter-salesBefore)
		}
	})

	t.Run("cancelled booking frees its slot", func(t *testing.T) {
		appointment := book(t, "Lucia", "14:00")
		date, _ := utils.ParseDate(day)

		if _, err := models.ProposeBooking(ctx, ana.ID, date, models.MustTimeOfDay("14:30"), 30); !errors.Is(err, utils.ErrConflict) {
			t.Fatalf("expected the slot to be taken, got %v", err)
		}
		if _, err := models.CancelAppointment(ctx, appointment.ID, "client called"); err != nil {
			t.Fatalf("CancelAppointment: %v", err)
		}
		end, err := models.ProposeBooking(ctx, ana.ID, date, models.MustTimeOfDay("14:30"), 30)
		if err != nil {
			t.Fatalf("cancelled booking still blocks: %v", err)
		}
		if end != models.MustTimeOfDay("15:00") {
			t.Fatalf("expected end 15:00, got %s", end)
		}
		if _, err := models.ConfirmAttendance(ctx, appointment.ID); !errors.Is(err, utils.ErrValidation) {
			t.Fatalf("a cancelled appointment cannot be confirmed, got %v", err)
		}
	})

	t.Run("concurrent bookings of one slot", func(t *testing.T) {
		const attempts = 6
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			conflicts int
		)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := models.CreateAppointments(ctx, &models.NewBooking{
					ClientName: fmt.Sprintf("Walk-in %d", i),
					Items: []*models.NewBookingItem{
						{ProfessionalId: ana.ID, ServiceId: manicure.ID, Date: day, Start: models.MustTimeOfDay("17:00").Ptr()},
					},
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, utils.ErrConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()
		if succeeded != 1 || conflicts != attempts-1 {
			t.Fatalf("expected exactly one booking, got %d succeeded and %d conflicts", succeeded, conflicts)
		}
	})

	t.Run("global block must fit every schedule", func(t *testing.T) {
		book(t, "Sofia", "19:00")
		_, err := models.CreateBlock(ctx, &models.NewBlock{
			ProfessionalId: models.AllProfessionals,
			DateFrom:       day,
			Start:          models.MustTimeOfDay("18:30").Ptr(),
			End:            models.MustTimeOfDay("20:00").Ptr(),
			Reason:         "Staff meeting",
		})
		if !errors.Is(err, utils.ErrConflict) {
			t.Fatalf("block over an existing booking should conflict, got %v", err)
		}
	})
	t.Run("loan amortized in installments", func(t *testing.T) {
		loan, err := models.CreateLoan(ctx, &models.NewLoan{ProfessionalId: ana.ID, Amount: decimal.NewFromInt(100), Method: "Cash"})
		if err != nil {
			t.Fatalf("CreateLoan: %v", err)
		}
		var disbursed int64
		db.Model(&models.Expense{}).Where("category = ? AND reference_id = ?", models.ExpenseCategoryLoans, loan.ID).Count(&disbursed)
		if disbursed != 1 {
			t.Fatalf("expected one loan disbursement expense, got %d", disbursed)
		}

		loan, err = models.AmortizeLoan(ctx, loan.ID, &models.NewLoanInstallment{Amount: decimal.NewFromInt(30), Method: "Cash"})
		if err != nil {
			t.Fatalf("first installment: %v", err)
		}
		if loan.Status != models.LoanStatusPending || !loan.Outstanding.Equal(decimal.NewFromInt(70)) {
			t.Fatalf("expected 70 outstanding, got %s %s", loan.Status, loan.Outstanding)
		}
		loan, err = models.AmortizeLoan(ctx, loan.ID, &models.NewLoanInstallment{Amount: decimal.NewFromInt(100), Method: "Card"})
		if err != nil {
			t.Fatalf("second installment: %v", err)
		}
		if loan.Status != models.LoanStatusPaid || !loan.Outstanding.IsZero() {
			t.Fatalf("loan should be paid, got %s %s", loan.Status, loan.Outstanding)
		}
		var installments []*models.LoanInstallment
		db.Where("loan_id = ?", loan.ID).Order("id ASC").Find(&installments)
		if len(installments) != 2 || !installments[0].Amount.Equal(decimal.NewFromInt(30)) || !installments[1].Amount.Equal(decimal.NewFromInt(70)) {
			t.Fatalf("an overpaying installment must be capped to 70, got %d rows", len(installments))
		}
		if _, err := models.AmortizeLoan(ctx, loan.ID, &models.NewLoanInstallment{Amount: decimal.NewFromInt(5), Method: "Cash"}); !errors.Is(err, utils.ErrInsufficientResource) {
			t.Fatalf("a paid loan takes no installments, got %v", err)
		}

		t.Setenv("STRICT_OVERPAYMENT", "true")
		strict, err := models.CreateLoan(ctx, &models.NewLoan{ProfessionalId: ana.ID, Amount: decimal.NewFromInt(50), Method: "Cash"})
		if err != nil {
			t.Fatalf("CreateLoan: %v", err)
		}
		if _, err := models.AmortizeLoan(ctx, strict.ID, &models.NewLoanInstallment{Amount: decimal.NewFromInt(80), Method: "Cash"}); !errors.Is(err, utils.ErrInsufficientResource) {
			t.Fatalf("strict mode must reject an overpayment, got %v", err)
		}
		var reloaded models.Loan
		db.First(&reloaded, strict.ID)
		if !reloaded.Outstanding.Equal(decimal.NewFromInt(50)) || reloaded.Status != models.LoanStatusPending {
			t.Fatalf("rejected installment changed the loan: %s %s", reloaded.Status, reloaded.Outstanding)
		}
	})

	t.Run("payroll pays loans oldest first", func(t *testing.T) {
		appointment := bookOn(t, bea.ID, day, "Carla", "10:00")
		if _, err := models.RecordSale(ctx, &models.NewSale{
			AppointmentIds: []int{appointment.ID},
			Payments:       []*models.PaymentLine{{Method: "Cash", Amount: decimal.NewFromInt(100)}},
		}); err != nil {
			t.Fatalf("RecordSale: %v", err)
		}
		older, err := models.CreateLoan(ctx, &models.NewLoan{ProfessionalId: bea.ID, Amount: decimal.NewFromInt(40), Method: "Cash"})
		if err != nil {
			t.Fatalf("CreateLoan: %v", err)
		}
		newer, err := models.CreateLoan(ctx, &models.NewLoan{ProfessionalId: bea.ID, Amount: decimal.NewFromInt(60), Method: "Cash"})
		if err != nil {
			t.Fatalf("CreateLoan: %v", err)
		}

		foreign := book(t, "Irene", "12:30")
		if _, err := workflow.LiquidatePayroll(ctx, &workflow.LiquidatePayrollInput{
			ProfessionalId: bea.ID,
			AppointmentIds: []int{foreign.ID},
		}); !errors.Is(err, utils.ErrValidation) {
			t.Fatalf("another professional's appointment must be rejected, got %v", err)
		}

		result, err := workflow.LiquidatePayroll(ctx, &workflow.LiquidatePayrollInput{
			ProfessionalId: bea.ID,
			AppointmentIds: []int{appointment.ID},
			LoanDeduction:  decimal.NewFromInt(50),
			Payouts:        []*models.PaymentLine{{Method: "Cash", Amount: decimal.NewFromInt(10)}},
		})
		if err != nil {
			t.Fatalf("LiquidatePayroll: %v", err)
		}
		if !result.Deducted.Equal(decimal.NewFromInt(50)) || !result.PaidOut.Equal(decimal.NewFromInt(10)) || len(result.Allocations) != 2 {
			t.Fatalf("unexpected result %+v", result)
		}
		if result.Allocations[0].LoanId != older.ID || !result.Allocations[0].Amount.Equal(decimal.NewFromInt(40)) {
			t.Fatalf("the older loan must be paid first, got %+v", result.Allocations[0])
		}

		var first, second models.Loan
		db.First(&first, older.ID)
		db.First(&second, newer.ID)
		if first.Status != models.LoanStatusPaid || !first.Outstanding.IsZero() {
			t.Fatalf("older loan should be paid, got %s %s", first.Status, first.Outstanding)
		}
		if second.Status != models.LoanStatusPending || !second.Outstanding.Equal(decimal.NewFromInt(50)) {
			t.Fatalf("newer loan should keep 50 outstanding, got %s %s", second.Status, second.Outstanding)
		}
		var deductions []*models.LoanInstallment
		db.Where("loan_id IN ?", []int{older.ID, newer.ID}).Order("id ASC").Find(&deductions)
		if len(deductions) != 2 {
			t.Fatalf("expected two deduction installments, got %d", len(deductions))
		}
		for _, d := range deductions {
			if d.Method != models.PaymentMethodPayrollDeduction || d.CountsAsCash() {
				t.Fatalf("payroll deductions are not cash: %+v", d)
			}
		}

		var payroll []*models.Expense
		db.Where("category = ? AND professional_id = ?", models.ExpenseCategoryPayroll, bea.ID).Find(&payroll)
		if len(payroll) != 1 || !payroll[0].Amount.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("expected one Nomina expense of 10, got %d", len(payroll))
		}
		var settled models.Appointment
		db.First(&settled, appointment.ID)
		if settled.PayrollSettled == nil || !*settled.PayrollSettled {
			t.Fatalf("appointment must be flagged as settled")
		}
		payable, err := models.CommissionsPayable(ctx)
		if err != nil {
			t.Fatalf("CommissionsPayable: %v", err)
		}
		for _, p := range payable {
			if p.ProfessionalId == bea.ID {
				t.Fatalf("settled work still payable: %+v", p)
			}
		}
	})

	t.Run("purchases on credit and in cash", func(t *testing.T) {
		supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Beauty Supply"})
		if err != nil {
			t.Fatalf("CreateSupplier: %v", err)
		}
		acetone, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Acetone", Price: decimal.NewFromInt(8)})
		if err != nil {
			t.Fatalf("CreateProduct: %v", err)
		}
		expensesFor := func(category string, purchaseId int) decimal.Decimal {
			var rows []*models.Expense
			db.Where("category = ? AND reference_id = ?", category, purchaseId).Find(&rows)
			total := decimal.Zero
			for _, r := range rows {
				total = total.Add(r.Amount)
			}
			return total
		}

		onCredit, err := models.RegisterPurchase(ctx, &models.NewPurchase{
			SupplierId: supplier.ID,
			Items:      []*models.PurchaseItem{{ProductId: acetone.ID, Quantity: 10, UnitCost: decimal.NewFromInt(5)}},
			Method:     models.PaymentMethodCredit,
		})
		if err != nil {
			t.Fatalf("RegisterPurchase: %v", err)
		}
		if onCredit.Status != models.PurchaseStatusPending || !onCredit.Total.Equal(decimal.NewFromInt(50)) {
			t.Fatalf("credit purchase should be Pending for 50, got %s %s", onCredit.Status, onCredit.Total)
		}
		if !expensesFor(models.ExpenseCategoryMerchandisePurchase, onCredit.ID).IsZero() {
			t.Fatalf("a credit purchase defers its expense")
		}
		var stocked models.Product
		db.First(&stocked, acetone.ID)
		if stocked.Stock != 10 {
			t.Fatalf("expected stock 10, got %d", stocked.Stock)
		}

		partial, err := models.SettleSupplierInstallment(ctx, onCredit.ID, &models.NewSupplierInstallment{Amount: decimal.NewFromInt(20), Method: "Cash"})
		if err != nil {
			t.Fatalf("first installment: %v", err)
		}
		if partial.Status != models.PurchaseStatusPending || !partial.Outstanding.Equal(decimal.NewFromInt(30)) {
			t.Fatalf("expected 30 still owed, got %s %s", partial.Status, partial.Outstanding)
		}
		paid, err := models.SettleSupplierInstallment(ctx, onCredit.ID, &models.NewSupplierInstallment{Amount: decimal.NewFromInt(50), Method: "Card"})
		if err != nil {
			t.Fatalf("second installment: %v", err)
		}
		if paid.Status != models.PurchaseStatusPaid {
			t.Fatalf("purchase should be Paid, got %s", paid.Status)
		}
		if got := expensesFor(models.ExpenseCategorySupplierPayment, onCredit.ID); !got.Equal(decimal.NewFromInt(50)) {
			t.Fatalf("supplier payments must total the purchase, got %s", got)
		}
		if _, err := models.SettleSupplierInstallment(ctx, onCredit.ID, &models.NewSupplierInstallment{Amount: decimal.NewFromInt(1), Method: "Cash"}); !errors.Is(err, utils.ErrInsufficientResource) {
			t.Fatalf("a paid purchase takes no installments, got %v", err)
		}

		inCash, err := models.RegisterPurchase(ctx, &models.NewPurchase{
			SupplierId: supplier.ID,
			Items:      []*models.PurchaseItem{{ProductId: acetone.ID, Quantity: 2, UnitCost: decimal.NewFromInt(5)}},
			Method:     "Cash",
		})
		if err != nil {
			t.Fatalf("RegisterPurchase: %v", err)
		}
		if inCash.Status != models.PurchaseStatusPaid || !expensesFor(models.ExpenseCategoryMerchandisePurchase, inCash.ID).Equal(decimal.NewFromInt(10)) {
			t.Fatalf("a cash purchase is Paid with a Compra Mercancia expense, got %s", inCash.Status)
		}

		payables, err := models.AccountsPayable(ctx)
		if err != nil {
			t.Fatalf("AccountsPayable: %v", err)
		}
		for _, p := range payables {
			if p.PurchaseId == onCredit.ID || p.PurchaseId == inCash.ID {
				t.Fatalf("paid purchase still payable: %+v", p)
			}
		}

		today := utils.TruncateToDay(time.Now())
		history, err := models.ListPurchases(ctx, today, today)
		if err != nil {
			t.Fatalf("ListPurchases: %v", err)
		}
		if len(history) != 2 || history[0].ID != inCash.ID || history[1].ID != onCredit.ID {
			t.Fatalf("expected both purchases newest first, got %d", len(history))
		}
		for _, p := range history {
			if p.Supplier == nil || p.Supplier.Name != "Beauty Supply" {
				t.Fatalf("purchase #%d is missing its supplier", p.ID)
			}
			if !p.Paid.Equal(p.Total) || !p.Outstanding.IsZero() || p.Status != models.PurchaseStatusPaid {
				t.Fatalf("purchase #%d: paid %s of %s, status %s", p.ID, p.Paid, p.Total, p.Status)
			}
		}
		if credit := history[1]; len(credit.Installments) != 2 || len(credit.Details) != 1 {
			t.Fatalf("credit purchase should carry 2 installments and 1 line, got %d %d", len(credit.Installments), len(credit.Details))
		}
		if empty, err := models.ListPurchases(ctx, today.AddDate(0, 0, -10), today.AddDate(0, 0, -5)); err != nil || len(empty) != 0 {
			t.Fatalf("purchases outside the range leaked: %d %v", len(empty), err)
		}
	})

	t.Run("reschedule ignores its own slot", func(t *testing.T) {
		moveDay := utils.FormatDate(time.Now().AddDate(0, 0, 2))
		rosa := bookOn(t, ana.ID, moveDay, "Rosa", "10:00")
		bookOn(t, ana.ID, moveDay, "Eva", "12:00")

		moved, err := models.Reschedule(ctx, rosa.ID, &models.NewReschedule{Date: moveDay, Start: models.MustTimeOfDay("10:30").Ptr()})
		if err != nil {
			t.Fatalf("overlapping only itself must succeed: %v", err)
		}
		if moved.Status != models.AppointmentStatusRescheduled || moved.EndTime != models.MustTimeOfDay("11:30") {
			t.Fatalf("unexpected move %s %s-%s", moved.Status, moved.StartTime, moved.EndTime)
		}

		if _, err := models.Reschedule(ctx, rosa.ID, &models.NewReschedule{Date: moveDay, Start: models.MustTimeOfDay("11:45").Ptr()}); !errors.Is(err, utils.ErrConflict) {
			t.Fatalf("moving onto Eva must conflict, got %v", err)
		}
		var untouched models.Appointment
		db.First(&untouched, rosa.ID)
		if untouched.StartTime != models.MustTimeOfDay("10:30") || untouched.ProfessionalId != ana.ID {
			t.Fatalf("a failed reschedule must leave the appointment alone, got %s with %d", untouched.StartTime, untouched.ProfessionalId)
		}

		// Hold Ana's day while moving Rosa to Bea: only the destination day is locked.
		held := make(chan struct{})
		release := make(chan struct{})
		holder := make(chan error, 1)
		go func() {
			holder <- utils.RunSerialized(ctx, []string{fmt.Sprintf("schedule:%d:%s", ana.ID, moveDay)}, func(tx *gorm.DB) error {
				close(held)
				<-release
				return nil
			})
		}()
		<-held
		done := make(chan error, 1)
		go func() {
			_, err := models.Reschedule(ctx, rosa.ID, &models.NewReschedule{Date: moveDay, Start: models.MustTimeOfDay("10:30").Ptr(), ProfessionalId: bea.ID})
			done <- err
		}()
		select {
		case err := <-done:
			close(release)
			if err != nil {
				t.Fatalf("reschedule to Bea: %v", err)
			}
		case <-time.After(5 * time.Second):
			close(release)
			t.Fatalf("reschedule waited on the source day's lock")
		}
		if err := <-holder; err != nil {
			t.Fatalf("lock holder: %v", err)
		}

		date, _ := utils.ParseDate(moveDay)
		if _, err := models.ProposeBooking(ctx, ana.ID, date, models.MustTimeOfDay("10:30"), 60); err != nil {
			t.Fatalf("Ana's old slot should be free after the move: %v", err)
		}
		if _, err := models.ProposeBooking(ctx, bea.ID, date, models.MustTimeOfDay("10:30"), 60); !errors.Is(err, utils.ErrConflict) {
			t.Fatalf("Bea's new slot should be taken, got %v", err)
		}
	})

}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("salon-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "redis-cli", "ping"); err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("salon-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=salon_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent"); err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
