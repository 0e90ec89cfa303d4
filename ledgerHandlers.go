package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/salon_backend/models"
	"github.com/mmdatafocus/salon_backend/models/reports"
	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/mmdatafocus/salon_backend/workflow"
	"github.com/xuri/excelize/v2"
)

func recordSaleHandler(c *gin.Context) {
	input, ok := bindJSON[models.NewSale](c)
	if !ok {
		return
	}
	result, err := models.RecordSale(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "sale recorded", result)
}

func listSalesHandler(c *gin.Context) {
	from, to, ok := queryRange(c)
	if !ok {
		return
	}
	results, err := models.ListSales(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func settleCreditHandler(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	input, ok := bindJSON[models.NewCreditSettlement](c)
	if !ok {
		return
	}
	result, err := models.SettleClientCredit(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, result.Message(), result)
}

func outstandingCreditsHandler(c *gin.Context) {
	results, err := models.OutstandingCredits(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func creditHistoryHandler(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	results, err := models.CreditHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func loansHandler(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	results, err := models.ListLoans(c.Request.Context(), id, queryBool(c, "pending"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func loanLedgerHandler(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	results, err := models.LoanLedger(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func accountsPayableHandler(c *gin.Context) {
	results, err := models.AccountsPayable(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func listPurchasesHandler(c *gin.Context) {
	from, to, ok := queryRange(c)
	if !ok {
		return
	}
	results, err := models.ListPurchases(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func listExpensesHandler(c *gin.Context) {
	from, to, ok := queryRange(c)
	if !ok {
		return
	}
	results, err := models.ListExpenses(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func commissionSummaryHandler(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	from, to, ok := queryRange(c)
	if !ok {
		return
	}
	result, err := models.CommissionSummary(c.Request.Context(), id, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func commissionsPayableHandler(c *gin.Context) {
	results, err := models.CommissionsPayable(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func liquidatePayrollHandler(c *gin.Context) {
	input, ok := bindJSON[workflow.LiquidatePayrollInput](c)
	if !ok {
		return
	}
	result, err := workflow.LiquidatePayroll(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "payroll settled", result)
}

func wantsSpreadsheet(c *gin.Context) bool {
	return strings.EqualFold(c.Query("format"), "xlsx")
}

func sendWorkbook(c *gin.Context, filename string, f *excelize.File) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := reports.WriteWorkbook(c.Writer, f); err != nil {
		_ = c.Error(err)
	}
}

func cashClosureHandler(c *gin.Context) {
	date, ok := queryDate(c, "date")
	if !ok {
		return
	}
	closure, err := reports.DailyCashClosure(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}
	if !wantsSpreadsheet(c) {
		respondOK(c, closure)
		return
	}
	f, err := reports.ExportCashClosure(closure)
	if err != nil {
		respondError(c, err)
		return
	}
	sendWorkbook(c, "cash-closure-"+utils.FormatDate(date)+".xlsx", f)
}

func financialBalanceHandler(c *gin.Context) {
	from, to, ok := queryRange(c)
	if !ok {
		return
	}
	balance, err := reports.GetFinancialBalance(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	if !wantsSpreadsheet(c) {
		respondOK(c, balance)
		return
	}
	f, err := reports.ExportFinancialBalance(balance)
	if err != nil {
		respondError(c, err)
		return
	}
	sendWorkbook(c, fmt.Sprintf("balance-%s-%s.xlsx", utils.FormatDate(from), utils.FormatDate(to)), f)
}

func registerLedgerRoutes(api *gin.RouterGroup) {
	sales := api.Group("/sales")
	sales.GET("", listSalesHandler)
	sales.POST("", recordSaleHandler)

	credits := api.Group("/credits")
	credits.GET("", outstandingCreditsHandler)
	credits.GET("/:id/history", creditHistoryHandler)
	credits.POST("/:id/settle", settleCreditHandler)

	loans := api.Group("/loans")
	loans.POST("", createHandler(models.CreateLoan))
	loans.POST("/:id/installments", updateHandler(models.AmortizeLoan))
	api.GET("/professionals/:id/loans", loansHandler)
	api.GET("/professionals/:id/loan-ledger", loanLedgerHandler)

	purchases := api.Group("/purchases")
	purchases.GET("", listPurchasesHandler)
	purchases.POST("", createHandler(models.RegisterPurchase))
	purchases.GET("/:id", getHandler(models.GetPurchase))
	purchases.POST("/:id/installments", updateHandler(models.SettleSupplierInstallment))
	api.GET("/payables", accountsPayableHandler)

	expenses := api.Group("/expenses")
	expenses.GET("", listExpensesHandler)
	expenses.POST("", createHandler(models.RecordExpense))

	api.GET("/professionals/:id/commissions", commissionSummaryHandler)
	api.GET("/commissions/payable", commissionsPayableHandler)
	api.POST("/payroll", liquidatePayrollHandler)

	rpt := api.Group("/reports")
	rpt.GET("/cash-closure", cashClosureHandler)
	rpt.GET("/financial-balance", financialBalanceHandler)
}
