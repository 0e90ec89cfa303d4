package main

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/salon_backend/models"
	"github.com/mmdatafocus/salon_backend/utils"
)

type proposeBookingRequest struct {
	ProfessionalId  int               `json:"professional_id"`
	ServiceId       int               `json:"service_id"`
	Date            string            `json:"date"`
	Start           *models.TimeOfDay `json:"start"`
	DurationMinutes int               `json:"duration_minutes"`
}

type proposeBookingResponse struct {
	Available bool             `json:"available"`
	End       models.TimeOfDay `json:"end"`
	Reason    string           `json:"reason,omitempty"`
}

// proposeBookingHandler answers with 200 either way; an occupied slot is an answer, not a failure.
func proposeBookingHandler(c *gin.Context) {
	input, ok := bindJSON[proposeBookingRequest](c)
	if !ok {
		return
	}
	date, err := utils.ParseDate(input.Date)
	if err != nil {
		respondError(c, err)
		return
	}
	start, err := models.RequireTime("start", input.Start)
	if err != nil {
		respondError(c, err)
		return
	}
	duration := input.DurationMinutes
	if duration == 0 && input.ServiceId > 0 {
		service, err := models.GetService(c.Request.Context(), input.ServiceId)
		if err != nil {
			respondError(c, err)
			return
		}
		duration = service.DurationMinutes
	}
	end, err := models.ProposeBooking(c.Request.Context(), input.ProfessionalId, date, start, duration)
	if err != nil {
		var conflict *models.ConflictError
		if errors.As(err, &conflict) {
			respondOK(c, proposeBookingResponse{Available: false, Reason: conflict.Error()})
			return
		}
		respondError(c, err)
		return
	}
	respondOK(c, proposeBookingResponse{Available: true, End: end})
}

func createBookingHandler(c *gin.Context) {
	input, ok := bindJSON[models.NewBooking](c)
	if !ok {
		return
	}
	results, err := models.CreateAppointments(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "appointment(s) booked", results)
}

func rescheduleHandler(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	input, ok := bindJSON[models.NewReschedule](c)
	if !ok {
		return
	}
	result, err := models.Reschedule(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "appointment rescheduled", result)
}

func confirmAttendanceHandler(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	result, err := models.ConfirmAttendance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func cancelAppointmentHandler(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var input cancelRequest
	// the body is optional
	_ = c.ShouldBindJSON(&input)
	result, err := models.CancelAppointment(c.Request.Context(), id, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "appointment cancelled", result)
}

func confirmationMessageHandler(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	message, err := models.AppointmentConfirmationMessage(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": message})
}

func agendaHandler(c *gin.Context) {
	filter := models.AgendaFilter{Search: c.Query("q")}
	if c.Query("date") != "" {
		date, ok := queryDate(c, "date")
		if !ok {
			return
		}
		filter.Date = &date
	}
	professionalId, ok := queryInt(c, "professional_id", 0)
	if !ok {
		return
	}
	filter.ProfessionalId = professionalId
	results, err := models.ListAgenda(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func upcomingForClientHandler(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	results, err := models.UpcomingAppointmentsForClient(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func pendingCollectionsHandler(c *gin.Context) {
	results, err := models.PendingCollections(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func busyDatesHandler(c *gin.Context) {
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	results, err := models.BusyDates(c.Request.Context(), from)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func availableProfessionalsHandler(c *gin.Context) {
	date, ok := queryDate(c, "date")
	if !ok {
		return
	}
	results, err := models.ListAvailableProfessionals(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func dayScheduleHandler(c *gin.Context) {
	date, ok := queryDate(c, "date")
	if !ok {
		return
	}
	results, err := models.DaySchedule(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func occupiedIntervalsHandler(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	date, ok := queryDate(c, "date")
	if !ok {
		return
	}
	results, err := models.OccupiedIntervals(c.Request.Context(), id, date)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func createBlockHandler(c *gin.Context) {
	input, ok := bindJSON[models.NewBlock](c)
	if !ok {
		return
	}
	results, err := models.CreateBlock(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "block created", results)
}

func deleteBlockHandler(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	result, err := models.DeleteBlock(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "block deleted", result)
}

func listBlocksHandler(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	results, err := models.ListBlocks(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

type openingHoursRequest struct {
	Date  string            `json:"date"`
	Open  *models.TimeOfDay `json:"open"`
	Close *models.TimeOfDay `json:"close"`
}

func openingHoursHandler(c *gin.Context) {
	input, ok := bindJSON[openingHoursRequest](c)
	if !ok {
		return
	}
	date, err := utils.ParseDate(input.Date)
	if err != nil {
		respondError(c, err)
		return
	}
	open, err := models.RequireTime("open", input.Open)
	if err != nil {
		respondError(c, err)
		return
	}
	close, err := models.RequireTime("close", input.Close)
	if err != nil {
		respondError(c, err)
		return
	}
	results, err := models.SetOpeningHours(c.Request.Context(), date, open, close)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "opening hours saved", results)
}

func registerSchedulingRoutes(api *gin.RouterGroup) {
	api.POST("/bookings/propose", proposeBookingHandler)
	api.POST("/bookings", createBookingHandler)

	appointments := api.Group("/appointments")
	appointments.GET("/:id", getHandler(models.GetAppointmentView))
	appointments.GET("/:id/confirmation-message", confirmationMessageHandler)
	appointments.PUT("/:id/reschedule", rescheduleHandler)
	appointments.PUT("/:id/price", updateHandler(models.AdjustAppointmentPrice))
	appointments.POST("/:id/confirm", confirmAttendanceHandler)
	appointments.POST("/:id/cancel", cancelAppointmentHandler)

	api.GET("/agenda", agendaHandler)
	api.GET("/clients/:id/upcoming", upcomingForClientHandler)
	api.GET("/collections", pendingCollectionsHandler)
	api.GET("/busy-dates", busyDatesHandler)
	api.GET("/availability", availableProfessionalsHandler)
	api.GET("/schedule", dayScheduleHandler)
	api.GET("/professionals/:id/occupied", occupiedIntervalsHandler)

	blocks := api.Group("/blocks")
	blocks.GET("", listBlocksHandler)
	blocks.POST("", createBlockHandler)
	blocks.DELETE("/:id", deleteBlockHandler)
	api.PUT("/opening-hours", openingHoursHandler)
}
