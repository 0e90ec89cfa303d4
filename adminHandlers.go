package main

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/salon_backend/middlewares"
	"github.com/mmdatafocus/salon_backend/models"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler(c *gin.Context) {
	input, ok := bindJSON[loginRequest](c)
	if !ok {
		return
	}
	result, err := models.Login(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func changePasswordHandler(c *gin.Context) {
	input, ok := bindJSON[changePasswordRequest](c)
	if !ok {
		return
	}
	result, err := models.ChangePassword(c.Request.Context(), input.OldPassword, input.NewPassword)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "password changed", result)
}

func listUsersHandler(c *gin.Context) {
	results, err := models.GetAllUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func getConfirmationTemplateHandler(c *gin.Context) {
	template, err := models.GetConfirmationTemplate(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"template": template})
}

type confirmationTemplateRequest struct {
	Template string `json:"template"`
}

func setConfirmationTemplateHandler(c *gin.Context) {
	input, ok := bindJSON[confirmationTemplateRequest](c)
	if !ok {
		return
	}
	if err := models.SetConfirmationTemplate(c.Request.Context(), input.Template); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "confirmation message saved", gin.H{"template": input.Template})
}

func getRequiredFieldsHandler(c *gin.Context) {
	fields, err := models.GetRequiredClientFields(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"fields": fields})
}

type requiredFieldsRequest struct {
	Fields []string `json:"fields"`
}

func setRequiredFieldsHandler(c *gin.Context) {
	input, ok := bindJSON[requiredFieldsRequest](c)
	if !ok {
		return
	}
	if err := models.SetRequiredClientFields(c.Request.Context(), input.Fields); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "required fields saved", gin.H{"fields": input.Fields})
}

func getBusinessProfileHandler(c *gin.Context) {
	profile, err := models.GetBusinessProfile(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, profile)
}

func setBusinessProfileHandler(c *gin.Context) {
	input, ok := bindJSON[models.BusinessProfile](c)
	if !ok {
		return
	}
	if err := models.SetBusinessProfile(c.Request.Context(), input); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "business profile saved", input)
}

func auditHandler(c *gin.Context) {
	limit, ok := queryInt(c, "limit", models.AuditListLimit)
	if !ok {
		return
	}
	results, err := models.ListAudit(c.Request.Context(), models.AuditCategory(c.Query("category")), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func registerAdminRoutes(api *gin.RouterGroup) {
	api.PUT("/me/password", changePasswordHandler)

	settings := api.Group("/settings")
	settings.GET("/confirmation-message", getConfirmationTemplateHandler)
	settings.GET("/required-client-fields", getRequiredFieldsHandler)
	settings.GET("/business-profile", getBusinessProfileHandler)

	admin := api.Group("", middlewares.AdminOnly())
	admin.GET("/users", listUsersHandler)
	admin.POST("/users", createHandler(models.CreateUser))
	admin.PUT("/users/:id/active", toggleHandler(models.SetUserActive))
	admin.PUT("/settings/confirmation-message", setConfirmationTemplateHandler)
	admin.PUT("/settings/required-client-fields", setRequiredFieldsHandler)
	admin.PUT("/settings/business-profile", setBusinessProfileHandler)
	admin.GET("/audit", auditHandler)
}
