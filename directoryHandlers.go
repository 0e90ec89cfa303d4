package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/models"
)

/* generic handlers shared by the directory entities */

func createHandler[In any, Out any](create func(context.Context, *In) (*Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		input, ok := bindJSON[In](c)
		if !ok {
			return
		}
		result, err := create(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, result)
	}
}

func updateHandler[In any, Out any](update func(context.Context, int, *In) (*Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		input, ok := bindJSON[In](c)
		if !ok {
			return
		}
		result, err := update(c.Request.Context(), id, input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, result)
	}
}

func getHandler[Out any](get func(context.Context, int) (*Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		result, err := get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, result)
	}
}

func listHandler[Out any](list func(context.Context, bool) ([]*Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := list(c.Request.Context(), queryBool(c, "include_inactive"))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, results)
	}
}

func toggleHandler[Out any](toggle func(context.Context, int, bool) (*Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		input, ok := bindJSON[activeToggle](c)
		if !ok {
			return
		}
		result, err := toggle(c.Request.Context(), id, *input.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, result)
	}
}

func searchClientsHandler(c *gin.Context) {
	limit, ok := queryInt(c, "limit", config.SearchLimit)
	if !ok {
		return
	}
	results, err := models.SearchClients(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func findClientByPhoneHandler(c *gin.Context) {
	result, err := models.FindClientByPhone(c.Request.Context(), c.Query("phone"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func professionalsForServiceHandler(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	results, err := models.ListProfessionalsForService(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

type stockAdjustmentRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func adjustStockHandler(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	input, ok := bindJSON[stockAdjustmentRequest](c)
	if !ok {
		return
	}
	result, err := models.AdjustProductStock(c.Request.Context(), id, input.Delta, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func listPaymentMethodsHandler(c *gin.Context) {
	results, err := models.ListPaymentMethods(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func registerDirectoryRoutes(api *gin.RouterGroup) {
	professionals := api.Group("/professionals")
	professionals.GET("", listHandler(models.ListProfessionals))
	professionals.GET("/:id", getHandler(models.GetProfessional))
	professionals.POST("", createHandler(models.CreateProfessional))
	professionals.PUT("/:id", updateHandler(models.UpdateProfessional))
	professionals.PUT("/:id/active", toggleHandler(models.ToggleActiveProfessional))

	clients := api.Group("/clients")
	clients.GET("", searchClientsHandler)
	clients.GET("/by-phone", findClientByPhoneHandler)
	clients.GET("/:id", getHandler(models.GetClient))
	clients.POST("", createHandler(models.CreateClient))
	clients.PUT("/:id", updateHandler(models.UpdateClient))
	clients.PUT("/:id/active", toggleHandler(models.ToggleActiveClient))

	suppliers := api.Group("/suppliers")
	suppliers.GET("", listHandler(models.ListSuppliers))
	suppliers.GET("/:id", getHandler(models.GetSupplier))
	suppliers.POST("", createHandler(models.CreateSupplier))
	suppliers.PUT("/:id", updateHandler(models.UpdateSupplier))
	suppliers.PUT("/:id/active", toggleHandler(models.ToggleActiveSupplier))

	services := api.Group("/services")
	services.GET("", listHandler(models.ListServices))
	services.GET("/:id", getHandler(models.GetService))
	services.GET("/:id/professionals", professionalsForServiceHandler)
	services.POST("", createHandler(models.CreateService))
	services.PUT("/:id", updateHandler(models.UpdateService))
	services.PUT("/:id/active", toggleHandler(models.ToggleActiveService))

	products := api.Group("/products")
	products.GET("", listHandler(models.ListProducts))
	products.GET("/:id", getHandler(models.GetProduct))
	products.POST("", createHandler(models.CreateProduct))
	products.PUT("/:id", updateHandler(models.UpdateProduct))
	products.PUT("/:id/active", toggleHandler(models.ToggleActiveProduct))
	products.POST("/:id/stock", adjustStockHandler)

	methods := api.Group("/payment-methods")
	methods.GET("", listPaymentMethodsHandler)
	methods.POST("", createHandler(models.CreatePaymentMethod))
	methods.PUT("/:id/active", toggleHandler(models.ToggleActivePaymentMethod))
}
