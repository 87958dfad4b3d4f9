package api

import (
	"net/http"

	"rebooto/pkg/config"
	"rebooto/pkg/template"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// NewRouter builds the HTTP API. /login and /version are open; everything
// under /api/v1, agents included, carries a JWT.
func NewRouter(cfg *config.Config, handlers *Handlers) *gin.Engine {
	registerValidations()

	router := gin.New()
	router.Use(gin.Recovery(), SecurityHeaders())

	auth := Auth(cfg)
	router.POST("/login", auth.LoginHandler)
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": Version})
	})

	v1 := router.Group("/api/v1", auth.JWTMiddleware())

	creds := v1.Group("/creds")
	{
		creds.GET("", handlers.listCreds)
		creds.GET("/:name", handlers.getCreds)
		creds.POST("", handlers.createCreds)
		creds.PUT("/:name", handlers.updateCreds)
		creds.DELETE("/:name", handlers.deleteCreds)
		creds.POST("/:name/default", handlers.setDefaultCreds)
	}

	device := v1.Group("/device")
	{
		device.GET("", handlers.listDevices)
		device.GET("/:uid", handlers.getDevice)
		device.POST("", handlers.createDevice)
		device.PUT("/:uid", handlers.updateDevice)
		device.DELETE("/:uid", handlers.deleteDevice)
		device.POST("/:uid/screenshot", handlers.ingestState)
	}
	v1.POST("/heartbeat", handlers.heartbeat)

	action := v1.Group("/action")
	{
		action.GET("", handlers.listActions)
		action.GET("/:name", handlers.getAction)
		action.POST("", handlers.createAction)
		action.PUT("/:name", handlers.updateAction)
		action.DELETE("/:name", handlers.deleteAction)
	}

	rule := v1.Group("/rule")
	{
		rule.GET("", handlers.listRules)
		rule.GET("/:name", handlers.getRule)
		rule.POST("", handlers.createRule)
		rule.PUT("/:name", handlers.updateRule)
		rule.DELETE("/:name", handlers.deleteRule)
	}

	state := v1.Group("/state")
	{
		state.GET("", handlers.listStates)
		state.GET("/:id", handlers.getState)
		state.GET("/:id/screenshot", handlers.getStateScreenshot)
		state.PUT("/:id/resolve", handlers.resolveState)
	}
	v1.GET("/screenshot/by-device", handlers.getDeviceScreenshot)

	workGroup := v1.Group("/work")
	{
		workGroup.GET("/all", handlers.listAllWork)
		workGroup.GET("/all/by-device", handlers.listWorkByDevice)
		workGroup.GET("/pending", handlers.listPendingWork)
		workGroup.GET("/completed", handlers.listCompletedWork)
		workGroup.GET("/by-device", handlers.getPendingWorkByDevice)
		workGroup.GET("/:id", handlers.getWork)
		workGroup.POST("", handlers.createWork)
		workGroup.POST("/assign", handlers.assignWork)
		workGroup.PUT("/:id", handlers.completeWork)
		workGroup.GET("/:id/execution", handlers.listWorkExecutions)
	}

	v1.POST("/execution", handlers.createExecution)

	return router
}

// registerValidations adds the "paramtokens" binding check: action data may
// only carry template tokens from the closed category/field set.
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("paramtokens", func(fl validator.FieldLevel) bool {
		return template.ValidateActionData(fl.Field().String()) == nil
	})
}
