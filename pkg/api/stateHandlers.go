package api

import (
	"io"
	"net/http"
	"strconv"

	"rebooto/pkg/service"

	"github.com/gin-gonic/gin"
)

// ingestState accepts a console screenshot for a device, multipart field
// "screenshot" or the raw request body, and returns the resulting state.
func (h *Handlers) ingestState(c *gin.Context) {
	image, err := readScreenshot(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(image) == 0 {
		respondError(c, http.StatusBadRequest, "empty screenshot")
		return
	}

	state, err := h.States.Ingest(c.Request.Context(), c.Param("uid"), image)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

func readScreenshot(c *gin.Context) ([]byte, error) {
	file, _, err := c.Request.FormFile("screenshot")
	if err == nil {
		defer file.Close()
		return io.ReadAll(file)
	}
	return io.ReadAll(c.Request.Body)
}

func (h *Handlers) listStates(c *gin.Context) {
	states, err := h.States.List(
		c.Request.Context(),
		service.StateScope(c.DefaultQuery("scope", "all")),
		c.Query("device_uid"),
		c.Query("regex"),
	)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, states)
}

func (h *Handlers) getState(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid id")
		return
	}

	state, err := h.States.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handlers) getStateScreenshot(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid id")
		return
	}

	image, err := h.States.Screenshot(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", image)
}

// getDeviceScreenshot serves the screenshot of the device's open state.
func (h *Handlers) getDeviceScreenshot(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		respondError(c, http.StatusBadRequest, "uid is required")
		return
	}

	image, err := h.States.ScreenshotByDevice(c.Request.Context(), uid)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", image)
}

type resolveRequest struct {
	Resolved *bool `json:"resolved" binding:"required"`
}

func (h *Handlers) resolveState(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid id")
		return
	}

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.States.Resolve(c.Request.Context(), id, *req.Resolved)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
