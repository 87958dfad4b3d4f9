package api

import (
	"net/http"
	"strconv"

	"rebooto/pkg/models"

	"github.com/gin-gonic/gin"
)

type workCreateRequest struct {
	DeviceUID string   `json:"device_uid" binding:"required"`
	Rule      string   `json:"rule"`
	Actions   []string `json:"actions"`
}

func (h *Handlers) createWork(c *gin.Context) {
	var req workCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.Manager.CreateManual(c.Request.Context(), req.DeviceUID, req.Rule, req.Actions)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// assignWork hands the oldest ready work to the calling worker. 204 means
// nothing is ready right now; the worker polls again later.
func (h *Handlers) assignWork(c *gin.Context) {
	assignment, err := h.Manager.GetAssignment(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if assignment == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, assignment)
}

type workCompleteRequest struct {
	Status string `json:"status" binding:"required,oneof=success failure"`
}

func (h *Handlers) completeWork(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid id")
		return
	}

	var req workCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	completed, err := h.Manager.CompleteByID(c.Request.Context(), id, req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, completed)
}

func (h *Handlers) listAllWork(c *gin.Context) {
	works, err := h.Works.All(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, works)
}

func (h *Handlers) listPendingWork(c *gin.Context) {
	works, err := h.Works.Pending(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, works)
}

func (h *Handlers) listCompletedWork(c *gin.Context) {
	works, err := h.Works.Completed(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, works)
}

// getPendingWorkByDevice returns the device's single pending work, 404 when
// the device has none.
func (h *Handlers) getPendingWorkByDevice(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		respondError(c, http.StatusBadRequest, "uid is required")
		return
	}

	work, err := h.Works.PendingByDevice(c.Request.Context(), uid)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, work)
}

func (h *Handlers) listWorkByDevice(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		respondError(c, http.StatusBadRequest, "uid is required")
		return
	}

	works, err := h.Works.AllByDevice(c.Request.Context(), uid)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, works)
}

func (h *Handlers) getWork(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid id")
		return
	}

	work, err := h.Works.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, work)
}

// --- execution ---

func (h *Handlers) createExecution(c *gin.Context) {
	var execution models.Execution
	if err := c.ShouldBindJSON(&execution); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.Executions.Create(c.Request.Context(), &execution)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handlers) listWorkExecutions(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid id")
		return
	}

	executions, err := h.Executions.ListByWork(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, executions)
}
