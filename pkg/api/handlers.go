package api

import (
	"net/http"

	"rebooto/pkg/database"
	"rebooto/pkg/models"
	"rebooto/pkg/service"
	"rebooto/pkg/work"

	"github.com/gin-gonic/gin"
)

// Handlers bundles the services the HTTP layer exposes.
type Handlers struct {
	Creds      *service.CredsService
	Devices    *service.DeviceService
	Actions    *service.ActionService
	Rules      *service.RuleService
	States     *service.StateService
	Executions *service.ExecutionService
	Manager    *work.Manager
	Works      database.WorkStore
}

// --- creds ---

type credsUpdateRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handlers) listCreds(c *gin.Context) {
	list, err := h.Creds.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handlers) getCreds(c *gin.Context) {
	creds, err := h.Creds.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, creds)
}

func (h *Handlers) createCreds(c *gin.Context) {
	var creds models.Creds
	if err := c.ShouldBindJSON(&creds); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.Creds.Create(c.Request.Context(), &creds)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handlers) updateCreds(c *gin.Context) {
	var req credsUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.Creds.Update(c.Request.Context(), c.Param("name"), req.Username, req.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handlers) deleteCreds(c *gin.Context) {
	if err := h.Creds.Delete(c.Request.Context(), c.Param("name")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handlers) setDefaultCreds(c *gin.Context) {
	creds, err := h.Creds.SetDefault(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, creds)
}

// --- device ---

func (h *Handlers) listDevices(c *gin.Context) {
	list, err := h.Devices.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handlers) getDevice(c *gin.Context) {
	device, err := h.Devices.Get(c.Request.Context(), c.Param("uid"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (h *Handlers) createDevice(c *gin.Context) {
	var device models.Device
	if err := c.ShouldBindJSON(&device); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.Devices.Create(c.Request.Context(), &device)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handlers) updateDevice(c *gin.Context) {
	var patch models.Device
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.Devices.Update(c.Request.Context(), c.Param("uid"), &patch)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handlers) deleteDevice(c *gin.Context) {
	if err := h.Devices.Delete(c.Request.Context(), c.Param("uid")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type heartbeatRequest struct {
	UID          string `json:"uid" binding:"required"`
	AgentVersion string `json:"agent_version"`
	OOBIP        string `json:"ip"`
	Model        string `json:"model"`
	CredsName    string `json:"creds_name"`
}

func (h *Handlers) heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	device, invalidCreds, err := h.Devices.Heartbeat(c.Request.Context(), service.HeartbeatInput{
		UID:          req.UID,
		AgentVersion: req.AgentVersion,
		OOBIP:        req.OOBIP,
		Model:        req.Model,
		CredsName:    req.CredsName,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if invalidCreds {
		c.JSON(http.StatusOK, gin.H{
			"device":  device,
			"message": "Provided creds name was not found, omitted it from update",
		})
		return
	}
	c.JSON(http.StatusOK, device)
}

// --- action ---

type actionUpdateRequest struct {
	ActionType string `json:"action_type" binding:"required,oneof=keystroke ipmitool power sleep screenshot request"`
	ActionData string `json:"action_data" binding:"required,paramtokens"`
}

func (h *Handlers) listActions(c *gin.Context) {
	list, err := h.Actions.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handlers) getAction(c *gin.Context) {
	action, err := h.Actions.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, action)
}

func (h *Handlers) createAction(c *gin.Context) {
	var action models.Action
	if err := c.ShouldBindJSON(&action); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.Actions.Create(c.Request.Context(), &action)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handlers) updateAction(c *gin.Context) {
	var req actionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.Actions.Update(c.Request.Context(), c.Param("name"), req.ActionType, req.ActionData)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handlers) deleteAction(c *gin.Context) {
	if err := h.Actions.Delete(c.Request.Context(), c.Param("name")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// --- rule ---

type ruleCreateRequest struct {
	Name       string   `json:"name" binding:"required"`
	StateID    int64    `json:"state_id" binding:"required"`
	Regex      string   `json:"regex" binding:"required"`
	Actions    []string `json:"actions"`
	IgnoreCase *bool    `json:"ignore_case"`
	Enabled    *bool    `json:"enabled"`
	BeforeRule string   `json:"before_rule"`
	AfterRule  string   `json:"after_rule"`
}

func (req *ruleCreateRequest) toModel() *models.Rule {
	rule := &models.Rule{
		Name:       req.Name,
		StateID:    req.StateID,
		Regex:      req.Regex,
		Actions:    req.Actions,
		IgnoreCase: true,
		Enabled:    true,
	}
	if req.IgnoreCase != nil {
		rule.IgnoreCase = *req.IgnoreCase
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	return rule
}

// ruleUpdateRequest is a patch: absent fields leave the rule as stored.
type ruleUpdateRequest struct {
	StateID    *int64   `json:"state_id"`
	Regex      *string  `json:"regex"`
	Actions    []string `json:"actions"`
	IgnoreCase *bool    `json:"ignore_case"`
	Enabled    *bool    `json:"enabled"`
	BeforeRule string   `json:"before_rule"`
	AfterRule  string   `json:"after_rule"`
}

func (h *Handlers) listRules(c *gin.Context) {
	list, err := h.Rules.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handlers) getRule(c *gin.Context) {
	rule, err := h.Rules.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handlers) createRule(c *gin.Context) {
	var req ruleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.Rules.Create(c.Request.Context(), req.toModel(), req.BeforeRule, req.AfterRule)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handlers) updateRule(c *gin.Context) {
	var req ruleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	patch := &service.RulePatch{
		StateID:    req.StateID,
		Regex:      req.Regex,
		Actions:    req.Actions,
		IgnoreCase: req.IgnoreCase,
		Enabled:    req.Enabled,
	}
	updated, err := h.Rules.Update(c.Request.Context(), c.Param("name"), patch, req.BeforeRule, req.AfterRule)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handlers) deleteRule(c *gin.Context) {
	if err := h.Rules.Delete(c.Request.Context(), c.Param("name")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
