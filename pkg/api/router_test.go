package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rebooto/pkg/config"
	"rebooto/pkg/database/memstore"
	"rebooto/pkg/rules"
	"rebooto/pkg/service"
	"rebooto/pkg/work"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type staticExtractor struct{}

func (staticExtractor) ExtractText(ctx context.Context, image []byte) (string, error) {
	return "login:", nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("swordfish"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	cfg := &config.Config{
		JWTSecret:            "test-secret",
		AdminUser:            "admin",
		AdminHash:            string(hash),
		SessionDurationHours: 1,
	}

	credsStore := memstore.NewCreds()
	deviceStore := memstore.NewDevices()
	actionStore := memstore.NewActions()
	ruleStore := memstore.NewRules()
	stateStore := memstore.NewStates()
	workStore := memstore.NewWorks()
	executionStore := memstore.NewExecutions()

	matcher := rules.NewMatcher(ruleStore, stateStore)
	manager := work.NewManager(work.Deps{
		Works:      workStore,
		Devices:    deviceStore,
		Creds:      credsStore,
		Actions:    actionStore,
		Rules:      ruleStore,
		States:     stateStore,
		Executions: executionStore,
	}, "")

	credsService := service.NewCredsService(credsStore, deviceStore, "")
	return NewRouter(cfg, &Handlers{
		Creds:      credsService,
		Devices:    service.NewDeviceService(deviceStore, stateStore, workStore, credsService),
		Actions:    service.NewActionService(actionStore, ruleStore),
		Rules:      service.NewRuleService(ruleStore, actionStore, stateStore, matcher),
		States:     service.NewStateService(stateStore, deviceStore, staticExtractor{}, matcher),
		Executions: service.NewExecutionService(executionStore, workStore),
		Manager:    manager,
		Works:      workStore,
	})
}

func do(t *testing.T, router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, router *gin.Engine) string {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/login", "", `{"username":"admin","password":"swordfish"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("login response: %v", err)
	}
	return resp.Token
}

func TestAuthFlow(t *testing.T) {
	router := newTestRouter(t)

	if rec := do(t, router, http.MethodGet, "/api/v1/creds", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/login", "", `{"username":"admin","password":"wrong"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/api/v1/creds", "not-a-jwt", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", rec.Code)
	}

	token := login(t, router)
	if rec := do(t, router, http.MethodGet, "/api/v1/creds", token, ""); rec.Code != http.StatusOK {
		t.Errorf("authorized list status = %d, want 200", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router)

	// Unknown entity -> 404.
	if rec := do(t, router, http.MethodGet, "/api/v1/device/ghost", token, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", rec.Code)
	}

	// Reserved name -> 422.
	rec := do(t, router, http.MethodPost, "/api/v1/creds", token, `{"name":"default","username":"u","password":"p"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("reserved creds name status = %d, want 422", rec.Code)
	}

	// Duplicate -> 409.
	body := `{"name":"bmc","username":"root","password":"p"}`
	if rec := do(t, router, http.MethodPost, "/api/v1/creds", token, body); rec.Code != http.StatusCreated {
		t.Fatalf("create creds status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, router, http.MethodPost, "/api/v1/creds", token, body); rec.Code != http.StatusConflict {
		t.Errorf("duplicate creds status = %d, want 409", rec.Code)
	}

	// Malformed template token fails binding -> 400.
	rec = do(t, router, http.MethodPost, "/api/v1/action", token,
		`{"name":"bad","action_type":"ipmitool","action_data":"{device::hostname}"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad template token status = %d, want 400", rec.Code)
	}
}

// A rule update only changes the fields the request carries.
func TestRuleUpdateOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router)

	steps := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, "/api/v1/creds", `{"name":"bmc","username":"root","password":"hunter2"}`, http.StatusCreated},
		{http.MethodPost, "/api/v1/device", `{"uid":"node-1","oob_ip":"10.0.0.1","model":"R640"}`, http.StatusCreated},
		{http.MethodPost, "/api/v1/device/node-1/screenshot", "fake png bytes", http.StatusCreated},
		{http.MethodPost, "/api/v1/action", `{"name":"nmi","action_type":"ipmitool","action_data":"chassis power diag"}`, http.StatusCreated},
	}
	for _, step := range steps {
		if rec := do(t, router, step.method, step.path, token, step.body); rec.Code != step.want {
			t.Fatalf("%s %s status = %d, want %d: %s", step.method, step.path, rec.Code, step.want, rec.Body.String())
		}
	}

	// Rules need the exemplar state they were authored from.
	rec := do(t, router, http.MethodPost, "/api/v1/rule", token,
		`{"name":"reboot","regex":"panic","actions":["nmi"],"enabled":false}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("rule without state_id status = %d, want 400", rec.Code)
	}
	rec = do(t, router, http.MethodPost, "/api/v1/rule", token,
		`{"name":"reboot","state_id":1,"regex":"panic","actions":["nmi"],"enabled":false}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create rule status = %d: %s", rec.Code, rec.Body.String())
	}

	if rec := do(t, router, http.MethodPut, "/api/v1/rule/reboot", token, `{"regex":"kernel panic"}`); rec.Code != http.StatusOK {
		t.Fatalf("update rule status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodGet, "/api/v1/rule/reboot", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get rule status = %d", rec.Code)
	}
	var rule struct {
		StateID    int64  `json:"state_id"`
		Regex      string `json:"regex"`
		IgnoreCase bool   `json:"ignore_case"`
		Enabled    bool   `json:"enabled"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &rule); err != nil {
		t.Fatalf("rule response: %v", err)
	}
	if rule.Regex != "kernel panic" {
		t.Errorf("regex = %q, want %q", rule.Regex, "kernel panic")
	}
	if rule.Enabled {
		t.Error("rule was re-enabled by a regex-only update")
	}
	if !rule.IgnoreCase {
		t.Error("ignore_case was reset by a regex-only update")
	}
	if rule.StateID != 1 {
		t.Errorf("state_id = %d, want 1", rule.StateID)
	}
}

func TestWorkOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router)

	steps := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, "/api/v1/creds", `{"name":"bmc","username":"root","password":"hunter2"}`, http.StatusCreated},
		{http.MethodPost, "/api/v1/device", `{"uid":"node-1","oob_ip":"10.0.0.1","model":"R640"}`, http.StatusCreated},
		{http.MethodPost, "/api/v1/action", `{"name":"power-cycle","action_type":"ipmitool","action_data":"-H {device::ip} chassis power cycle"}`, http.StatusCreated},
		{http.MethodPost, "/api/v1/work", `{"device_uid":"node-1","actions":["power-cycle"]}`, http.StatusCreated},
	}
	for _, step := range steps {
		if rec := do(t, router, step.method, step.path, token, step.body); rec.Code != step.want {
			t.Fatalf("%s %s status = %d, want %d: %s", step.method, step.path, rec.Code, step.want, rec.Body.String())
		}
	}

	rec := do(t, router, http.MethodPost, "/api/v1/work/assign", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("assign status = %d: %s", rec.Code, rec.Body.String())
	}
	var assignment struct {
		WorkID     int64 `json:"work_id"`
		DeviceData struct {
			IP string `json:"ip"`
		} `json:"device_data"`
		ActionList []struct {
			Data string `json:"data"`
		} `json:"action_list"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &assignment); err != nil {
		t.Fatalf("assignment response: %v", err)
	}
	if assignment.ActionList[0].Data != "-H 10.0.0.1 chassis power cycle" {
		t.Errorf("resolved action data = %q", assignment.ActionList[0].Data)
	}

	// Queue is empty now.
	if rec := do(t, router, http.MethodPost, "/api/v1/work/assign", token, ""); rec.Code != http.StatusNoContent {
		t.Errorf("assign on empty queue status = %d, want 204", rec.Code)
	}

	// Worker reports completion; repeating it is a conflict.
	path := "/api/v1/work/1"
	if rec := do(t, router, http.MethodPut, path, token, `{"status":"success"}`); rec.Code != http.StatusOK {
		t.Errorf("complete status = %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPut, path, token, `{"status":"failure"}`); rec.Code != http.StatusConflict {
		t.Errorf("double complete status = %d, want 409", rec.Code)
	}

	// The completed work shows up in the list views.
	rec = do(t, router, http.MethodGet, "/api/v1/work/completed", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("completed list status = %d", rec.Code)
	}
	var completed []struct {
		WorkID int64  `json:"work_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &completed); err != nil {
		t.Fatalf("completed list response: %v", err)
	}
	if len(completed) != 1 || completed[0].Status != "success" {
		t.Errorf("completed list = %+v", completed)
	}
	if rec := do(t, router, http.MethodGet, "/api/v1/work/by-device?uid=node-1", token, ""); rec.Code != http.StatusNotFound {
		t.Errorf("pending by-device after completion status = %d, want 404", rec.Code)
	}
}
