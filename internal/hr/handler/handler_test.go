package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"github.com/bitfantasy/nimo-hr/internal/hr/notify"
	"github.com/bitfantasy/nimo-hr/internal/hr/repository"
	"github.com/bitfantasy/nimo-hr/internal/hr/service"
	"github.com/bitfantasy/nimo-hr/internal/hr/sse"
	"github.com/bitfantasy/nimo-hr/internal/testutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type testEnv struct {
	router *gin.Engine
	org    *testutil.Org
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	org := testutil.SeedOrg(t, db)
	clock := testutil.NewClock(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	svc := service.NewServices(repository.NewRepositories(db), testutil.TestConfig(), service.Options{
		Notifier: &notify.Recorder{},
		Now:      clock.Now,
	})
	r := testutil.SetupRouter()
	RegisterRoutes(r, NewHandlers(svc, sse.NewHub(zap.NewNop()), zap.NewNop()), testutil.JWTSecret, testutil.JWTIssuer)
	return &testEnv{router: r, org: org}
}

func (e *testEnv) token(emp *entity.Employee) string {
	var depts []string
	if emp.ID == e.org.DM.ID {
		depts = []string{e.org.Department.ID}
	}
	return testutil.GenerateTestToken(emp.ID, emp.RoleCodes(), depts)
}

func expectCode(t *testing.T, w *httptest.ResponseRecorder, resp map[string]interface{}, status int, code float64) {
	t.Helper()
	if got := w.Code; got != status {
		t.Fatalf("status = %d, want %d (%v)", got, status, resp)
	}
	if got, _ := resp["code"].(float64); got != code {
		t.Fatalf("code = %v, want %v (%v)", resp["code"], code, resp)
	}
}

func dataOf(resp map[string]interface{}) map[string]interface{} {
	data, _ := resp["data"].(map[string]interface{})
	return data
}

func TestRoutesRequireToken(t *testing.T) {
	env := setupEnv(t)

	w := testutil.DoRequest(env.router, "GET", "/api/v1/tasks", nil, "")
	expectCode(t, w, testutil.ParseResponse(w), http.StatusUnauthorized, 40100)

	w = testutil.DoRequest(env.router, "GET", "/api/v1/tasks", nil, "not-a-token")
	expectCode(t, w, testutil.ParseResponse(w), http.StatusUnauthorized, 40102)
}

func TestErrorKindsMapToCodes(t *testing.T) {
	env := setupEnv(t)
	emp := env.token(env.org.Employee)

	w := testutil.DoRequest(env.router, "POST", "/api/v1/tasks", map[string]interface{}{"kind": "epic", "title": "x"}, emp)
	expectCode(t, w, testutil.ParseResponse(w), http.StatusBadRequest, 40000)

	w = testutil.DoRequest(env.router, "GET", "/api/v1/tasks/task-none", nil, emp)
	expectCode(t, w, testutil.ParseResponse(w), http.StatusNotFound, 40400)

	w = testutil.DoRequest(env.router, "GET", "/api/v1/workload/employees/"+env.org.Peer.ID, nil, emp)
	expectCode(t, w, testutil.ParseResponse(w), http.StatusForbidden, 40300)

	w = testutil.DoRequest(env.router, "GET", "/api/v1/analytics/employees/"+env.org.Employee.ID+"?from=yesterday", nil, emp)
	expectCode(t, w, testutil.ParseResponse(w), http.StatusBadRequest, 40000)

	// route-level role checks answer before the service runs
	w = testutil.DoRequest(env.router, "POST", "/api/v1/bulk-operations", map[string]interface{}{
		"operation_type": "delete", "task_ids": []string{"x"},
	}, emp)
	expectCode(t, w, testutil.ParseResponse(w), http.StatusForbidden, 40312)
	w = testutil.DoRequest(env.router, "GET", "/api/v1/workload/team", nil, emp)
	expectCode(t, w, testutil.ParseResponse(w), http.StatusForbidden, 40312)
}

func TestTimesheetOverHTTP(t *testing.T) {
	env := setupEnv(t)
	emp := env.token(env.org.Employee)
	pm := env.token(env.org.PM)

	w := testutil.DoRequest(env.router, "POST", "/api/v1/timesheets", map[string]interface{}{"week": "2026-10-14"}, emp)
	resp := testutil.ParseResponse(w)
	expectCode(t, w, resp, http.StatusCreated, 0)
	ts := dataOf(resp)
	id, _ := ts["id"].(string)
	if ts["overall_status"] != entity.TimesheetStatusDraft || id == "" {
		t.Fatalf("draft = %v", ts)
	}

	w = testutil.DoRequest(env.router, "POST", "/api/v1/timesheets/"+id+"/submit", nil, emp)
	expectCode(t, w, testutil.ParseResponse(w), http.StatusBadRequest, 40000)

	w = testutil.DoRequest(env.router, "POST", "/api/v1/timesheets/"+id+"/rows", map[string]interface{}{
		"project_id": env.org.Project.ID, "description": "build", "mon_hours": 8, "tue_hours": 7.5,
	}, emp)
	expectCode(t, w, testutil.ParseResponse(w), http.StatusCreated, 0)

	w = testutil.DoRequest(env.router, "POST", "/api/v1/timesheets/"+id+"/submit", nil, emp)
	resp = testutil.ParseResponse(w)
	expectCode(t, w, resp, http.StatusOK, 0)
	if dataOf(resp)["current_stage"] != entity.StagePM {
		t.Fatalf("after submit = %v", dataOf(resp))
	}

	w = testutil.DoRequest(env.router, "POST", "/api/v1/timesheets/"+id+"/submit", nil, emp)
	expectCode(t, w, testutil.ParseResponse(w), http.StatusConflict, 40900)

	w = testutil.DoRequest(env.router, "POST", "/api/v1/timesheets/"+id+"/approve", map[string]interface{}{}, pm)
	expectCode(t, w, testutil.ParseResponse(w), http.StatusBadRequest, 40000)

	w = testutil.DoRequest(env.router, "POST", "/api/v1/timesheets/"+id+"/approve", map[string]interface{}{"stage": "pm", "comment": "ok"}, pm)
	resp = testutil.ParseResponse(w)
	expectCode(t, w, resp, http.StatusOK, 0)
	if dataOf(resp)["current_stage"] != entity.StageDM {
		t.Errorf("after pm approval = %v", dataOf(resp))
	}

	w = testutil.DoRequest(env.router, "GET", "/api/v1/timesheets/pending", nil, env.token(env.org.DM))
	resp = testutil.ParseResponse(w)
	expectCode(t, w, resp, http.StatusOK, 0)
	if items, _ := dataOf(resp)["items"].([]interface{}); len(items) != 1 {
		t.Errorf("dm inbox = %v", dataOf(resp))
	}

	w = testutil.DoRequest(env.router, "GET", "/api/v1/timesheets/"+id+"/export", nil, emp)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" || w.Body.Len() == 0 {
		t.Errorf("export = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
}

func TestTasksAndWorkloadOverHTTP(t *testing.T) {
	env := setupEnv(t)
	pm := env.token(env.org.PM)
	emp := env.token(env.org.Employee)

	w := testutil.DoRequest(env.router, "POST", "/api/v1/tasks", map[string]interface{}{
		"kind":             entity.TaskKindAssigned,
		"title":            "rollout",
		"assignee_id":      env.org.Employee.ID,
		"permission_level": entity.PermissionEditProgress,
		"estimated_hours":  30,
	}, pm)
	resp := testutil.ParseResponse(w)
	expectCode(t, w, resp, http.StatusCreated, 0)
	taskID, _ := dataOf(resp)["id"].(string)

	w = testutil.DoRequest(env.router, "GET", "/api/v1/workload/employees/"+env.org.Employee.ID, nil, emp)
	resp = testutil.ParseResponse(w)
	expectCode(t, w, resp, http.StatusOK, 0)
	if row := dataOf(resp); row["current_planned_hours"] != float64(30) || row["workload_status"] != entity.WorkloadOptimal {
		t.Errorf("workload = %v", row)
	}

	w = testutil.DoRequest(env.router, "PUT", "/api/v1/tasks/"+taskID, map[string]interface{}{"title": "renamed"}, emp)
	expectCode(t, w, testutil.ParseResponse(w), http.StatusForbidden, 40300)

	w = testutil.DoRequest(env.router, "GET", "/api/v1/tasks?kind=assigned&page_size=5", nil, emp)
	resp = testutil.ParseResponse(w)
	expectCode(t, w, resp, http.StatusOK, 0)
	items, _ := dataOf(resp)["items"].([]interface{})
	if len(items) != 1 {
		t.Errorf("tasks = %v", dataOf(resp))
	}

	w = testutil.DoRequest(env.router, "POST", "/api/v1/bulk-operations", map[string]interface{}{
		"operation_type": entity.BulkOpSetImportant,
		"task_ids":       []string{taskID, "task-none"},
		"parameters":     map[string]interface{}{"important": true},
	}, pm)
	resp = testutil.ParseResponse(w)
	expectCode(t, w, resp, http.StatusCreated, 0)
	if op := dataOf(resp); op["status"] != entity.BulkStatusCompleted || op["failed_tasks"] != float64(1) {
		t.Errorf("bulk = %v", op)
	}

	w = testutil.DoRequest(env.router, "POST", "/api/v1/bulk-operations", map[string]interface{}{
		"operation_type": "archive",
		"task_ids":       []string{taskID},
	}, pm)
	resp = testutil.ParseResponse(w)
	expectCode(t, w, resp, http.StatusBadRequest, 40000)
	if op := dataOf(resp); op["status"] != entity.BulkStatusFailed {
		t.Errorf("rejected bulk = %v", op)
	}

	w = testutil.DoRequest(env.router, "POST", "/api/v1/analytics/employees/"+env.org.Employee.ID+"/recompute", nil, pm)
	expectCode(t, w, testutil.ParseResponse(w), http.StatusForbidden, 40312)
	w = testutil.DoRequest(env.router, "POST", "/api/v1/analytics/employees/"+env.org.Employee.ID+"/recompute", nil, env.token(env.org.Admin))
	expectCode(t, w, testutil.ParseResponse(w), http.StatusOK, 0)
}
