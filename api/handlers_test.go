/*
handlers_test.go - End-to-end tests for the HTTP API

Tests run against a real router wired to an in-memory SQLite store, so
they cover routing, validation, domain logic and persistence together.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rv-engine/api"
	"github.com/warp/rv-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	router := api.NewRouter(api.NewHandler(store), api.RouterOptions{})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func seedTier(t *testing.T, srv *httptest.Server, activity, label string, unitValue, minProductivity float64) {
	t.Helper()
	resp, _ := doJSON(t, srv, http.MethodPost, "/api/activities", map[string]any{
		"activityName":    activity,
		"tierLabel":       label,
		"unitValue":       unitValue,
		"minProductivity": minProductivity,
		"unit":            "boxes/h",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func seedUser(t *testing.T, srv *httptest.Server, cpf, name, role string) {
	t.Helper()
	resp, _ := doJSON(t, srv, http.MethodPost, "/api/users", map[string]any{
		"cpf":   cpf,
		"name":  name,
		"role":  role,
		"shift": "Morning",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// =============================================================================
// CALCULATION
// =============================================================================

func TestCalculate_SingleActivity(t *testing.T) {
	srv := newTestServer(t)
	seedTier(t, srv, "Picking", "Tier 1", 0.5, 40)
	seedTier(t, srv, "Picking", "Tier 2", 0.3, 0)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/calculate", map[string]any{
		"role":             "Picker",
		"shift":            "Morning",
		"referenceMonth":   2,
		"activityName":     "Picking",
		"quantityProduced": 90,
		"hoursWorked":      2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "single_activity", body["strategy"])
	assert.Equal(t, 22.5, body["activitySubtotal"])
	assert.Equal(t, 22.5, body["totalRemuneration"])
	assert.Equal(t, float64(2), body["referenceMonth"])
	assert.NotZero(t, body["workingDays"])

	activities, ok := body["activities"].([]any)
	require.True(t, ok)
	require.Len(t, activities, 1)
	first := activities[0].(map[string]any)
	assert.Equal(t, "Tier 1", first["tierLabel"])
	assert.Equal(t, float64(45), first["productivityRate"])
}

func TestCalculate_UnknownActivityIs404(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/calculate", map[string]any{
		"role":             "Picker",
		"shift":            "Morning",
		"activityName":     "Sorting",
		"quantityProduced": 90,
		"hoursWorked":      2,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["error"], "Sorting")
}

func TestCalculate_ValidationFailure(t *testing.T) {
	srv := newTestServer(t)

	// Missing role and shift entirely.
	resp, body := doJSON(t, srv, http.MethodPost, "/api/calculate", map[string]any{
		"activityName": "Picking",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestCalculate_TaskCountRole(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/calculate", map[string]any{
		"role":           "Forklift Operator",
		"shift":          "Night",
		"validTaskCount": 50,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "task_count", body["strategy"])
	assert.Equal(t, float64(50), body["validTaskCount"])
	assert.Equal(t, 4.65, body["taskValue"])
	assert.Equal(t, 2.33, body["activitySubtotal"]) // 2.325 rounded at the boundary
}

// =============================================================================
// CATALOG CRUD
// =============================================================================

func TestActivityLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp, created := doJSON(t, srv, http.MethodPost, "/api/activities", map[string]any{
		"activityName":    "Picking",
		"tierLabel":       "Tier 1",
		"unitValue":       0.5,
		"minProductivity": 40,
		"unit":            "boxes/h",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := created["id"].(string)
	require.NotEmpty(t, id)

	resp, updated := doJSON(t, srv, http.MethodPut, "/api/activities/"+id, map[string]any{
		"activityName":    "Picking",
		"tierLabel":       "Tier 1+",
		"unitValue":       0.6,
		"minProductivity": 40,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Tier 1+", updated["tierLabel"])

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/activities/"+id, nil)
	del, err := srv.Client().Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodPut, "/api/activities/"+id, map[string]any{
		"activityName":    "Picking",
		"tierLabel":       "Tier 1",
		"unitValue":       0.5,
		"minProductivity": 40,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAvailableKPIs(t *testing.T) {
	srv := newTestServer(t)

	for _, k := range []map[string]any{
		{"name": "Attendance", "role": "Picker", "shift": "Morning", "targetValue": 100, "weight": 1},
		{"name": "Quality", "role": "Picker", "shift": "General", "targetValue": 100, "weight": 1},
		{"name": "Night Audit", "role": "Picker", "shift": "Night", "targetValue": 100, "weight": 1},
	} {
		resp, _ := doJSON(t, srv, http.MethodPost, "/api/kpis", k)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/kpis/available?role=Picker&shift=Morning", nil)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var kpis []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&kpis))
	require.Len(t, kpis, 2)
	assert.Equal(t, "Attendance", kpis[0]["name"])
	assert.Equal(t, "Quality", kpis[1]["name"])
}

// =============================================================================
// USERS AND LOGIN
// =============================================================================

func TestUserLoginFlow(t *testing.T) {
	srv := newTestServer(t)
	seedUser(t, srv, "12345678901", "John Smith", "Picker")

	resp, body := doJSON(t, srv, http.MethodPost, "/api/login", map[string]any{
		"cpf": "12345678901",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "John Smith", body["name"])
	assert.Equal(t, "Operator", body["profile"])

	resp, _ = doJSON(t, srv, http.MethodPost, "/api/login", map[string]any{
		"cpf": "00000000000",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Malformed CPF fails validation before any lookup.
	resp, body = doJSON(t, srv, http.MethodPost, "/api/login", map[string]any{
		"cpf": "123",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "CPF", body["field"])
}

func TestCreateUser_DuplicateCPFIs409(t *testing.T) {
	srv := newTestServer(t)
	seedUser(t, srv, "12345678901", "John Smith", "Picker")

	resp, _ := doJSON(t, srv, http.MethodPost, "/api/users", map[string]any{
		"cpf":   "12345678901",
		"name":  "Someone Else",
		"role":  "Packer",
		"shift": "Night",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// LAUNCHES AND RECORDS
// =============================================================================

func TestLaunchFlow(t *testing.T) {
	srv := newTestServer(t)
	seedTier(t, srv, "Picking", "Tier 1", 0.5, 0)
	seedUser(t, srv, "12345678901", "John Smith", "Picker")

	resp, launch := doJSON(t, srv, http.MethodPost, "/api/launches", map[string]any{
		"userCpf":          "12345678901",
		"launchDate":       "2024-03-01",
		"role":             "Picker",
		"shift":            "Morning",
		"referenceMonth":   3,
		"activityName":     "Picking",
		"quantityProduced": 90,
		"hoursWorked":      2,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 22.5, launch["activitySubtotal"])
	assert.Equal(t, "Tier 1", launch["tierLabel"])

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/launches?cpf=12345678901", nil)
	listResp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var launches []map[string]any
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&launches))
	require.Len(t, launches, 1)
	assert.Equal(t, "2024-03-01", launches[0]["launchDate"])
}

func TestRecordFlow_DuplicateDateIs409(t *testing.T) {
	srv := newTestServer(t)
	seedUser(t, srv, "12345678901", "John Smith", "Picker")

	payload := map[string]any{
		"userCpf":           "12345678901",
		"launchDate":        "2024-03-01",
		"activitySubtotal":  22.5,
		"kpiBonus":          3,
		"totalRemuneration": 25.5,
		"details":           map[string]any{"strategy": "single_activity"},
	}

	resp, record := doJSON(t, srv, http.MethodPost, "/api/records", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	recordID := record["id"].(string)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/records", payload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "12345678901")

	// Deleting the record frees the slot.
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/records/"+recordID, nil)
	del, err := srv.Client().Do(req)
	require.NoError(t, err)
	del.Body.Close()
	require.Equal(t, http.StatusNoContent, del.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodPost, "/api/records", payload)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestUserSummary(t *testing.T) {
	srv := newTestServer(t)
	seedTier(t, srv, "Picking", "Tier 1", 0.5, 0)
	seedUser(t, srv, "12345678901", "John Smith", "Picker")

	for _, day := range []string{"2024-03-01", "2024-03-02"} {
		resp, _ := doJSON(t, srv, http.MethodPost, "/api/launches", map[string]any{
			"userCpf":          "12345678901",
			"launchDate":       day,
			"role":             "Picker",
			"shift":            "Morning",
			"referenceMonth":   3,
			"activityName":     "Picking",
			"quantityProduced": 90,
			"hoursWorked":      2,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, summary := doJSON(t, srv, http.MethodGet,
		"/api/users/12345678901/summary?month=3&year=2024", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), summary["totalLaunches"])
	assert.Equal(t, float64(45), summary["totalRemuneration"])
}

func TestUserSummary_ListingCappedAtTen(t *testing.T) {
	srv := newTestServer(t)
	seedTier(t, srv, "Picking", "Tier 1", 0.5, 0)
	seedUser(t, srv, "12345678901", "John Smith", "Picker")

	for day := 1; day <= 12; day++ {
		resp, _ := doJSON(t, srv, http.MethodPost, "/api/launches", map[string]any{
			"userCpf":          "12345678901",
			"launchDate":       fmt.Sprintf("2024-03-%02d", day),
			"role":             "Picker",
			"shift":            "Morning",
			"referenceMonth":   3,
			"activityName":     "Picking",
			"quantityProduced": 90,
			"hoursWorked":      2,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, summary := doJSON(t, srv, http.MethodGet,
		"/api/users/12345678901/summary?month=3&year=2024", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Totals cover all 12 launches, the listing only the 10 most recent.
	assert.Equal(t, float64(12), summary["totalLaunches"])
	assert.Equal(t, float64(270), summary["totalRemuneration"])

	launches, ok := summary["launches"].([]any)
	require.True(t, ok)
	require.Len(t, launches, 10)
	newest := launches[0].(map[string]any)
	assert.Equal(t, "2024-03-12", newest["launchDate"])
}

// =============================================================================
// TASK-LOG CLASSIFICATION
// =============================================================================

func TestClassifyTaskLog(t *testing.T) {
	srv := newTestServer(t)

	content := "Type;LastAssociationTime;AlterationTime;Completed;ActorName\n" +
		"Putaway;01/03/2024 08:00:00;01/03/2024 08:00:15;1;JOHN SMITH\n" +
		"Putaway;01/03/2024 09:00:00;01/03/2024 09:00:05;1;JOHN SMITH\n" +
		"Manual Replenishment;01/03/2024 10:00:00;01/03/2024 10:00:30;1;JANE DOE\n"

	upload := func(actor string) (*http.Response, map[string]any) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("actorName", actor))
		fw, err := mw.CreateFormFile("file", "export.csv")
		require.NoError(t, err)
		fmt.Fprint(fw, content)
		require.NoError(t, mw.Close())

		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/tasklogs/classify", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp, body
	}

	resp, body := upload("John Smith")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["validTaskCount"])
	assert.Equal(t, 0.09, body["taskValue"]) // 1 * 0.093 rounded
	assert.Equal(t, false, body["fromCache"])
	assert.Equal(t, float64(3), body["eventCount"])

	byType, ok := body["validByType"].([]any)
	require.True(t, ok)
	require.Len(t, byType, 1)
	putaway := byType[0].(map[string]any)
	assert.Equal(t, "Putaway", putaway["taskType"])
	assert.Equal(t, float64(10), putaway["targetSeconds"])

	// Same file for a different actor hits the parse cache.
	resp, body = upload("Jane Doe")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["validTaskCount"])
	assert.Equal(t, true, body["fromCache"])

	byType, ok = body["validByType"].([]any)
	require.True(t, ok)
	require.Len(t, byType, 1)
	repl := byType[0].(map[string]any)
	assert.Equal(t, "Manual Replenishment", repl["taskType"])
	assert.Equal(t, float64(30), repl["targetSeconds"])
}

func TestClassifyTaskLog_RequiresActorName(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "export.csv")
	require.NoError(t, err)
	fmt.Fprint(fw, "Type;LastAssociationTime;AlterationTime;Completed;ActorName\n")
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/tasklogs/classify", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
