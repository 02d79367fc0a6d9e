package nutrition

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdg312/nutriplan/internal/enrichment"
	"github.com/fdg312/nutriplan/internal/plans"
	"github.com/fdg312/nutriplan/internal/reports"
	"github.com/fdg312/nutriplan/internal/userctx"
)

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error.Code
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid", fmt.Errorf("%w: bad date", ErrInvalidRequest), http.StatusBadRequest, "invalid_request"},
		{"no plan", ErrNoPlan, http.StatusNotFound, "plan_not_found"},
		{"plan not found", fmt.Errorf("get: %w", plans.ErrPlanNotFound), http.StatusNotFound, "plan_not_found"},
		{"format", fmt.Errorf("%w: xlsx", reports.ErrUnsupportedFormat), http.StatusBadRequest, "invalid_request"},
		{"unavailable", fmt.Errorf("%w: exhausted", ErrRemoteUnavailable), http.StatusServiceUnavailable, "remote_unavailable"},
		{"rejected", &enrichment.RemoteRejectedError{StatusCode: 400, Message: "no"}, http.StatusBadGateway, "remote_rejected"},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeServiceError(w, tt.err, "Failed")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func newTestMux(t *testing.T) (*http.ServeMux, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	h := NewHandler(env.svc)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/nutrition/plans", h.HandleGenerate)
	mux.HandleFunc("GET /v1/nutrition/plans", h.HandleList)
	mux.HandleFunc("POST /v1/nutrition/plans/{id}/select", h.HandleSelect)
	mux.HandleFunc("GET /v1/nutrition/plans/{id}/report.pdf", h.HandleReportPDF)
	mux.HandleFunc("POST /v1/nutrition/meal-plan", h.HandleMealPlan)
	mux.HandleFunc("POST /v1/nutrition/meal-plan/customize", h.HandleCustomizeMeal)
	mux.HandleFunc("POST /v1/nutrition/recipe", h.HandleRecipe)
	mux.HandleFunc("POST /v1/nutrition/chat", h.HandleChat)
	return mux, env
}

func serve(mux http.Handler, method, path, body, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req = req.WithContext(userctx.WithUserID(req.Context(), user))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

const scenarioJSON = `{"plan_name":"Spring cut","profile":{"weight_kg":80,"height_cm":180,"age":28,"gender":"male","activity_level":"moderately_active","fitness_strategy":"cut"}}`

func TestHandlersUseContextUser(t *testing.T) {
	mux, _ := newTestMux(t)

	w := serve(mux, http.MethodPost, "/v1/nutrition/plans", scenarioJSON, "user-9")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created PlanResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "user-9", created.Plan.UserID)
	assert.Equal(t, "Spring cut", created.Plan.PlanName)

	w = serve(mux, http.MethodGet, "/v1/nutrition/plans", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var guest ListPlansResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&guest))
	assert.NotNil(t, guest.Plans)
	assert.Empty(t, guest.Plans)

	w = serve(mux, http.MethodPost, "/v1/nutrition/plans/"+created.Plan.ID+"/select", "", "user-10")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleReportPDF(t *testing.T) {
	mux, _ := newTestMux(t)

	w := serve(mux, http.MethodPost, "/v1/nutrition/plans", scenarioJSON, "user-1")
	require.Equal(t, http.StatusCreated, w.Code)
	var created PlanResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	w = serve(mux, http.MethodGet, "/v1/nutrition/plans/"+created.Plan.ID+"/report.pdf", "", "user-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
}

func TestHandleMealPlanEmptyBody(t *testing.T) {
	mux, env := newTestMux(t)

	w := serve(mux, http.MethodPost, "/v1/nutrition/plans", scenarioJSON, "user-1")
	require.Equal(t, http.StatusCreated, w.Code)

	env.provider.err = fmt.Errorf("%w: down", enrichment.ErrUnavailable)
	w = serve(mux, http.MethodPost, "/v1/nutrition/meal-plan", "", "user-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp MealPlanResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, SourceLocal, resp.Source)
	assert.Equal(t, "2026-03-01", resp.MealPlan.Date)
}

func TestHandleRecipe(t *testing.T) {
	mux, env := newTestMux(t)

	w := serve(mux, http.MethodPost, "/v1/nutrition/recipe", `{"ingredients":["rice"]}`, "user-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.provider.err = fmt.Errorf("%w: exhausted", enrichment.ErrUnavailable)
	w = serve(mux, http.MethodPost, "/v1/nutrition/recipe", `{"mealType":"lunch"}`, "user-1")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "remote_unavailable", errorCode(t, w))
}

func TestHandleCustomizeMeal(t *testing.T) {
	mux, env := newTestMux(t)

	w := serve(mux, http.MethodPost, "/v1/nutrition/plans", scenarioJSON, "user-1")
	require.Equal(t, http.StatusCreated, w.Code)

	body := `{"meal_type":"breakfast","original_meal":"Oats with whey","ingredient_to_replace":"whey","new_ingredient":"tofu"}`
	w = serve(mux, http.MethodPost, "/v1/nutrition/meal-plan/customize", body, "user-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp CustomizeMealResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Oats with tofu", resp.Meal.Description)
	assert.True(t, resp.Saved)

	w = serve(mux, http.MethodPost, "/v1/nutrition/meal-plan/customize", `{"original_meal":"Oats"}`, "user-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", errorCode(t, w))

	env.provider.err = &enrichment.RemoteRejectedError{Path: enrichment.PathCustomizeMeal, StatusCode: 400, Message: "unknown ingredient"}
	w = serve(mux, http.MethodPost, "/v1/nutrition/meal-plan/customize", body, "user-1")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "remote_rejected", errorCode(t, w))
}

func TestHandleChat(t *testing.T) {
	mux, _ := newTestMux(t)

	w := serve(mux, http.MethodPost, "/v1/nutrition/chat", `{"message":"hi"}`, "user-1")
	require.Equal(t, http.StatusOK, w.Code)
	var reply enrichment.ChatReply
	require.NoError(t, json.NewDecoder(w.Body).Decode(&reply))
	assert.Equal(t, "remote says hi", reply.Response)

	w = serve(mux, http.MethodPost, "/v1/nutrition/chat", `{"message":""}`, "user-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
