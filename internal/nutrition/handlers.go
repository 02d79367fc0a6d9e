package nutrition

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/fdg312/nutriplan/internal/enrichment"
	"github.com/fdg312/nutriplan/internal/foods"
	"github.com/fdg312/nutriplan/internal/plans"
	"github.com/fdg312/nutriplan/internal/reports"
	"github.com/fdg312/nutriplan/internal/userctx"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Handler handles HTTP requests for nutrition plans.
type Handler struct {
	service *Service
}

// NewHandler creates a new nutrition handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// userID returns the authenticated user, or the shared guest id when the
// request carries no token.
func userID(r *http.Request) string {
	if id, ok := userctx.GetUserID(r.Context()); ok && id != "" {
		return id
	}
	return GuestUserPrefix
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	return decode(w, r, v, false)
}

// decodeOptionalBody accepts an empty body and leaves v untouched.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	return decode(w, r, v, true)
}

func decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
	return false
}

// HandleGenerate handles POST /v1/nutrition/plans
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GeneratePlanRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.GeneratePlan(r.Context(), userID(r), req)
	if err != nil {
		writeServiceError(w, err, "Failed to generate nutrition plan")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// HandleList handles GET /v1/nutrition/plans
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPlans(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err, "Failed to list nutrition plans")
		return
	}
	if list == nil {
		list = []plans.Plan{}
	}
	writeJSON(w, http.StatusOK, ListPlansResponse{Plans: list})
}

// HandleLatest handles GET /v1/nutrition/plans/latest
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetLatestPlan(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err, "Failed to get nutrition plan")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSelect handles POST /v1/nutrition/plans/{id}/select
func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.SelectPlan(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, "Failed to select nutrition plan")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDelete handles DELETE /v1/nutrition/plans/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePlan(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err, "Failed to delete nutrition plan")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReevaluate handles POST /v1/nutrition/plans/reevaluate
func (h *Handler) HandleReevaluate(w http.ResponseWriter, r *http.Request) {
	var req ReevaluateRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	resp, err := h.service.ReevaluatePlan(r.Context(), userID(r), req)
	if err != nil {
		writeServiceError(w, err, "Failed to re-evaluate nutrition plan")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHistoricalTargets handles GET /v1/nutrition/plans/{id}/targets
func (h *Handler) HandleHistoricalTargets(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	targets, err := h.service.GetHistoricalTargets(r.Context(), userID(r), planID)
	if err != nil {
		writeServiceError(w, err, "Failed to get historical targets")
		return
	}
	writeJSON(w, http.StatusOK, HistoricalTargetsResponse{PlanID: planID, Targets: targets})
}

// HandleReportPDF handles GET /v1/nutrition/plans/{id}/report.pdf
func (h *Handler) HandleReportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, reports.FormatPDF, "application/pdf", "report.pdf")
}

// HandleTargetsCSV handles GET /v1/nutrition/plans/{id}/targets.csv
func (h *Handler) HandleTargetsCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, reports.FormatCSV, "text/csv; charset=utf-8", "targets.csv")
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, format, contentType, name string) {
	planID := r.PathValue("id")
	data, err := h.service.ExportPlan(r.Context(), userID(r), planID, format)
	if err != nil {
		writeServiceError(w, err, "Failed to generate report")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="nutrition-%s-%s"`, planID, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HandleMealPlan handles POST /v1/nutrition/meal-plan
func (h *Handler) HandleMealPlan(w http.ResponseWriter, r *http.Request) {
	var req MealPlanRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	resp, err := h.service.GenerateDailyMealPlan(r.Context(), userID(r), req.Date)
	if err != nil {
		writeServiceError(w, err, "Failed to generate meal plan")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRecipe handles POST /v1/nutrition/recipe
func (h *Handler) HandleRecipe(w http.ResponseWriter, r *http.Request) {
	var req enrichment.RecipeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.MealType) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "mealType is required")
		return
	}

	recipe, err := h.service.GenerateRecipe(r.Context(), userID(r), req)
	if err != nil {
		writeServiceError(w, err, "Failed to generate recipe")
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// HandleCustomizeMeal handles POST /v1/nutrition/meal-plan/customize
func (h *Handler) HandleCustomizeMeal(w http.ResponseWriter, r *http.Request) {
	var req CustomizeMealRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.CustomizeMeal(r.Context(), userID(r), req)
	if err != nil {
		writeServiceError(w, err, "Failed to customize meal")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleChat handles POST /v1/nutrition/chat
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	reply, err := h.service.ChatAdjust(r.Context(), userID(r), req.Message)
	if err != nil {
		writeServiceError(w, err, "Failed to process message")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// HandleLogFood handles POST /v1/nutrition/log
func (h *Handler) HandleLogFood(w http.ResponseWriter, r *http.Request) {
	var req LogFoodRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.LogFoodEntry(r.Context(), userID(r), req)
	if err != nil {
		writeServiceError(w, err, "Failed to log food")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// HandleFoodLog handles GET /v1/nutrition/log?date=
func (h *Handler) HandleFoodLog(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.FoodLog(r.Context(), userID(r), r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, err, "Failed to get food log")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleServings handles GET /v1/foods/servings?macro=&grams=&diet=&limit=
func (h *Handler) HandleServings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	macro, ok := foods.ParseMacro(q.Get("macro"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "macro must be protein, carbs or fat")
		return
	}
	grams, err := strconv.ParseFloat(q.Get("grams"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "grams must be a number")
		return
	}
	opts := foods.Options{}
	if raw := q.Get("diet"); raw != "" {
		opts.Diet = foods.TagsForPreferences(strings.Split(raw, ",")...)
	}
	if raw := q.Get("limit"); raw != "" {
		if opts.MaxResults, err = strconv.Atoi(raw); err != nil || opts.MaxResults < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
	}

	suggestions, err := h.service.foods.SolveServings(macro, grams, opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if suggestions == nil {
		suggestions = []foods.ServingSuggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"macro":       macro,
		"grams":       grams,
		"suggestions": suggestions,
	})
}

// writeServiceError maps service errors to HTTP statuses. Unexpected errors
// are reported with message.
func writeServiceError(w http.ResponseWriter, err error, message string) {
	var rejected *enrichment.RemoteRejectedError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", strings.TrimPrefix(err.Error(), ErrInvalidRequest.Error()+": "))
	case errors.Is(err, ErrNoPlan):
		writeError(w, http.StatusNotFound, "plan_not_found", "No nutrition plan found")
	case errors.Is(err, plans.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, "plan_not_found", "Nutrition plan not found")
	case errors.Is(err, reports.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, "invalid_request", "Unsupported report format")
	case errors.Is(err, ErrRemoteUnavailable):
		writeError(w, http.StatusServiceUnavailable, "remote_unavailable", "Nutrition service is unavailable")
	case errors.As(err, &rejected):
		writeError(w, http.StatusBadGateway, "remote_rejected", rejected.Message)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", message)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
