package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fdg312/nutriplan/internal/fetch"
	"github.com/fdg312/nutriplan/internal/foodlog"
	"github.com/fdg312/nutriplan/internal/logging"
)

// RemoteProvider calls the nutrition service through the fetch client.
type RemoteProvider struct {
	client *fetch.Client
	logger zerolog.Logger
}

func NewRemoteProvider(client *fetch.Client) *RemoteProvider {
	return &RemoteProvider{
		client: client,
		logger: logging.WithComponent("enrichment"),
	}
}

// envelope is the {success, error, message} wrapper every endpoint uses.
type envelope struct {
	Success *bool           `json:"success"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

func (e envelope) text() string {
	if len(e.Error) > 0 {
		var s string
		if err := json.Unmarshal(e.Error, &s); err == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(e.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
	}
	return e.Message
}

// do runs req and checks the envelope. Exhaustion and 5xx responses without
// an envelope map to ErrUnavailable; success:false and other non-2xx
// statuses map to *RemoteRejectedError.
func (p *RemoteProvider) do(ctx context.Context, req fetch.Request, out any) error {
	res := p.client.Do(ctx, req)
	if err := res.Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", req.Path, ErrUnavailable, err)
	}
	resp := res.Response

	var env envelope
	envErr := json.Unmarshal(resp.Body, &env)
	if envErr == nil && env.Success != nil && !*env.Success {
		return &RemoteRejectedError{Path: req.Path, StatusCode: resp.StatusCode, Message: nonEmpty(env.text(), http.StatusText(resp.StatusCode))}
	}
	if !resp.OK() {
		if resp.StatusCode >= 500 && (envErr != nil || env.text() == "") {
			return fmt.Errorf("%s: %w: status %d from %s", req.Path, ErrUnavailable, resp.StatusCode, resp.Base)
		}
		msg := http.StatusText(resp.StatusCode)
		if envErr == nil {
			msg = nonEmpty(env.text(), msg)
		}
		return &RemoteRejectedError{Path: req.Path, StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return &RemoteRejectedError{Path: req.Path, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return nil
}

func (p *RemoteProvider) post(ctx context.Context, path string, payload, out any) error {
	req, err := fetch.JSONRequest(path, payload)
	if err != nil {
		return err
	}
	return p.do(ctx, req, out)
}

func (p *RemoteProvider) DailyMealPlan(ctx context.Context, req MealPlanRequest) (MealPlan, error) {
	var plan MealPlan
	if err := p.post(ctx, PathDailyMealPlan, req, &plan); err != nil {
		return MealPlan{}, err
	}
	if len(plan.Meals) == 0 {
		return MealPlan{}, &RemoteRejectedError{Path: PathDailyMealPlan, StatusCode: http.StatusOK, Message: "meal plan is empty"}
	}
	if plan.Date == "" {
		plan.Date = req.Date
	}
	return plan, nil
}

type recipeResponse struct {
	Recipe json.RawMessage `json:"recipe"`
}

// Recipe asks the AI generator first. Unless req.Strict is set, an
// unavailable generator falls back to the simple recipe endpoint.
func (p *RemoteProvider) Recipe(ctx context.Context, req RecipeRequest) (Recipe, error) {
	var out recipeResponse
	err := p.post(ctx, PathRecipe, req, &out)
	if err == nil {
		return recipeFrom(PathRecipe, "ai", out)
	}
	if req.Strict || !errors.Is(err, ErrUnavailable) {
		return Recipe{}, err
	}

	p.logger.Warn().Err(err).Msg("recipe generator unavailable, trying simple recipe")
	out = recipeResponse{}
	if err := p.do(ctx, fetch.Request{Method: http.MethodGet, Path: simpleRecipePath(req)}, &out); err != nil {
		return Recipe{}, err
	}
	return recipeFrom(PathSimpleRecipe, "simple", out)
}

func recipeFrom(path, source string, out recipeResponse) (Recipe, error) {
	if len(out.Recipe) == 0 || string(out.Recipe) == "null" {
		return Recipe{}, &RemoteRejectedError{Path: path, StatusCode: http.StatusOK, Message: "response has no recipe"}
	}
	return Recipe{Source: source, Body: out.Recipe}, nil
}

func simpleRecipePath(req RecipeRequest) string {
	q := url.Values{}
	t := req.Targets
	for _, kv := range []struct {
		key string
		val int
	}{
		{"calories", t.Calories},
		{"protein", t.Protein},
		{"carbs", t.Carbs},
		{"fat", t.Fat},
	} {
		if kv.val > 0 {
			q.Set(kv.key, strconv.Itoa(kv.val))
		}
	}
	if len(req.Ingredients) > 0 {
		q.Set("ingredients", strings.Join(req.Ingredients, ","))
	}
	if req.MealType != "" {
		q.Set("mealType", req.MealType)
	}
	if len(q) == 0 {
		return PathSimpleRecipe
	}
	return PathSimpleRecipe + "?" + q.Encode()
}

func (p *RemoteProvider) CustomizeMeal(ctx context.Context, req CustomizeMealRequest) (CustomizedMeal, error) {
	var out struct {
		NewMealDescription string `json:"newMealDescription"`
	}
	if err := p.post(ctx, PathCustomizeMeal, req, &out); err != nil {
		return CustomizedMeal{}, err
	}
	if strings.TrimSpace(out.NewMealDescription) == "" {
		return CustomizedMeal{}, &RemoteRejectedError{Path: PathCustomizeMeal, StatusCode: http.StatusOK, Message: "response has no meal description"}
	}
	return CustomizedMeal{Description: out.NewMealDescription, Source: "remote"}, nil
}

func (p *RemoteProvider) UpdateMeal(ctx context.Context, u MealUpdate) error {
	return p.post(ctx, PathUpdateMeal, u, nil)
}

func (p *RemoteProvider) SyncFoodEntry(ctx context.Context, userID string, entry foodlog.Entry) error {
	return p.post(ctx, PathLogFoodEntry, map[string]any{
		"userId": userID,
		"entry":  entry,
	}, nil)
}

func (p *RemoteProvider) NotifyReevaluation(ctx context.Context, n ReevaluationNotice) error {
	return p.post(ctx, PathReevaluatePlan, n, nil)
}

func (p *RemoteProvider) ChatAdjust(ctx context.Context, req ChatRequest) (ChatReply, error) {
	var out struct {
		Response          string `json:"response"`
		Reply             string `json:"reply"`
		SuggestedCalories int    `json:"suggested_calories"`
	}
	if err := p.post(ctx, PathChatAdjust, req, &out); err != nil {
		return ChatReply{}, err
	}
	text := nonEmpty(out.Response, out.Reply)
	if text == "" {
		return ChatReply{}, &RemoteRejectedError{Path: PathChatAdjust, StatusCode: http.StatusOK, Message: "empty reply"}
	}
	return ChatReply{Response: text, SuggestedCalories: out.SuggestedCalories, Source: "remote"}, nil
}

func nonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
