package subscriptions

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/terminwatch/terminwatch/internal/checker"
	"github.com/terminwatch/terminwatch/internal/domain"
	"github.com/terminwatch/terminwatch/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrSubscriptionNotFound, Status: http.StatusNotFound, Message: "subscription not found"},
	{Error: ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
	{Error: ErrSubscriptionExists, Status: http.StatusConflict, Message: "subscription already active for this service"},
	{Error: ErrServiceNotFound, Status: http.StatusNotFound, Message: "service not found"},
	{Error: ErrServiceInactive, Status: http.StatusBadRequest, Message: "service is not active"},
	{Error: ErrIntervalTooShort, Status: http.StatusBadRequest},
	{Error: ErrQuantityInvalid, Status: http.StatusBadRequest},
	{Error: checker.ErrSubscriptionNotFound, Status: http.StatusNotFound, Message: "subscription not found"},
	{Error: checker.ErrSubscriptionInactive, Status: http.StatusBadRequest, Message: "subscription is not active"},
	{Error: checker.ErrCheckInFlight, Status: http.StatusConflict, Message: "a check is already running for this subscription"},
}

// CheckRunner triggers an immediate check for one subscription.
type CheckRunner interface {
	CheckNow(ctx context.Context, subscriptionID string) (*domain.CheckResult, error)
}

// Handler handles HTTP requests for the subscriptions module.
type Handler struct {
	service   *Service
	runner    CheckRunner
	validator *validator.Validate
}

// NewHandler creates a subscriptions handler. runner may be nil to disable
// the manual-check endpoint.
func NewHandler(service *Service, runner CheckRunner) *Handler {
	return &Handler{
		service:   service,
		runner:    runner,
		validator: validator.New(),
	}
}

// RegisterRoutes registers subscription routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/", h.CreateSubscription)
		r.Get("/", h.ListSubscriptions)
		r.Delete("/{id}", h.DeactivateSubscription)
		r.Get("/{id}/latest", h.LatestCheck)
		r.Post("/{id}/check", h.CheckNow)
	})
	r.Get("/services", h.ListServices)
}

// CreateSubscriptionRequest represents request body for creating a subscription.
type CreateSubscriptionRequest struct {
	ChatID          int64  `json:"chat_id" validate:"required"`
	Username        string `json:"username"`
	ServiceID       string `json:"service_id" validate:"required,uuid"`
	IntervalSeconds int    `json:"interval_seconds" validate:"required,min=1"`
	Quantity        int    `json:"quantity" validate:"required,min=1,max=10"`
}

// CreateSubscription handles POST /subscriptions.
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	sub, err := h.service.Create(r.Context(), CreateInput{
		ChatID:    req.ChatID,
		Username:  req.Username,
		ServiceID: req.ServiceID,
		Interval:  time.Duration(req.IntervalSeconds) * time.Second,
		Quantity:  req.Quantity,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, sub)
}

// ListSubscriptions handles GET /subscriptions?chat_id=N.
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.URL.Query().Get("chat_id"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "chat_id query parameter is required")
		return
	}

	subs, err := h.service.ListByChatID(r.Context(), chatID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	if subs == nil {
		subs = []domain.Subscription{}
	}

	httputil.Success(w, http.StatusOK, subs)
}

// DeactivateSubscription handles DELETE /subscriptions/{id}.
func (h *Handler) DeactivateSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LatestCheck handles GET /subscriptions/{id}/latest.
func (h *Handler) LatestCheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.service.LatestCheck(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	if result == nil {
		httputil.Error(w, http.StatusNotFound, "no checks recorded yet")
		return
	}

	httputil.Success(w, http.StatusOK, result)
}

// CheckNow handles POST /subscriptions/{id}/check.
func (h *Handler) CheckNow(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "manual checks are disabled")
		return
	}

	id := chi.URLParam(r, "id")

	result, err := h.runner.CheckNow(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, result)
}

// ListServices handles GET /services.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ListServices(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, services)
}
