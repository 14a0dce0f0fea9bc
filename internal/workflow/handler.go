package workflow

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tradewind-bank/tradewind/internal/observability"
	"github.com/tradewind-bank/tradewind/internal/platform/httpx"
	"github.com/tradewind-bank/tradewind/internal/rbac"
	"github.com/tradewind-bank/tradewind/internal/shared"
)

// Handler wires HTTP endpoints for the maker-checker workflow.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	rbac        rbac.Middleware
	metrics     *observability.Metrics
	idempotency *shared.IdempotencyStore
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware, metrics *observability.Metrics, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		rbac:        rbacMW,
		metrics:     metrics,
		idempotency: idempotency,
		validator:   validator.New(),
	}
}

// claimIdempotencyKey reserves the request's Idempotency-Key header, if any.
// It returns false after writing the response when the key was already used.
// The returned release func rolls the claim back so a failed request can be
// retried with the same key.
func (h *Handler) claimIdempotencyKey(w http.ResponseWriter, r *http.Request, module string) (func(), bool) {
	key := r.Header.Get("Idempotency-Key")
	if key == "" || h.idempotency == nil {
		return func() {}, true
	}
	if err := h.idempotency.CheckAndInsert(r.Context(), key, module); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.Problem(w, http.StatusConflict, "Duplicate request", err.Error())
			return nil, false
		}
		h.logger.Error("idempotency check", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "unexpected failure")
		return nil, false
	}
	return func() {
		if err := h.idempotency.Delete(r.Context(), key); err != nil {
			h.logger.Warn("release idempotency key", slog.Any("error", err))
		}
	}, true
}

// MountRoutes registers workflow routes. Per-domain permissions are enforced
// by the service (they depend on the transaction's product); route-level
// gates cover the queue surface.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", h.listTransactions)
		r.Post("/", h.createTransaction)
		r.Get("/{id}", h.getTransaction)
		r.Patch("/{id}", h.editTransaction)
		r.Delete("/{id}", h.deleteTransaction)
		r.Post("/{id}/resubmit", h.resubmitTransaction)
		r.Post("/{id}/duplicate", h.duplicateTransaction)
		r.Post("/{id}/cancel", h.cancelTransaction)
		r.With(h.rbac.Require(shared.PermQueueComplete)).Post("/{id}/complete", h.completeTransaction)
	})
	r.Route("/queue", func(r chi.Router) {
		r.With(h.rbac.Require(shared.PermQueueView)).Get("/", h.listQueue)
		r.With(h.rbac.RequireAny(shared.PermQueueView, shared.PermDashboardView)).Get("/badges", h.queueBadges)
		r.Post("/{id}/decide", h.decideQueueItem)
	})
}

type createRequest struct {
	Product      string  `json:"product" validate:"required"`
	CustomerID   string  `json:"customer_id" validate:"required"`
	CustomerName string  `json:"customer_name" validate:"required"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	Currency     string  `json:"currency" validate:"required,len=3"`
	Description  string  `json:"description"`
	Priority     string  `json:"priority" validate:"omitempty,oneof=normal high urgent"`
	Comments     string  `json:"comments"`
}

type editRequest struct {
	CustomerID   *string  `json:"customer_id"`
	CustomerName *string  `json:"customer_name"`
	Amount       *float64 `json:"amount" validate:"omitempty,gt=0"`
	Currency     *string  `json:"currency" validate:"omitempty,len=3"`
	Description  *string  `json:"description"`
	Priority     *string  `json:"priority" validate:"omitempty,oneof=normal high urgent"`
}

type resubmitRequest struct {
	Comments string `json:"comments"`
}

type decideRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject send_back"`
	Comments string `json:"comments"`
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.ErrActorMissing.Error())
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed request body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation failed", err.Error())
		return
	}
	release, ok := h.claimIdempotencyKey(w, r, "workflow.create")
	if !ok {
		return
	}
	tx, item, err := h.service.Create(r.Context(), actor, CreateInput{
		Product:      ProductType(req.Product),
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Description:  req.Description,
		Priority:     Priority(req.Priority),
		Comments:     req.Comments,
	})
	if err != nil {
		release()
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"transaction": tx, "queue_item": item})
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	actor, txID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	tx, err := h.service.Get(r.Context(), actor, txID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transaction": tx})
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.ErrActorMissing.Error())
		return
	}
	filter := TransactionFilter{
		Status:  Status(r.URL.Query().Get("status")),
		Search:  r.URL.Query().Get("search"),
		MakerID: r.URL.Query().Get("maker_id"),
	}
	if product := r.URL.Query().Get("product"); product != "" {
		pt, err := ParseProductType(product)
		if err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation failed", err.Error())
			return
		}
		filter.Products = []ProductType{pt}
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := shared.NewPagination(page, perPage, 0)
	filter.Limit = pagination.PerPage
	filter.Offset = pagination.Offset()

	txs, total, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"pagination":   shared.NewPagination(pagination.Page, pagination.PerPage, total),
	})
}

func (h *Handler) editTransaction(w http.ResponseWriter, r *http.Request) {
	actor, txID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req editRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed request body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation failed", err.Error())
		return
	}
	input := EditInput{
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Description:  req.Description,
	}
	if req.Priority != nil {
		priority := Priority(*req.Priority)
		input.Priority = &priority
	}
	tx, err := h.service.Edit(r.Context(), actor, txID, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transaction": tx})
}

func (h *Handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	actor, txID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, txID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resubmitTransaction(w http.ResponseWriter, r *http.Request) {
	actor, txID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req resubmitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed request body", err.Error())
		return
	}
	release, ok := h.claimIdempotencyKey(w, r, "workflow.resubmit")
	if !ok {
		return
	}
	tx, item, err := h.service.Resubmit(r.Context(), actor, txID, req.Comments)
	if err != nil {
		release()
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transaction": tx, "queue_item": item})
}

func (h *Handler) duplicateTransaction(w http.ResponseWriter, r *http.Request) {
	actor, txID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	dup, err := h.service.Duplicate(r.Context(), actor, txID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"transaction": dup})
}

func (h *Handler) cancelTransaction(w http.ResponseWriter, r *http.Request) {
	actor, txID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	tx, err := h.service.Cancel(r.Context(), actor, txID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transaction": tx})
}

func (h *Handler) completeTransaction(w http.ResponseWriter, r *http.Request) {
	actor, txID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	tx, err := h.service.Complete(r.Context(), actor, txID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transaction": tx})
}

func (h *Handler) listQueue(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.ErrActorMissing.Error())
		return
	}
	filter := QueueFilter{
		Status:     QueueStatus(r.URL.Query().Get("status")),
		MakerID:    r.URL.Query().Get("maker_id"),
		ActiveOnly: r.URL.Query().Get("all") == "",
	}
	if product := r.URL.Query().Get("product"); product != "" {
		pt, err := ParseProductType(product)
		if err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation failed", err.Error())
			return
		}
		filter.Product = pt
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := shared.NewPagination(page, perPage, 0)
	filter.Limit = pagination.PerPage
	filter.Offset = pagination.Offset()

	items, total, err := h.service.ListQueue(r.Context(), actor, filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(pagination.Page, pagination.PerPage, total),
	})
}

func (h *Handler) queueBadges(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.ErrActorMissing.Error())
		return
	}
	counts, err := h.service.PendingCounts(r.Context(), actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pending": counts})
}

func (h *Handler) decideQueueItem(w http.ResponseWriter, r *http.Request) {
	actor, itemID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req decideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed request body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation failed", err.Error())
		return
	}
	item, tx, err := h.service.Decide(r.Context(), actor, itemID, Decision(req.Decision), req.Comments)
	if err != nil {
		h.metrics.ObserveDecision(req.Decision, errorFamily(err))
		h.respondError(w, r, err)
		return
	}
	h.metrics.ObserveDecision(req.Decision, "applied")
	httpx.JSON(w, http.StatusOK, map[string]any{"queue_item": item, "transaction": tx})
}

func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request) (rbac.Actor, uuid.UUID, bool) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.ErrActorMissing.Error())
		return rbac.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid identifier", err.Error())
		return rbac.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

// respondError maps the workflow error taxonomy onto problem responses. The
// segregation-of-duties case keeps a distinct title so clients can steer the
// user towards a different approver rather than an access request.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not found", err.Error())
	case errors.Is(err, ErrSegregationOfDuties):
		httpx.Problem(w, http.StatusForbidden, "Segregation of duties violation", err.Error())
	case errors.Is(err, ErrUnauthorized):
		httpx.Problem(w, http.StatusForbidden, "Permission denied", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation failed", err.Error())
	case errors.Is(err, ErrAlreadyDecided):
		httpx.Problem(w, http.StatusConflict, "Decision already recorded", err.Error())
	case errors.Is(err, ErrIllegalTransition):
		httpx.Problem(w, http.StatusConflict, "Illegal transition", err.Error())
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("workflow request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "unexpected failure")
	}
}

func errorFamily(err error) string {
	switch {
	case errors.Is(err, ErrSegregationOfDuties):
		return "segregation_violation"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrAlreadyDecided):
		return "already_decided"
	case errors.Is(err, ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
