package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"sodaclub-ledger-api/internal/middleware"
	"sodaclub-ledger-api/internal/model"
	"sodaclub-ledger-api/internal/service"
	"sodaclub-ledger-api/pkg/apierror"
	"sodaclub-ledger-api/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// AdminHandler handles the admin-only ledger management endpoints.
type AdminHandler struct {
	ledger   *service.LedgerService
	approval *service.ApprovalService
	registry *service.RegistryService
	members  *service.MemberService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(
	ledger *service.LedgerService,
	approval *service.ApprovalService,
	registry *service.RegistryService,
	members *service.MemberService,
) *AdminHandler {
	return &AdminHandler{
		ledger:   ledger,
		approval: approval,
		registry: registry,
		members:  members,
	}
}

// PendingPayments handles GET /admin/payments/pending
func (h *AdminHandler) PendingPayments(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetMemberFromContext(r.Context())

	pending, err := h.approval.PendingPayments(r.Context(), actor)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.OK(w, pending)
}

// ApproveResponse tells the admin what their approval did. A concurrent
// or repeated approval reports already_settled=true and is not an error.
type ApproveResponse struct {
	ID             int64 `json:"id"`
	AlreadySettled bool  `json:"already_settled"`
}

// ApprovePayment handles POST /admin/payments/{id}/approve
func (h *AdminHandler) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetMemberFromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid transaction id"))
		return
	}

	alreadySettled, err := h.approval.Approve(r.Context(), actor, id)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.OK(w, ApproveResponse{ID: id, AlreadySettled: alreadySettled})
}

// AdjustmentRequest represents the request body for a balance adjustment.
type AdjustmentRequest struct {
	MemberIdentifier string      `json:"member_identifier"`
	Amount           json.Number `json:"amount"`
	Note             string      `json:"note"`
}

// RecordAdjustment handles POST /admin/adjustments
func (h *AdminHandler) RecordAdjustment(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetMemberFromContext(r.Context())

	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		response.Error(w, apierror.ValidationError("invalid request", apierror.FieldError{
			Field:   "amount",
			Message: "must be a decimal number",
		}))
		return
	}

	tx, err := h.ledger.RecordAdjustment(r.Context(), actor, req.MemberIdentifier, amount, req.Note)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.Created(w, tx)
}

// PriceResponse carries the current unit price.
type PriceResponse struct {
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// GetPrice handles GET /admin/price
func (h *AdminHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	response.OK(w, PriceResponse{UnitPrice: h.registry.UnitPrice(r.Context())})
}

// PriceRequest represents the request body for a price update.
type PriceRequest struct {
	UnitPrice json.Number `json:"unit_price"`
}

// SetPrice handles PUT /admin/price
func (h *AdminHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetMemberFromContext(r.Context())

	var req PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	price, err := decimal.NewFromString(req.UnitPrice.String())
	if err != nil {
		response.Error(w, apierror.ValidationError("invalid request", apierror.FieldError{
			Field:   "unit_price",
			Message: "must be a decimal number",
		}))
		return
	}

	if err := h.registry.SetUnitPrice(r.Context(), actor, price); err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.OK(w, PriceResponse{UnitPrice: price})
}

// StockResponse carries the recomputed stock level.
type StockResponse struct {
	Stock int64 `json:"stock"`
}

// GetStock handles GET /admin/stock
func (h *AdminHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	stock, err := h.registry.Stock(r.Context())
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.OK(w, StockResponse{Stock: stock})
}

// StockRequest represents the request body for a stock delta.
type StockRequest struct {
	Quantity int64 `json:"quantity"`
}

// AddStock handles POST /admin/stock
func (h *AdminHandler) AddStock(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetMemberFromContext(r.Context())

	var req StockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	delta, err := h.registry.AddStock(r.Context(), actor, req.Quantity)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.Created(w, delta)
}

// Members handles GET /admin/members
func (h *AdminHandler) Members(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetMemberFromContext(r.Context())

	members, err := h.members.Members(r.Context(), actor)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.OK(w, members)
}

// AddMemberRequest represents the request body for adding a member.
type AddMemberRequest struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Secret     string `json:"secret"`
	Role       string `json:"role"`
}

// AddMember handles POST /admin/members
func (h *AdminHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetMemberFromContext(r.Context())

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	member, err := h.members.AddMember(r.Context(), actor, model.Member{
		Identifier: req.Identifier,
		Name:       req.Name,
		Secret:     req.Secret,
		Role:       model.Role(req.Role),
	})
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.Created(w, member)
}

// ActivateMember handles POST /admin/members/{identifier}/activate
func (h *AdminHandler) ActivateMember(w http.ResponseWriter, r *http.Request) {
	h.setMemberStatus(w, r, true)
}

// DeactivateMember handles POST /admin/members/{identifier}/deactivate
func (h *AdminHandler) DeactivateMember(w http.ResponseWriter, r *http.Request) {
	h.setMemberStatus(w, r, false)
}

func (h *AdminHandler) setMemberStatus(w http.ResponseWriter, r *http.Request, activate bool) {
	actor := middleware.GetMemberFromContext(r.Context())
	identifier := chi.URLParam(r, "identifier")

	var err error
	if activate {
		err = h.members.ActivateMember(r.Context(), actor, identifier)
	} else {
		err = h.members.DeactivateMember(r.Context(), actor, identifier)
	}
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}

	status := "active"
	if !activate {
		status = "pending"
	}
	response.OK(w, map[string]string{"identifier": identifier, "status": status})
}
