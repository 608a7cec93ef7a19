package handler

import (
	"encoding/json"
	"net/http"

	"sodaclub-ledger-api/internal/middleware"
	"sodaclub-ledger-api/internal/service"
	"sodaclub-ledger-api/pkg/apierror"
	"sodaclub-ledger-api/pkg/response"

	"github.com/shopspring/decimal"
)

// LedgerHandler handles the member-facing ledger endpoints.
type LedgerHandler struct {
	ledger *service.LedgerService
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(ledger *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// Summary handles GET /me/summary
func (h *LedgerHandler) Summary(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMemberFromContext(r.Context())

	summary, err := h.ledger.Summary(r.Context(), member.Identifier)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.OK(w, summary)
}

// Transactions handles GET /me/transactions
func (h *LedgerHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMemberFromContext(r.Context())

	txs, err := h.ledger.MemberTransactions(r.Context(), member.Identifier)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.OK(w, txs)
}

// PurchaseRequest represents the request body for a purchase.
type PurchaseRequest struct {
	Quantity int64 `json:"quantity"`
}

// RecordPurchase handles POST /me/purchases
func (h *LedgerHandler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMemberFromContext(r.Context())

	req := PurchaseRequest{Quantity: 1} // grabbing one bottle is the default
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, apierror.BadRequest("invalid request body"))
			return
		}
	}
	defer r.Body.Close()

	tx, err := h.ledger.RecordPurchase(r.Context(), member, req.Quantity)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.Created(w, tx)
}

// PaymentRequest represents the request body for a payment report.
// Amount stays a json.Number until it parses into a decimal, so no
// float rounding ever touches it.
type PaymentRequest struct {
	Amount json.Number `json:"amount"`
	Note   string      `json:"note"`
}

// ReportPayment handles POST /me/payments
func (h *LedgerHandler) ReportPayment(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMemberFromContext(r.Context())

	var req PaymentRequest
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

	tx, err := h.ledger.ReportPayment(r.Context(), member, amount, req.Note)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}
	response.Created(w, tx)
}
