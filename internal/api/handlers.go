/**
 * @description
 * This file contains the HTTP handlers for the fund-transfer-service's API
 * endpoints. Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP response.
 * They act as the bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bingbank/fund-transfer-service/internal/app"
	"github.com/bingbank/fund-transfer-service/internal/domain"
	"github.com/bingbank/fund-transfer-service/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferHandlers holds the application service that handlers will use.
type TransferHandlers struct {
	service *app.Service
}

// NewTransferHandlers creates a new instance of TransferHandlers.
func NewTransferHandlers(service *app.Service) *TransferHandlers {
	return &TransferHandlers{service: service}
}

// transferResponse is sent back to the client after a transfer request has been
// accepted, and for history/lookup reads.
type transferResponse struct {
	TransferID          string          `json:"transfer_id"`
	CustomerID          string          `json:"customer_id"`
	SourceAccountNumber string          `json:"source_account_number"`
	TargetAccountNumber string          `json:"target_account_number"`
	Amount              decimal.Decimal `json:"amount"`
	Remarks             string          `json:"remarks,omitempty"`
	Status              string          `json:"status"`
	CreatedAt           time.Time       `json:"created_at"`
	Message             string          `json:"message,omitempty"`
}

func buildTransferResponse(t *domain.Transfer, message string) transferResponse {
	return transferResponse{
		TransferID:          t.ID.String(),
		CustomerID:          t.CustomerID.String(),
		SourceAccountNumber: t.SourceAccountNumber,
		TargetAccountNumber: t.TargetAccountNumber,
		Amount:              t.Amount,
		Remarks:             t.Remarks,
		Status:              string(t.Status),
		CreatedAt:           t.CreatedAt,
		Message:             message,
	}
}

// InitiateTransferHandler handles requests to start a new fund transfer.
func (h *TransferHandlers) InitiateTransferHandler(w http.ResponseWriter, r *http.Request) {
	customerIDStr, ok := GetCustomerID(r.Context())
	if !ok {
		http.Error(w, "Could not get customer ID from context", http.StatusInternalServerError)
		return
	}
	customerID, err := uuid.Parse(customerIDStr)
	if err != nil {
		log.Printf("level=warn component=api endpoint=initiate_transfer outcome=reject reason=invalid_customer_id customer_id=%s", customerIDStr)
		http.Error(w, "Invalid customer ID format", http.StatusBadRequest)
		return
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=initiate_transfer outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.SourceAccountNumber == "" || req.TargetAccountNumber == "" {
		http.Error(w, "Source and target account numbers are required", http.StatusBadRequest)
		return
	}

	transfer, err := h.service.InitiateTransfer(r.Context(), customerID, req, r.Header.Get("Authorization"))
	if err != nil {
		log.Printf("level=warn component=api endpoint=initiate_transfer outcome=failed customer_id=%s err=%v", customerID, err)
		switch {
		case errors.Is(err, app.ErrInvalidAmount), errors.Is(err, app.ErrSameAccount):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, app.ErrTargetAccountNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, app.ErrUnauthorizedSourceAccount):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, app.ErrInsufficientFunds):
			http.Error(w, err.Error(), http.StatusPaymentRequired)
		case errors.Is(err, app.ErrRateLimited):
			http.Error(w, err.Error(), http.StatusTooManyRequests)
		default:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	log.Printf("level=info component=api endpoint=initiate_transfer outcome=accepted transfer_id=%s customer_id=%s", transfer.ID, customerID)
	h.writeJSON(w, http.StatusCreated, buildTransferResponse(transfer, "Transfer initiated successfully and is being processed"))
}

// TransferHistoryHandler returns a customer's transfers, newest first.
func (h *TransferHandlers) TransferHistoryHandler(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "customerId"))
	if err != nil {
		http.Error(w, "Invalid customer ID format", http.StatusBadRequest)
		return
	}

	transfers, err := h.service.GetTransferHistory(r.Context(), customerID)
	if err != nil {
		log.Printf("level=error component=api endpoint=transfer_history customer_id=%s err=%v", customerID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	responses := make([]transferResponse, 0, len(transfers))
	for i := range transfers {
		responses = append(responses, buildTransferResponse(&transfers[i], ""))
	}
	h.writeJSON(w, http.StatusOK, responses)
}

// GetTransferHandler returns a single transfer by its identifier.
func (h *TransferHandlers) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	transferID, err := uuid.Parse(chi.URLParam(r, "transferId"))
	if err != nil {
		http.Error(w, "Invalid transfer ID format", http.StatusBadRequest)
		return
	}

	transfer, err := h.service.GetTransferByID(r.Context(), transferID)
	if err != nil {
		if errors.Is(err, store.ErrTransferNotFound) {
			http.Error(w, "Transfer not found", http.StatusNotFound)
			return
		}
		log.Printf("level=error component=api endpoint=get_transfer transfer_id=%s err=%v", transferID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, buildTransferResponse(transfer, ""))
}

func (h *TransferHandlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}
