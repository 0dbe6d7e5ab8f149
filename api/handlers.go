/*
handlers.go - HTTP handlers for the invoice ledger

PURPOSE:
  Exposes the invoice core via REST. Handles HTTP request/response and
  JSON serialization, and delegates everything else to ledger.Service.
  The HTTP layer is a pure marshalling front end: authorization and
  lifecycle rules live in the core.

ENDPOINTS:
  Invoices:
    POST   /api/invoices                      Create (Draft)
    GET    /api/invoices/{id}                 Get by ID
    PUT    /api/invoices/{id}                 Edit (Draft only)
    POST   /api/invoices/{id}/send            Draft -> Sent
    POST   /api/invoices/{id}/acknowledge     Sent -> Acknowledged
    POST   /api/invoices/{id}/pay             Sent/Acknowledged -> Paid
    POST   /api/invoices/{id}/cancel          -> Cancelled
    PUT    /api/invoices/{id}/metadata        Replace metadata

  Identities:
    GET    /api/identities/{id}/invoices          created + received
    GET    /api/identities/{id}/invoices/pending  awaiting_payment + pending_action
    GET    /api/identities/{id}/created           ID list by creator
    GET    /api/identities/{id}/received          ID list by recipient

  Admin:
    POST   /api/admin/initialize              Set admin + settlement asset
    GET    /api/admin/settlement-asset        Read settlement asset
    PUT    /api/admin/settlement-asset        Replace settlement asset

ERROR HANDLING:
  Domain error kinds map to HTTP status:
  - 400: InvalidAmount, malformed JSON
  - 401: Unauthorized
  - 404: NotFound
  - 409: AlreadyExists, InvalidStatus, AlreadyPaid, AlreadyInitialized
  - 412: InvalidToken (settlement asset not configured)
  - 502: PaymentFailed
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/invoice-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the service dependency for all HTTP handlers.
type Handler struct {
	Service *ledger.Service
}

// NewHandler creates a new handler backed by the given service.
func NewHandler(svc *ledger.Service) *Handler {
	return &Handler{Service: svc}
}

// =============================================================================
// INVOICE LIFECYCLE
// =============================================================================

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ID == "" || req.Creator == "" || req.Recipient == "" {
		writeErrorMessage(w, http.StatusBadRequest, "id, creator and recipient are required")
		return
	}

	inv, err := h.Service.Create(r.Context(), ledger.Identity(req.Creator), ledger.CreateInput{
		ID:        req.ID,
		Recipient: ledger.Identity(req.Recipient),
		Amount:    req.Amount,
		Metadata:  req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv))
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) EditInvoice(w http.ResponseWriter, r *http.Request) {
	var req EditInvoiceRequest
	if !decode(w, r, &req) {
		return
	}

	in := ledger.EditInput{Metadata: req.Metadata}
	if req.Recipient != nil {
		recipient := ledger.Identity(*req.Recipient)
		in.Recipient = &recipient
	}
	in.Amount = req.Amount

	inv, err := h.Service.Edit(r.Context(), ledger.Identity(req.Creator), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) SendInvoice(w http.ResponseWriter, r *http.Request) {
	var req ActorRequest
	if !decode(w, r, &req) {
		return
	}
	inv, err := h.Service.Send(r.Context(), ledger.Identity(req.Creator), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) AcknowledgeInvoice(w http.ResponseWriter, r *http.Request) {
	var req AcknowledgeRequest
	if !decode(w, r, &req) {
		return
	}
	inv, err := h.Service.Acknowledge(r.Context(), ledger.Identity(req.Recipient), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) PayInvoice(w http.ResponseWriter, r *http.Request) {
	var req PayRequest
	if !decode(w, r, &req) {
		return
	}
	inv, err := h.Service.Pay(r.Context(), ledger.Identity(req.Recipient), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	var req ActorRequest
	if !decode(w, r, &req) {
		return
	}
	inv, err := h.Service.Cancel(r.Context(), ledger.Identity(req.Creator), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var req UpdateMetadataRequest
	if !decode(w, r, &req) {
		return
	}
	inv, err := h.Service.UpdateMetadata(r.Context(), ledger.Identity(req.Creator), chi.URLParam(r, "id"), req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

// =============================================================================
// QUERY VIEWS
// =============================================================================

func (h *Handler) AllForIdentity(w http.ResponseWriter, r *http.Request) {
	views, err := h.Service.AllForIdentity(r.Context(), ledger.Identity(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewDTO(views))
}

func (h *Handler) PendingForIdentity(w http.ResponseWriter, r *http.Request) {
	views, err := h.Service.PendingForIdentity(r.Context(), ledger.Identity(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewDTO(views))
}

func (h *Handler) ListCreated(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Service.ListByCreator(r.Context(), ledger.Identity(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, IDListDTO{InvoiceIDs: ids})
}

func (h *Handler) ListReceived(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Service.ListByRecipient(r.Context(), ledger.Identity(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, IDListDTO{InvoiceIDs: ids})
}

func toViewDTO(views map[string][]*ledger.Invoice) InvoiceViewDTO {
	out := make(InvoiceViewDTO, len(views))
	for k, invs := range views {
		out[k] = toInvoiceDTOs(invs)
	}
	return out
}

// =============================================================================
// ADMIN
// =============================================================================

func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Admin == "" || req.SettlementAsset == "" {
		writeErrorMessage(w, http.StatusBadRequest, "admin and settlement_asset are required")
		return
	}
	if err := h.Service.Initialize(r.Context(), ledger.Identity(req.Admin), req.SettlementAsset); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetSettlementAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok, err := h.Service.SettlementAsset(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SettlementAssetDTO{Asset: asset, Configured: ok})
}

func (h *Handler) UpdateSettlementAsset(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettlementAssetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Service.UpdateSettlementAsset(r.Context(), ledger.Identity(req.Admin), req.SettlementAsset); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorDTO{Error: msg})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrUnauthorized):
		writeErrorMessage(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrAlreadyExists),
		errors.Is(err, ledger.ErrInvalidStatus),
		errors.Is(err, ledger.ErrAlreadyPaid),
		errors.Is(err, ledger.ErrAlreadyInitialized):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrInvalidToken):
		writeErrorMessage(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, ledger.ErrPaymentFailed):
		writeErrorMessage(w, http.StatusBadGateway, err.Error())
	default:
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}
