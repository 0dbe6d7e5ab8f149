/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/invoice-ledger/ledger"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// InvoiceDTO represents an invoice in API responses.
type InvoiceDTO struct {
	ID                 string            `json:"id"`
	Creator            string            `json:"creator"`
	Recipient          string            `json:"recipient"`
	Amount             int64             `json:"amount"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	Status             string            `json:"status"`
	CreatedAt          time.Time         `json:"created_at"`
	LastUpdatedAt      time.Time         `json:"last_updated_at"`
	PaidAt             *time.Time        `json:"paid_at,omitempty"`
	AcknowledgmentNote string            `json:"acknowledgment_note,omitempty"`
}

func toInvoiceDTO(inv *ledger.Invoice) InvoiceDTO {
	return InvoiceDTO{
		ID:                 inv.ID,
		Creator:            string(inv.Creator),
		Recipient:          string(inv.Recipient),
		Amount:             inv.Amount,
		Metadata:           inv.Metadata,
		Status:             string(inv.Status),
		CreatedAt:          inv.CreatedAt,
		LastUpdatedAt:      inv.LastUpdatedAt,
		PaidAt:             inv.PaidAt,
		AcknowledgmentNote: inv.AcknowledgmentNote,
	}
}

func toInvoiceDTOs(invs []*ledger.Invoice) []InvoiceDTO {
	out := make([]InvoiceDTO, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toInvoiceDTO(inv))
	}
	return out
}

// InvoiceViewDTO is a keyed group of invoices (created/received or the
// pending views).
type InvoiceViewDTO map[string][]InvoiceDTO

// IDListDTO wraps an ordered invoice ID list.
type IDListDTO struct {
	InvoiceIDs []string `json:"invoice_ids"`
}

// SettlementAssetDTO reports the configured asset, if any.
type SettlementAssetDTO struct {
	Asset      string `json:"asset,omitempty"`
	Configured bool   `json:"configured"`
}

// ErrorDTO is the error body for all failures.
type ErrorDTO struct {
	Error string `json:"error"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateInvoiceRequest creates a Draft invoice with a caller-chosen ID.
type CreateInvoiceRequest struct {
	ID        string            `json:"id"`
	Creator   string            `json:"creator"`
	Recipient string            `json:"recipient"`
	Amount    int64             `json:"amount"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// EditInvoiceRequest carries optional replacements; omitted fields are
// left unchanged.
type EditInvoiceRequest struct {
	Creator   string            `json:"creator"`
	Recipient *string           `json:"recipient,omitempty"`
	Amount    *int64            `json:"amount,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ActorRequest names the acting identity for single-actor transitions
// (send, cancel).
type ActorRequest struct {
	Creator string `json:"creator"`
}

// AcknowledgeRequest acknowledges a sent invoice with an optional note.
type AcknowledgeRequest struct {
	Recipient string `json:"recipient"`
	Note      string `json:"note,omitempty"`
}

// PayRequest settles a sent or acknowledged invoice.
type PayRequest struct {
	Recipient string `json:"recipient"`
}

// UpdateMetadataRequest replaces the metadata map wholesale.
type UpdateMetadataRequest struct {
	Creator  string            `json:"creator"`
	Metadata map[string]string `json:"metadata"`
}

// InitializeRequest stores the admin identity and settlement asset.
type InitializeRequest struct {
	Admin           string `json:"admin"`
	SettlementAsset string `json:"settlement_asset"`
}

// UpdateSettlementAssetRequest replaces the settlement asset (admin only).
type UpdateSettlementAssetRequest struct {
	Admin           string `json:"admin"`
	SettlementAsset string `json:"settlement_asset"`
}
