package transaction

import (
	"time"

	"github.com/google/uuid"
)

// CreateRequest for POST /transactions
type CreateRequest struct {
	EventID      string `json:"eventId" validate:"required,uuid"`
	TicketTierID string `json:"ticketTierId" validate:"required,uuid"`
	Quantity     int    `json:"quantity" validate:"min=1"`
	PointsUsed   int64  `json:"pointsUsed" validate:"gte=0"`
	CouponCode   string `json:"couponCode" validate:"omitempty,max=50"`
}

// UploadProofRequest for POST /transactions/{id}/upload-proof
type UploadProofRequest struct {
	ProofURL string `json:"proofUrl" validate:"required,url,max=2048"`
}

// ProofUploadURLRequest for POST /transactions/{id}/proof-upload-url
type ProofUploadURLRequest struct {
	ContentType string `json:"contentType" validate:"required,oneof=image/jpeg image/png image/webp application/pdf"`
}

// ProofUploadURLResponse tells the client where to PUT the file and which
// URL to submit afterwards
type ProofUploadURLResponse struct {
	UploadURL string    `json:"uploadUrl"`
	ProofURL  string    `json:"proofUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Response is the public shape of a transaction
type Response struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"userId"`
	EventID        uuid.UUID  `json:"eventId"`
	TicketTierID   uuid.UUID  `json:"ticketTierId"`
	Quantity       int        `json:"quantity"`
	TotalAmount    int64      `json:"totalAmount"`
	DiscountAmount int64      `json:"discountAmount"`
	PointsUsed     int64      `json:"pointsUsed"`
	CouponID       *uuid.UUID `json:"couponId"`
	Status         Status     `json:"status"`
	ProofURL       *string    `json:"proofUrl"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	ExpiresAt      *time.Time `json:"expiresAt"`
}

// ResponseFromEntity converts entity to response
func ResponseFromEntity(t *Transaction) *Response {
	resp := &Response{
		ID:             t.ID,
		UserID:         t.UserID,
		EventID:        t.EventID,
		TicketTierID:   t.TicketTierID,
		Quantity:       t.Quantity,
		TotalAmount:    t.TotalAmount,
		DiscountAmount: t.DiscountAmount,
		PointsUsed:     t.PointsUsed,
		Status:         t.Status,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if t.CouponID.Valid {
		id := t.CouponID.UUID
		resp.CouponID = &id
	}
	if t.ProofURL.Valid {
		url := t.ProofURL.String
		resp.ProofURL = &url
	}
	if t.ExpiresAt.Valid {
		exp := t.ExpiresAt.Time
		resp.ExpiresAt = &exp
	}
	return resp
}

// ResponsesFromEntities converts a page of entities
func ResponsesFromEntities(items []*Transaction) []*Response {
	out := make([]*Response, 0, len(items))
	for _, t := range items {
		out = append(out, ResponseFromEntity(t))
	}
	return out
}
