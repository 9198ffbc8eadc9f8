package coupon

// ValidateRequest for POST /coupons/validate
type ValidateRequest struct {
	CouponCode string `json:"couponCode" validate:"required,max=50"`
	EventID    string `json:"eventId" validate:"required,uuid"`
	Amount     int64  `json:"amount" validate:"gte=0"`
}

// ValidateResponse previews what a coupon would do to an amount
type ValidateResponse struct {
	IsValid        bool   `json:"isValid"`
	DiscountAmount int64  `json:"discountAmount"`
	FinalAmount    int64  `json:"finalAmount"`
	Message        string `json:"message,omitempty"`
}

func rejected(amount int64, message string) *ValidateResponse {
	return &ValidateResponse{FinalAmount: amount, Message: message}
}
