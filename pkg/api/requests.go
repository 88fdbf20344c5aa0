package api

// MaskEmailRequest is the HTTP request body for POST /api/v1/mask/email.
type MaskEmailRequest struct {
	Email string `json:"email"`
}

// MaskFieldsRequest is the HTTP request body for POST /api/v1/mask/personal
// and POST /api/v1/mask/web.
type MaskFieldsRequest struct {
	Fields map[string]string `json:"fields"`
}

// MaskFinancialRequest is the HTTP request body for POST /api/v1/mask/financial.
// Types optionally pins a field to credit_card, bank_account, or tax_id
// instead of name-based classification.
type MaskFinancialRequest struct {
	Fields map[string]string `json:"fields"`
	Types  map[string]string `json:"types,omitempty"`
}

// ScrubTextRequest is the HTTP request body for POST /api/v1/mask/text.
type ScrubTextRequest struct {
	Text string `json:"text"`
}
