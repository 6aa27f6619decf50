package httpdto

// Webhook acknowledgment shapes. These are part of the external contract
// with SafeHaven, so the field names are pinned here rather than wrapped in
// the generic Response envelope.

// WebhookAccepted is the 202 body: queued for async processing.
type WebhookAccepted struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	EventID string `json:"eventId"`
}

// WebhookAlreadyProcessed is the 200 body for an idempotent replay of a
// previously successful delivery.
type WebhookAlreadyProcessed struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	EventID     string `json:"eventId"`
	ProcessedAt string `json:"processedAt"`
}

// WebhookDuplicate is the 409 body: the event id exists but has not reached
// a confirmed success.
type WebhookDuplicate struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	EventID string `json:"eventId"`
}

// WebhookHealth reports dispatcher statistics and validator configuration.
type WebhookHealth struct {
	Status                       string           `json:"status"`
	Statistics                   map[string]int64 `json:"statistics"`
	SignatureValidatorConfigured bool             `json:"signatureValidatorConfigured"`
}
