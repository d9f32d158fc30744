package webhook

import "errors"

// Sentinel errors for webhook operations.
var (
	ErrDeliveryNotFound = errors.New("webhook delivery not found")
	ErrEmptyTarget      = errors.New("webhook target URL is empty")
)
