package campaign

import (
	"errors"
	"fmt"
)

var (
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrSenderNotFound    = errors.New("sender not found")
	ErrSenderNotVerified = errors.New("sender email is not verified")
	ErrRetryLimitReached = errors.New("delivery retry limit reached; edit the campaign before sending again")
)

// DeliveryFailedError wraps the transport error of a failed send.
type DeliveryFailedError struct {
	CampaignID string
	Err        error
}

func (e *DeliveryFailedError) Error() string {
	return fmt.Sprintf("delivery of campaign %s failed: %v", e.CampaignID, e.Err)
}

func (e *DeliveryFailedError) Unwrap() error {
	return e.Err
}

// ValidationError carries a user facing description of invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
