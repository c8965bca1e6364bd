package webhook

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sendgrid/sendgrid-go/helpers/eventwebhook"
)

const (
	SignatureHeader = "X-Twilio-Email-Event-Webhook-Signature"
	TimestampHeader = "X-Twilio-Email-Event-Webhook-Timestamp"

	// DefaultSignatureTolerance bounds how far a signed timestamp may drift from now.
	DefaultSignatureTolerance = 10 * time.Minute
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrStaleSignature   = errors.New("webhook signature timestamp outside tolerance")
)

// SignatureVerifier checks the provider's signed event webhook and rejects replays outside the tolerance window.
type SignatureVerifier struct {
	key       *ecdsa.PublicKey
	tolerance time.Duration
	now       func() time.Time
}

// NewSignatureVerifier parses a base64 DER public key. An empty key yields a nil verifier.
func NewSignatureVerifier(publicKey string) (*SignatureVerifier, error) {
	if publicKey == "" {
		return nil, nil
	}
	key, err := eventwebhook.ConvertPublicKeyBase64ToECDSA(publicKey)
	if err != nil {
		return nil, fmt.Errorf("parse webhook public key: %w", err)
	}
	return &SignatureVerifier{
		key:       key,
		tolerance: DefaultSignatureTolerance,
		now:       time.Now,
	}, nil
}

func (v *SignatureVerifier) Verify(payload []byte, signature, timestamp string) error {
	if signature == "" || timestamp == "" {
		return ErrInvalidSignature
	}

	ok, err := eventwebhook.VerifySignature(v.key, payload, signature, timestamp)
	if err != nil || !ok {
		return ErrInvalidSignature
	}

	secs, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	drift := v.now().Sub(time.Unix(secs, 0))
	if drift > v.tolerance || drift < -v.tolerance {
		return ErrStaleSignature
	}
	return nil
}
