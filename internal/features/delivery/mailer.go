package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"go-campaign/internal/config"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Dialer opens an SMTP session. *gomail.Dialer satisfies it.
type Dialer interface {
	Dial() (gomail.SendCloser, error)
}

// smtpAPIHeader is the relay's X-SMTPAPI extension. Unique args come back on every webhook event.
type smtpAPIHeader struct {
	UniqueArgs map[string]string `json:"unique_args"`
}

// SMTPTransport sends one message per recipient over a single relay session.
type SMTPTransport struct {
	dialer Dialer
	logger *zap.Logger
}

func NewSMTPTransport(cfg *config.Config, logger *zap.Logger) *SMTPTransport {
	return &SMTPTransport{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		logger: logger.Named("smtp"),
	}
}

func (t *SMTPTransport) SendBulk(ctx context.Context, msg BulkMessage) error {
	if len(msg.Recipients) == 0 {
		return nil
	}

	header, err := json.Marshal(smtpAPIHeader{UniqueArgs: map[string]string{"campaignId": msg.CampaignID}})
	if err != nil {
		return err
	}

	sc, err := t.dialer.Dial()
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer sc.Close()

	m := gomail.NewMessage()
	for i, to := range msg.Recipients {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("send aborted after %d of %d recipients: %w", i, len(msg.Recipients), err)
		}

		m.Reset()
		m.SetHeader("From", msg.From)
		m.SetHeader("To", to)
		m.SetHeader("Subject", msg.Subject)
		m.SetHeader("X-SMTPAPI", string(header))
		m.SetBody("text/html", msg.HTML)

		if err := gomail.Send(sc, m); err != nil {
			return fmt.Errorf("send to %s: %w", to, err)
		}
	}

	t.logger.Debug("bulk message relayed",
		zap.String("campaign_id", msg.CampaignID),
		zap.Int("recipients", len(msg.Recipients)),
	)
	return nil
}

var _ Transport = (*SMTPTransport)(nil)
