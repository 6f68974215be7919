package alert

import (
	"context"
	"fmt"

	mail "github.com/wneessen/go-mail"

	"github.com/kiranshivaraju/errwatch/internal/config"
	"github.com/kiranshivaraju/errwatch/pkg/models"
)

// SMTPDispatcher delivers alerts by email via go-mail. Each dispatch dials,
// sends and closes; alert volume is throttled upstream so connection reuse
// is not worth the session bookkeeping.
type SMTPDispatcher struct {
	client *mail.Client
	from   string
	to     []string
}

// NewSMTPDispatcher creates an SMTPDispatcher from SMTP config.
func NewSMTPDispatcher(cfg config.SMTPConfig) (*SMTPDispatcher, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPDispatcher{
		client: client,
		from:   cfg.From,
		to:     cfg.To,
	}, nil
}

func (d *SMTPDispatcher) Dispatch(ctx context.Context, rec *models.ErrorRecord) error {
	msg := mail.NewMsg()
	if err := msg.From(d.from); err != nil {
		return fmt.Errorf("set alert sender: %w", err)
	}
	if err := msg.To(d.to...); err != nil {
		return fmt.Errorf("set alert recipients: %w", err)
	}
	msg.Subject(Subject(rec))
	msg.SetBodyString(mail.TypeTextPlain, Body(rec))

	if err := d.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}
	return nil
}
