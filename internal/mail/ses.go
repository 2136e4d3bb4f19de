// Package mail sends transactional email through Amazon SES.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// sender is the part of the SES client the mailer uses.
type sender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type Config struct {
	Region     string
	FromEmail  string
	FromName   string
	AppBaseURL string
}

// SESMailer delivers password-reset links. Without a sender address it is
// disabled and only logs.
type SESMailer struct {
	client     sender
	from       string
	appBaseURL string
	enabled    bool
}

func NewSESMailer(ctx context.Context, cfg Config) (*SESMailer, error) {
	if cfg.FromEmail == "" {
		slog.InfoContext(ctx, "Email disabled: SES_FROM_EMAIL not configured")
		return &SESMailer{appBaseURL: cfg.AppBaseURL}, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	slog.InfoContext(ctx, "Email enabled", "from", cfg.FromEmail, "region", cfg.Region)
	return newSESMailer(sesv2.NewFromConfig(awsCfg), cfg), nil
}

func newSESMailer(client sender, cfg Config) *SESMailer {
	from := cfg.FromEmail
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail)
	}
	return &SESMailer{
		client:     client,
		from:       from,
		appBaseURL: strings.TrimRight(cfg.AppBaseURL, "/"),
		enabled:    true,
	}
}

func (m *SESMailer) Enabled() bool { return m.enabled }

func (m *SESMailer) SendPasswordReset(ctx context.Context, toEmail, toName, token string) error {
	if !m.enabled {
		slog.InfoContext(ctx, "Skipping password reset email (mailer disabled)", "to", toEmail)
		return nil
	}

	link := resetLink(m.appBaseURL, token)
	subject := "Restablecer tu contraseña de FamBudget"
	text := fmt.Sprintf(`Hola %s,

Recibimos una solicitud para restablecer tu contraseña.

Abre este enlace para elegir una nueva:
%s

El enlace vence en 1 hora. Si no lo pediste, ignora este mensaje.
`, toName, link)
	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body>
	<p>Hola %s,</p>
	<p>Recibimos una solicitud para restablecer tu contraseña.</p>
	<p><a href="%s">Elegir una nueva contraseña</a></p>
	<p>El enlace vence en 1 hora. Si no lo pediste, ignora este mensaje.</p>
</body>
</html>
`, toName, link)

	return m.send(ctx, toEmail, subject, html, text)
}

func (m *SESMailer) send(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	slog.InfoContext(ctx, "Email sent", "to", toEmail, "message_id", aws.ToString(out.MessageId))
	return nil
}

func resetLink(baseURL, token string) string {
	return baseURL + "/auth/reset-password?token=" + url.QueryEscape(token)
}
