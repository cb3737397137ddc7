// Package notify delivers the review digest by e-mail through AWS SES.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/wbr-monitor/internal/config"
	"github.com/ignite/wbr-monitor/internal/pkg/logger"
)

// ErrNotConfigured is returned when no sender or recipients are set.
var ErrNotConfigured = errors.New("digest delivery is not configured")

// SESAPI is the subset of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Mailer sends digests to a fixed recipient list.
type Mailer struct {
	client     SESAPI
	from       string
	recipients []string
	subject    string
}

// NewSESMailer builds a mailer from configuration. Static credentials are
// used when both keys are set; otherwise the default AWS chain applies.
func NewSESMailer(ctx context.Context, cfg config.NotifyConfig) (*Mailer, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewMailer(sesv2.NewFromConfig(awsCfg), cfg), nil
}

// NewMailer wraps an existing SES client.
func NewMailer(client SESAPI, cfg config.NotifyConfig) *Mailer {
	return &Mailer{
		client:     client,
		from:       cfg.From,
		recipients: cfg.Recipients,
		subject:    cfg.Subject,
	}
}

// Recipients returns the configured recipient list.
func (m *Mailer) Recipients() []string { return m.recipients }

// SendDigest mails a Markdown digest as plain text with an HTML <pre>
// alternative. It returns the SES message ID.
func (m *Mailer) SendDigest(ctx context.Context, subject, markdown string) (string, error) {
	if m.from == "" || len(m.recipients) == 0 {
		return "", ErrNotConfigured
	}
	if subject == "" {
		subject = m.subject
	}

	htmlBody := "<pre style=\"font-family: ui-monospace, monospace\">" + html.EscapeString(markdown) + "</pre>"
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination:      &types.Destination{ToAddresses: m.recipients},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(markdown), Charset: aws.String("UTF-8")},
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("report"), Value: aws.String("wbr")},
		},
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		log.Printf("[SES] Failed to send digest: %v", err)
		return "", fmt.Errorf("send digest: %w", err)
	}

	messageID := aws.ToString(result.MessageId)
	logger.Info("digest sent", "message_id", messageID, "recipients", strings.Join(m.recipients, ","))
	return messageID, nil
}
