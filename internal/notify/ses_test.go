package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/ignite/wbr-monitor/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	sent []*sesv2.SendEmailInput
	err  error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, in)
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-123")}, nil
}

var notifyCfg = config.NotifyConfig{
	From:       "wbr@example.com",
	Recipients: []string{"lead@example.com", "ops@example.com"},
	Subject:    "Weekly Business Review: Email Open Rate",
}

func TestSendDigest(t *testing.T) {
	fake := &fakeSES{}
	m := NewMailer(fake, notifyCfg)

	id, err := m.SendDigest(context.Background(), "", "# WBR\n| a < b |")
	require.NoError(t, err)
	assert.Equal(t, "msg-123", id)

	require.Len(t, fake.sent, 1)
	in := fake.sent[0]
	assert.Equal(t, "wbr@example.com", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, notifyCfg.Recipients, in.Destination.ToAddresses)
	assert.Equal(t, notifyCfg.Subject, aws.ToString(in.Content.Simple.Subject.Data))
	assert.Equal(t, "# WBR\n| a < b |", aws.ToString(in.Content.Simple.Body.Text.Data))
	assert.Contains(t, aws.ToString(in.Content.Simple.Body.Html.Data), "a &lt; b")
}

func TestSendDigest_NotConfigured(t *testing.T) {
	m := NewMailer(&fakeSES{}, config.NotifyConfig{From: "wbr@example.com"})
	_, err := m.SendDigest(context.Background(), "s", "body")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSendDigest_Error(t *testing.T) {
	m := NewMailer(&fakeSES{err: errors.New("MessageRejected")}, notifyCfg)
	_, err := m.SendDigest(context.Background(), "custom", "body")
	assert.ErrorContains(t, err, "MessageRejected")
}
