package mail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/BradenHooton/accord/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/mrz1836/postmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func confirmMessage() Message {
	return Message{
		To:       "alice@example.com",
		Subject:  "Your confirmation code: a1b2c3",
		Template: TemplateConfirmEmail,
		Data:     ConfirmEmailData{Code: "a1b2c3", Year: 2026},
		Tag:      "magic-code",
	}
}

func TestRender_ConfirmEmail(t *testing.T) {
	html, text, err := Render(TemplateConfirmEmail, ConfirmEmailData{Code: "a1b2c3", Year: 2026})
	require.NoError(t, err)

	assert.Contains(t, html, "a1b2c3")
	assert.Contains(t, html, "2026")
	assert.Contains(t, text, "a1b2c3")
}

func TestRender_EscapesHTML(t *testing.T) {
	html, _, err := Render(TemplateConfirmEmail, ConfirmEmailData{Code: "<script>"})
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, _, err := Render("does-not-exist", nil)
	assert.Error(t, err)
}

type mockSES struct {
	SendEmailFunc func(ctx context.Context, in *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

func (m *mockSES) SendEmail(ctx context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, in)
}

func TestSESSender_Send(t *testing.T) {
	var got *ses.SendEmailInput
	s := &SESSender{
		client: &mockSES{SendEmailFunc: func(ctx context.Context, in *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
			got = in
			return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
		}},
		fromAddress: "no-reply@accord.local",
		logger:      discardLogger(),
	}

	require.NoError(t, s.Send(context.Background(), confirmMessage()))

	require.NotNil(t, got)
	assert.Equal(t, "no-reply@accord.local", aws.ToString(got.Source))
	assert.Equal(t, []string{"alice@example.com"}, got.Destination.ToAddresses)
	assert.Equal(t, "Your confirmation code: a1b2c3", aws.ToString(got.Message.Subject.Data))
	assert.Contains(t, aws.ToString(got.Message.Body.Html.Data), "a1b2c3")
}

func TestSESSender_Failure(t *testing.T) {
	s := &SESSender{
		client: &mockSES{SendEmailFunc: func(ctx context.Context, in *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
			return nil, errors.New("throttled")
		}},
		logger: discardLogger(),
	}

	err := s.Send(context.Background(), confirmMessage())
	assert.ErrorIs(t, err, ErrSendFailed)
}

type mockPostmark struct {
	SendEmailFunc func(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

func (m *mockPostmark) SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error) {
	return m.SendEmailFunc(ctx, email)
}

func TestPostmarkSender_Send(t *testing.T) {
	tests := []struct {
		name    string
		resp    postmark.EmailResponse
		err     error
		wantErr bool
	}{
		{name: "delivered"},
		{name: "transport error", err: errors.New("timeout"), wantErr: true},
		{name: "api error code", resp: postmark.EmailResponse{ErrorCode: 300, Message: "Invalid email request"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got postmark.Email
			s := &PostmarkSender{
				client: &mockPostmark{SendEmailFunc: func(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error) {
					got = email
					return tt.resp, tt.err
				}},
				from:   "no-reply@accord.local",
				stream: "outbound",
			}

			err := s.Send(context.Background(), confirmMessage())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSendFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice@example.com", got.To)
			assert.Equal(t, "magic-code", got.Tag)
			assert.Equal(t, "outbound", got.MessageStream)
			assert.Contains(t, got.TextBody, "a1b2c3")
		})
	}
}

func TestLogSender_Send(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewLogSender(slog.New(slog.NewJSONHandler(buf, nil)))

	require.NoError(t, s.Send(context.Background(), confirmMessage()))
	assert.Contains(t, buf.String(), "a1b2c3")
}

func TestNew_SelectsDriver(t *testing.T) {
	sender, err := New(context.Background(), config.MailConfig{Driver: config.MailDriverLog}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, sender)

	sender, err = New(context.Background(), config.MailConfig{Driver: config.MailDriverPostmark, PostmarkServerToken: "t"}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &PostmarkSender{}, sender)

	_, err = New(context.Background(), config.MailConfig{Driver: "pigeon"}, discardLogger())
	assert.Error(t, err)
}
