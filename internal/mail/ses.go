package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/accord/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender sends email using AWS SES
type SESSender struct {
	client      sesAPI
	fromAddress string
	logger      *slog.Logger
}

func NewSESSender(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESSender{
		client:      ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

func (s *SESSender) Send(ctx context.Context, msg Message) error {
	html, text, err := Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(html), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(text), Charset: aws.String("UTF-8")},
			},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("to", logger.SanitizedEmail(msg.To)),
			slog.String("template", msg.Template),
			slog.Any("error", err),
		)
		return errors.Join(ErrSendFailed, err)
	}

	s.logger.Info("email sent via SES",
		slog.String("to", logger.SanitizedEmail(msg.To)),
		slog.String("template", msg.Template),
		slog.String("message_id", aws.ToString(out.MessageId)),
	)
	return nil
}
