package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkSender sends email through Postmark's transactional API.
type PostmarkSender struct {
	client postmarkAPI
	from   string
	stream string
}

func NewPostmarkSender(serverToken, accountToken, from, stream string) *PostmarkSender {
	return &PostmarkSender{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
		stream: stream,
	}
}

func (s *PostmarkSender) Send(ctx context.Context, msg Message) error {
	html, text, err := Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:          s.from,
		To:            msg.To,
		Subject:       msg.Subject,
		Tag:           msg.Tag,
		HTMLBody:      html,
		TextBody:      text,
		MessageStream: s.stream,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
