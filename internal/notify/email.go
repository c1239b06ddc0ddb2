package notify

import (
	"context"
	"fmt"
	"html"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/logger"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// MailSender is satisfied by *sendgrid.Client.
type MailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type EmailChannel struct {
	client    MailSender
	fromEmail string
	fromName  string
}

func NewEmailChannel(apiKey, fromEmail, fromName string) *EmailChannel {
	return NewEmailChannelWithSender(sendgrid.NewSendClient(apiKey), fromEmail, fromName)
}

func NewEmailChannelWithSender(client MailSender, fromEmail, fromName string) *EmailChannel {
	return &EmailChannel{client: client, fromEmail: fromEmail, fromName: fromName}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Deliver(ctx context.Context, user *domain.User, n *domain.Notification) error {
	if user.Email == "" {
		return nil
	}
	from := mail.NewEmail(c.fromName, c.fromEmail)
	to := mail.NewEmail(user.Name, user.Email)
	htmlContent := fmt.Sprintf("<p>Hello %s,</p><p>%s</p>", html.EscapeString(user.Name), html.EscapeString(n.Message))
	message := mail.NewSingleEmail(from, subject(n.Category), to, n.Message, htmlContent)

	logger.ExternalServiceCall("sendgrid", "Send", "userID", user.ID)
	response, err := c.client.SendWithContext(ctx, message)
	if err == nil && response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	logger.ExternalServiceResult("sendgrid", "Send", err, "userID", user.ID)
	return err
}
