// internal/workers/notification_processor.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/hibiken/asynq"

	"github.com/merchkit/cartd/internal/pkg/config"
)

// TypeCartReminder is the task type for abandoned cart reminder emails.
const TypeCartReminder = "cart:reminder"

// CartReminderPayload carries the reminder email details.
type CartReminderPayload struct {
	CartID    string `json:"cart_id"`
	Email     string `json:"email"`
	ItemCount int    `json:"item_count"`
	TotalSum  string `json:"total_sum"`
}

// NotificationProcessor handles email notifications
type NotificationProcessor struct {
	config *config.Config
	logger *slog.Logger
}

// NewNotificationProcessor creates a new notification processor
func NewNotificationProcessor(config *config.Config, logger *slog.Logger) *NotificationProcessor {
	return &NotificationProcessor{
		config: config,
		logger: logger.With(slog.String("processor", "notification")),
	}
}

// SendCartReminder emails a customer about a cart they left behind.
func (p *NotificationProcessor) SendCartReminder(ctx context.Context, t *asynq.Task) error {
	var payload CartReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	subject := fmt.Sprintf("You left %d item(s) in your cart", payload.ItemCount)
	body := fmt.Sprintf(
		"Your cart is still waiting with %d item(s) totaling %s. Come back and finish checking out.",
		payload.ItemCount, payload.TotalSum,
	)

	p.logger.InfoContext(ctx, "sending cart reminder",
		slog.String("cart_id", payload.CartID),
		slog.String("to", payload.Email))

	// In development, just log the email
	if p.config.App.Environment == "development" {
		p.logger.InfoContext(ctx, "email would be sent",
			slog.String("to", payload.Email),
			slog.String("subject", subject),
			slog.String("body", body))
		return nil
	}

	from := p.config.Notifications.FromAddress
	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		from, payload.Email, subject, body,
	))

	auth := smtp.PlainAuth("",
		p.config.Notifications.SMTPUser,
		p.config.Notifications.SMTPPassword,
		p.config.Notifications.SMTPHost)

	addr := fmt.Sprintf("%s:%d", p.config.Notifications.SMTPHost, p.config.Notifications.SMTPPort)
	if err := smtp.SendMail(addr, auth, from, []string{payload.Email}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	p.logger.InfoContext(ctx, "cart reminder sent",
		slog.String("cart_id", payload.CartID))

	return nil
}
