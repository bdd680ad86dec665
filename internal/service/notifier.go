package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-autoclose/internal/domain"
	"github.com/spec-kit/ticket-autoclose/internal/mail"
	"github.com/spec-kit/ticket-autoclose/internal/repository"
)

// Notifier tells a customer that their ticket was closed.
type Notifier struct {
	directory repository.ContactDirectory
	transport mail.Transport
	logger    *zap.Logger
}

// NewNotifier creates the notifier.
func NewNotifier(directory repository.ContactDirectory, transport mail.Transport, logger *zap.Logger) *Notifier {
	return &Notifier{
		directory: directory,
		transport: transport,
		logger:    logger,
	}
}

// Notify resolves the account's primary address and sends one message to it.
// Failures are logged as warnings and reported through the outcome; nothing
// is retried.
func (n *Notifier) Notify(ctx context.Context, customerAccountID, subject, body string) domain.NotifyOutcome {
	email, found, err := n.directory.FindPrimaryEmail(ctx, customerAccountID)
	if err != nil {
		n.logger.Warn("customer email lookup failed",
			zap.String("account_id", customerAccountID),
			zap.Error(err))
		return domain.NotifyNoAddressFound
	}
	email = strings.TrimSpace(email)
	if !found || email == "" {
		n.logger.Warn("customer email address not found for account",
			zap.String("account_id", customerAccountID))
		return domain.NotifyNoAddressFound
	}

	msg := domain.NotificationMessage{
		Subject: subject,
		Body:    body,
		To:      email,
	}
	if err := n.transport.Send(ctx, msg); err != nil {
		n.logger.Warn("failed to send email notification",
			zap.String("recipient", email),
			zap.String("account_id", customerAccountID),
			zap.Error(err))
		return domain.NotifySendFailed
	}
	return domain.NotifySent
}
