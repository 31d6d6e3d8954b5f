// Package notify fans booking activity out to the business owner over SMS and
// email. Delivery failures are logged, never surfaced to the customer flow.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/bookline/internal/messaging"
	"github.com/wolfman30/bookline/pkg/logging"
)

// SentCounter records successful outbound owner SMS for usage totals.
type SentCounter interface {
	IncrSMSSent(ctx context.Context) error
}

// Service delivers owner notifications.
type Service struct {
	sms          messaging.Sender
	email        EmailSender
	ownerPhone   string
	ownerEmail   string
	businessName string
	counter      SentCounter
	logger       *logging.Logger
}

// NewService creates a notification service. The email sender and counter may
// be nil; SMS is skipped when no owner phone is configured.
func NewService(sms messaging.Sender, email EmailSender, ownerPhone, ownerEmail, businessName string, counter SentCounter, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if businessName == "" {
		businessName = "Bookline"
	}
	return &Service{
		sms:          sms,
		email:        email,
		ownerPhone:   ownerPhone,
		ownerEmail:   ownerEmail,
		businessName: businessName,
		counter:      counter,
		logger:       logger,
	}
}

// NotifyOwner sends a heads-up to the business owner about activity on the
// given customer phone. Failures are logged and swallowed so a flaky carrier
// or mail provider never breaks the customer conversation.
func (s *Service) NotifyOwner(ctx context.Context, message, aboutPhone string) {
	if strings.TrimSpace(message) == "" {
		return
	}

	if s.ownerPhone == "" {
		s.logger.Warn("owner phone not configured, skipping SMS notification")
	} else if s.sms != nil {
		if err := s.sms.Send(ctx, s.ownerPhone, message); err != nil {
			s.logger.Error("failed to notify owner via SMS", "error", err, "about", aboutPhone)
		} else if s.counter != nil {
			if err := s.counter.IncrSMSSent(ctx); err != nil {
				s.logger.Warn("failed to record sent SMS", "error", err)
			}
		}
	}

	if s.email != nil && s.ownerEmail != "" {
		msg := EmailMessage{
			To:      s.ownerEmail,
			Subject: fmt.Sprintf("%s booking update", s.businessName),
			Body:    fmt.Sprintf("%s\n\nCustomer: %s\n\n- %s", message, aboutPhone, s.businessName),
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("failed to notify owner via email", "error", err, "about", aboutPhone)
		}
	}
}
