package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

const (
	ContactSalesMessage   = "Please contact sales for Enterprise plan."
	checkoutFailedMessage = "Failed to initiate checkout"
	checkoutErrorMessage  = "Something went wrong. Please try again."
)

type Billing struct {
	gateway  ports.BillingGateway
	creds    ports.CredentialSource
	notifier ports.Notifier
}

func NewBilling(gateway ports.BillingGateway, creds ports.CredentialSource, notifier ports.Notifier) *Billing {
	return &Billing{gateway: gateway, creds: creds, notifier: notifierOrNoop(notifier)}
}

// Checkout returns the hosted checkout URL for plan. Enterprise is sold by
// the sales team and never reaches the backend.
func (b *Billing) Checkout(ctx context.Context, rawPlan string) (string, error) {
	plan, ok := domain.ParsePlan(rawPlan)
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "checkout", fmt.Errorf("unknown plan %q", rawPlan))
	}
	if plan == domain.PlanEnterprise {
		notifyInfo(b.notifier, ContactSalesMessage)
		return "", domain.WrapError(domain.ErrContactSales, "checkout", errors.New(ContactSalesMessage))
	}

	url, err := b.gateway.CreateCheckoutSession(ctx, b.creds.Credentials(ctx), plan)
	if err != nil {
		slog.Warn("checkout_failed", "plan", string(plan), "error", err)
		msg := failureMessage(err, checkoutFailedMessage, checkoutErrorMessage)
		notifyError(b.notifier, msg)
		return "", &userFacingError{message: msg, err: fmt.Errorf("checkout %s: %w", plan, err)}
	}
	return url, nil
}
