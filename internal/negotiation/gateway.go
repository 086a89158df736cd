package negotiation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/bulkquote-backend/pkg/square"
)

// Gateway abstracts the payment provider. Implementations must be safe to
// retry with the same idempotency key.
type Gateway interface {
	ChargeCard(ctx context.Context, params ChargeParams) (string, error)
	RecordCOD(ctx context.Context) (string, error)
}

// ChargeParams carries everything a card charge needs.
type ChargeParams struct {
	AmountCents    int64
	Currency       string
	CardToken      string
	IdempotencyKey string
	ReferenceID    string
}

// SquareGateway charges cards through the Square payments API.
type SquareGateway struct {
	client *square.Client
}

// NewSquareGateway wraps the configured Square client.
func NewSquareGateway(client *square.Client) (*SquareGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &SquareGateway{client: client}, nil
}

func (g *SquareGateway) ChargeCard(ctx context.Context, params ChargeParams) (string, error) {
	payment, err := g.client.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    params.AmountCents,
		Currency:       params.Currency,
		SourceID:       params.CardToken,
		IdempotencyKey: params.IdempotencyKey,
		ReferenceID:    params.ReferenceID,
	})
	if err != nil {
		return "", err
	}
	id := payment.GetID()
	if id == nil {
		return "", fmt.Errorf("square payment id missing")
	}
	return *id, nil
}

// RecordCOD settles nothing externally; the generated reference marks the
// record as cash-on-delivery.
func (g *SquareGateway) RecordCOD(_ context.Context) (string, error) {
	return fmt.Sprintf("cod-%s", uuid.NewString()), nil
}
