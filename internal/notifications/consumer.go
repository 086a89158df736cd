package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/bulkquote-backend/pkg/db/models"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
	"github.com/angelmondragon/bulkquote-backend/pkg/logger"
	"github.com/angelmondragon/bulkquote-backend/pkg/outbox"
	"github.com/angelmondragon/bulkquote-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/bulkquote-backend/pkg/outbox/payloads"
)

const marketplaceNotificationConsumer = "marketplace-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	SellerIDsForCategory(ctx context.Context, category enums.RequestCategory) ([]uuid.UUID, error)
	RejectedSellerIDs(ctx context.Context, requestID uuid.UUID) ([]uuid.UUID, error)
}

// Consumer watches domain events and turns them into in-app notifications
// for buyers and sellers.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a marketplace notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType.String(),
	})

	switch eventType {
	case enums.EventRequestCreated, enums.EventRequestPaid, enums.EventFulfillmentAdvanced:
	default:
		c.logg.Info(logCtx, "skipping event without notification handling")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, marketplaceNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEvent(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, marketplaceNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventRequestCreated:
		var payload payloads.RequestCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse request created payload: %w", err)
		}
		return c.notifySellersOfNewRequest(ctx, payload, logCtx)
	case enums.EventRequestPaid:
		var payload payloads.RequestPaidEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse request paid payload: %w", err)
		}
		return c.notifyOfferOutcomes(ctx, payload, logCtx)
	case enums.EventFulfillmentAdvanced:
		var payload payloads.FulfillmentAdvancedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse fulfillment payload: %w", err)
		}
		return c.notifyBuyerOfProgress(ctx, payload, logCtx)
	default:
		return nil
	}
}

func (c *Consumer) notifySellersOfNewRequest(ctx context.Context, payload payloads.RequestCreatedEvent, logCtx context.Context) error {
	if payload.RequestID == uuid.Nil {
		return fmt.Errorf("request id missing")
	}

	sellerIDs, err := c.repo.SellerIDsForCategory(ctx, payload.Category)
	if err != nil {
		return fmt.Errorf("list sellers for category: %w", err)
	}

	data, err := json.Marshal(map[string]string{
		"request_id": payload.RequestID.String(),
		"category":   payload.Category.String(),
	})
	if err != nil {
		return err
	}

	for _, sellerID := range sellerIDs {
		notification := &models.Notification{
			RecipientID: sellerID,
			Type:        enums.NotificationTypeNewRequest,
			Title:       "New bulk order request",
			Body:        fmt.Sprintf("A buyer is requesting %d x %s in %s.", payload.Quantity, payload.ProductName, payload.Category),
			Data:        data,
		}
		if err := c.repo.Create(ctx, notification); err != nil {
			return fmt.Errorf("create seller notification: %w", err)
		}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"request_id": payload.RequestID.String(),
		"sellers":    len(sellerIDs),
	})
	c.logg.Info(logCtx, "sellers notified of new request")
	return nil
}

func (c *Consumer) notifyOfferOutcomes(ctx context.Context, payload payloads.RequestPaidEvent, logCtx context.Context) error {
	if payload.SellerID == uuid.Nil {
		return fmt.Errorf("seller id missing")
	}

	data, err := json.Marshal(map[string]string{
		"request_id": payload.RequestID.String(),
		"offer_id":   payload.OfferID.String(),
	})
	if err != nil {
		return err
	}

	accepted := &models.Notification{
		RecipientID: payload.SellerID,
		Type:        enums.NotificationTypeOfferAccepted,
		Title:       "Offer accepted",
		Body:        "Your offer was accepted and paid. Start preparing the order.",
		Data:        data,
	}
	if err := c.repo.Create(ctx, accepted); err != nil {
		return fmt.Errorf("create accepted notification: %w", err)
	}

	rejectedIDs, err := c.repo.RejectedSellerIDs(ctx, payload.RequestID)
	if err != nil {
		return fmt.Errorf("list rejected sellers: %w", err)
	}
	for _, sellerID := range rejectedIDs {
		if sellerID == payload.SellerID {
			continue
		}
		notification := &models.Notification{
			RecipientID: sellerID,
			Type:        enums.NotificationTypeOfferRejected,
			Title:       "Offer not selected",
			Body:        "The buyer accepted a different offer for this request.",
			Data:        data,
		}
		if err := c.repo.Create(ctx, notification); err != nil {
			return fmt.Errorf("create rejected notification: %w", err)
		}
	}

	c.logg.Info(logCtx, "sellers notified of offer outcomes")
	return nil
}

func (c *Consumer) notifyBuyerOfProgress(ctx context.Context, payload payloads.FulfillmentAdvancedEvent, logCtx context.Context) error {
	if payload.BuyerID == uuid.Nil {
		return fmt.Errorf("buyer id missing")
	}

	data, err := json.Marshal(map[string]string{
		"request_id": payload.RequestID.String(),
		"status":     payload.ToStatus.String(),
	})
	if err != nil {
		return err
	}

	notification := &models.Notification{
		RecipientID: payload.BuyerID,
		Type:        enums.NotificationTypeRequestProgress,
		Title:       "Order update",
		Body:        fmt.Sprintf("Your order moved to %s.", payload.ToStatus),
		Data:        data,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("create progress notification: %w", err)
	}

	c.logg.Info(logCtx, "buyer notified of fulfillment progress")
	return nil
}
