package enums

// OutboxEventType names the domain events emitted through the outbox.
type OutboxEventType string

const (
	EventRequestCreated       OutboxEventType = "request.created"
	EventRequestCancelled     OutboxEventType = "request.cancelled"
	EventRequestPaid          OutboxEventType = "request.paid"
	EventFulfillmentAdvanced  OutboxEventType = "request.fulfillment_advanced"
	EventOfferSubmitted       OutboxEventType = "offer.submitted"
	EventOfferWithdrawn       OutboxEventType = "offer.withdrawn"
	EventPaymentReconciled    OutboxEventType = "payment.reconciled"
	EventPaymentNeedsReview   OutboxEventType = "payment.needs_review"
)

// String implements fmt.Stringer.
func (o OutboxEventType) String() string {
	return string(o)
}

// OutboxAggregateType names the aggregate a domain event belongs to.
type OutboxAggregateType string

const (
	AggregateBulkOrderRequest OutboxAggregateType = "bulk_order_request"
	AggregateOffer            OutboxAggregateType = "offer"
	AggregatePayment          OutboxAggregateType = "payment"
)

// OutboxDLQErrorReason explains why a row was moved to the dead letter table.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
)
