package enums

// OutboxAggregateType maps to outbox_events.aggregate_type.
type OutboxAggregateType string

const (
	AggregateTransaction OutboxAggregateType = "transaction"
	AggregateBatch       OutboxAggregateType = "batch"
	AggregateMovement    OutboxAggregateType = "financial_movement"
	AggregateCategory    OutboxAggregateType = "category"
)

var aggregateTypes = newSet("aggregate type",
	AggregateTransaction, AggregateBatch, AggregateMovement, AggregateCategory)

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse(value)
}

// OutboxEventType maps to outbox_events.event_type. It doubles as the
// Pub/Sub event_type attribute.
type OutboxEventType string

const (
	EventTransactionRecorded OutboxEventType = "transaction_recorded"
	EventBatchRecorded       OutboxEventType = "batch_recorded"
	EventDepositRecorded     OutboxEventType = "deposit_recorded"
	EventWithdrawalRecorded  OutboxEventType = "withdrawal_recorded"
	EventCategoryPriceUpdate OutboxEventType = "category_price_updated"
)

var eventTypes = newSet("event type",
	EventTransactionRecorded,
	EventBatchRecorded,
	EventDepositRecorded,
	EventWithdrawalRecorded,
	EventCategoryPriceUpdate,
)

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

// OutboxEventTypes lists every event type in declaration order.
func OutboxEventTypes() []OutboxEventType { return eventTypes.all() }

func ParseOutboxEventType(value string) (OutboxEventType, error) { return eventTypes.parse(value) }
