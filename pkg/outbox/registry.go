package outbox

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/banksampah-backend/pkg/enums"
)

type decoderFunc func(payload json.RawMessage) (any, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps an event type and envelope version to the typed
// payload it carries.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]decoderFunc)}
}

// LedgerDecoders knows every payload the ledger emits at version 1.
func LedgerDecoders() *DecoderRegistry {
	r := NewDecoderRegistry()
	Register[TransactionRecorded](r, enums.EventTransactionRecorded, currentVersion)
	Register[BatchRecorded](r, enums.EventBatchRecorded, currentVersion)
	Register[MovementRecorded](r, enums.EventDepositRecorded, currentVersion)
	Register[MovementRecorded](r, enums.EventWithdrawalRecorded, currentVersion)
	Register[CategoryPriceUpdated](r, enums.EventCategoryPriceUpdate, currentVersion)
	return r
}

// Register binds eventType@version to a strict JSON decode into T.
func Register[T any](r *DecoderRegistry, eventType enums.OutboxEventType, version int) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = func(payload json.RawMessage) (any, error) {
		var out T
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mtx.RLock()
	decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]
	r.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return decoder(payload)
}
