package staking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"multicallScope/internal/model"
)

const (
	EventAllocationCreated = "AllocationCreated"
	EventAllocationClosed  = "AllocationClosed"
)

// EventsConfig configures topic0 recognition.
type EventsConfig struct {
	// Topic0Map adds topic0 -> event name mappings, e.g. for older contract
	// versions whose AllocationClosed signature differs.
	Topic0Map map[string]string
}

// Events maps allocation event discriminators to event kinds.
type Events struct {
	topicToKind map[common.Hash]model.EventKind
}

// NewEvents builds the topic0 table from the Staking ABI plus cfg overrides.
func NewEvents(cfg EventsConfig) (*Events, error) {
	stakingABI, err := StakingABI()
	if err != nil {
		return nil, fmt.Errorf("parse staking abi: %w", err)
	}

	topicToKind := map[common.Hash]model.EventKind{
		stakingABI.Events[EventAllocationCreated].ID: model.EventKindCreate,
		stakingABI.Events[EventAllocationClosed].ID:  model.EventKindClose,
	}

	for topic0, name := range cfg.Topic0Map {
		kind, err := model.ParseEventKind(name)
		if err != nil {
			return nil, fmt.Errorf("topic0 map: %w", err)
		}
		if strings.TrimSpace(topic0) == "" {
			continue
		}
		data, err := hexutil.Decode(strings.TrimSpace(topic0))
		if err != nil || len(data) != common.HashLength {
			return nil, fmt.Errorf("invalid topic0 in topic0 map: %s", topic0)
		}
		topicToKind[common.BytesToHash(data)] = kind
	}

	return &Events{topicToKind: topicToKind}, nil
}

// KindOf returns the event kind for a topic0.
func (e *Events) KindOf(topic0 common.Hash) (model.EventKind, bool) {
	kind, ok := e.topicToKind[topic0]
	return kind, ok
}

// Topic0s lists every recognized discriminator in a stable order.
func (e *Events) Topic0s() []common.Hash {
	topics := make([]common.Hash, 0, len(e.topicToKind))
	for topic := range e.topicToKind {
		topics = append(topics, topic)
	}
	sort.Slice(topics, func(i, j int) bool {
		return topics[i].Hex() < topics[j].Hex()
	})
	return topics
}
