package commitment

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// List of ledger event names emitted by the sensor commitment contract.
const (
	EventRootRequested   EventType = "MerkleRootRequested"
	EventRootUpdated     EventType = "MerkleRootUpdated"
	EventCidFormatConfig EventType = "CidDataFormatUpdated"
	EventSensorConfig    EventType = "SensorAddressUpdated"
)

type EventType string

// RootRequested records that the contract asked the sensor for a new commitment.
type RootRequested struct {
	// BlockNumber is the block number carried by the event.
	BlockNumber uint64
	// Timestamp is the ledger timestamp (unix seconds) of BlockNumber.
	Timestamp uint64
	// TimestampKnown is false when the ledger could not resolve BlockNumber.
	TimestampKnown bool
}

// RootUpdated records a new aggregate root together with the leaf it appended.
type RootUpdated struct {
	BlockNumber uint64
	// LeafBlockRef is the block number of the RootRequested this update claims
	// to answer. It is read from the stored leaf object, not from the ledger.
	LeafBlockRef uint64
	// LeafValue is the content identifier of the committed leaf.
	LeafValue string
	RootValue common.Hash
}

func (u RootUpdated) String() string {
	return fmt.Sprintf("update@%d(ref=%d, leaf=%s)", u.BlockNumber, u.LeafBlockRef, u.LeafValue)
}

// LeafUpdate is the raw payload of a RootUpdated event before the leaf
// reference has been dereferenced.
type LeafUpdate struct {
	LeafRef   string
	RootValue common.Hash
}

// CidFormatConfig describes how leaves are built while it is in effect.
type CidFormatConfig struct {
	BlockNumber uint64
	// Multibase and MultihashLength are recorded as emitted; leaves are always
	// built as base32 CIDv1 with the algorithm's default digest length.
	Multibase          string
	Version            string
	Multicodec         string
	MultihashAlgorithm string
	MultihashLength    uint64
	// TemplateRef is the content identifier of the leaf template object.
	TemplateRef string
}

// SensorConfig names the address whose signatures are accepted while it is in effect.
type SensorConfig struct {
	BlockNumber   uint64
	SignerAddress common.Address
}

// EventLog is the decoded content of the contract's event history, split by kind.
// RequestedBlocks and Updated only contain events at or after the floor block
// the log was read from; configuration kinds are complete.
type EventLog struct {
	RequestedBlocks  []uint64
	Updated          map[uint64]LeafUpdate
	CidFormatConfigs map[uint64]CidFormatConfig
	SensorConfigs    map[uint64]common.Address
}

// NewEventLog returns an empty event log with all maps allocated.
func NewEventLog() *EventLog {
	return &EventLog{
		Updated:          make(map[uint64]LeafUpdate),
		CidFormatConfigs: make(map[uint64]CidFormatConfig),
		SensorConfigs:    make(map[uint64]common.Address),
	}
}

// Leaf is a single (index, value) pair handed to the tree builder.
type Leaf struct {
	Index uint64
	Value string
}
