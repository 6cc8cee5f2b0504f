package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/sensorledger/integrity/model/commitment"
)

// ContractABI is the part of the sensor commitment contract interface the
// reader depends on. Every event carries the block number it was emitted for
// as its first argument.
const ContractABI = `[
  {"type":"event","name":"MerkleRootRequested","anonymous":false,"inputs":[
    {"name":"blockNumber","type":"uint256","indexed":false}]},
  {"type":"event","name":"MerkleRootUpdated","anonymous":false,"inputs":[
    {"name":"blockNumber","type":"uint256","indexed":false},
    {"name":"merkleRoot","type":"bytes32","indexed":false},
    {"name":"leaf","type":"string","indexed":false}]},
  {"type":"event","name":"CidDataFormatUpdated","anonymous":false,"inputs":[
    {"name":"blockNumber","type":"uint256","indexed":false},
    {"name":"multibase","type":"string","indexed":false},
    {"name":"version","type":"string","indexed":false},
    {"name":"multicodec","type":"string","indexed":false},
    {"name":"multihashAlgorithm","type":"string","indexed":false},
    {"name":"multihashLength","type":"uint256","indexed":false},
    {"name":"dataTemplateCid","type":"string","indexed":false}]},
  {"type":"event","name":"SensorAddressUpdated","anonymous":false,"inputs":[
    {"name":"blockNumber","type":"uint256","indexed":false},
    {"name":"sensor","type":"address","indexed":false}]},
  {"type":"function","name":"merkleRoot","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"bytes32"}]},
  {"type":"function","name":"sensor","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"address"}]},
  {"type":"function","name":"cidDataFormat","stateMutability":"view","inputs":[],"outputs":[
    {"name":"multibase","type":"string"},
    {"name":"version","type":"string"},
    {"name":"multicodec","type":"string"},
    {"name":"multihashAlgorithm","type":"string"},
    {"name":"multihashLength","type":"uint256"},
    {"name":"dataTemplateCid","type":"string"}]}
]`

var contractABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		panic(fmt.Sprintf("invalid contract abi: %v", err))
	}
	return parsed
}()

// eventIDs returns the topic hashes of all events the reader decodes.
func eventIDs() []common.Hash {
	return []common.Hash{
		contractABI.Events[string(commitment.EventRootRequested)].ID,
		contractABI.Events[string(commitment.EventRootUpdated)].ID,
		contractABI.Events[string(commitment.EventCidFormatConfig)].ID,
		contractABI.Events[string(commitment.EventSensorConfig)].ID,
	}
}

// decodeLog unpacks a contract log into the event log it belongs to. Request
// and update events before floor are skipped.
func decodeLog(log types.Log, floor uint64, events *commitment.EventLog) error {
	if len(log.Topics) == 0 {
		return fmt.Errorf("log without topics in tx %s", log.TxHash.Hex())
	}
	event, err := contractABI.EventByID(log.Topics[0])
	if err != nil {
		// not one of ours
		return nil
	}
	values, err := event.Inputs.Unpack(log.Data)
	if err != nil {
		return fmt.Errorf("could not unpack %s event in tx %s: %w", event.Name, log.TxHash.Hex(), err)
	}
	if len(values) != len(event.Inputs) {
		return fmt.Errorf("%s event has %d values, expected %d", event.Name, len(values), len(event.Inputs))
	}
	blockNumber, err := toUint64(values[0])
	if err != nil {
		return fmt.Errorf("invalid block number in %s event: %w", event.Name, err)
	}

	switch commitment.EventType(event.Name) {
	case commitment.EventRootRequested:
		if blockNumber >= floor {
			events.RequestedBlocks = append(events.RequestedBlocks, blockNumber)
		}
	case commitment.EventRootUpdated:
		if blockNumber >= floor {
			events.Updated[blockNumber] = commitment.LeafUpdate{
				RootValue: common.Hash(values[1].([32]byte)),
				LeafRef:   values[2].(string),
			}
		}
	case commitment.EventCidFormatConfig:
		length, err := toUint64(values[5])
		if err != nil {
			return fmt.Errorf("invalid multihash length in %s event: %w", event.Name, err)
		}
		events.CidFormatConfigs[blockNumber] = commitment.CidFormatConfig{
			BlockNumber:        blockNumber,
			Multibase:          values[1].(string),
			Version:            values[2].(string),
			Multicodec:         values[3].(string),
			MultihashAlgorithm: values[4].(string),
			MultihashLength:    length,
			TemplateRef:        values[6].(string),
		}
	case commitment.EventSensorConfig:
		events.SensorConfigs[blockNumber] = values[1].(common.Address)
	}
	return nil
}

func toUint64(v interface{}) (uint64, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected value type %T", v)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("value %s out of range", n)
	}
	return n.Uint64(), nil
}
