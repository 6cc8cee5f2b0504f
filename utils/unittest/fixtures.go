package unittest

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/sensorledger/integrity/model/commitment"
)

// LeafTemplate is a leaf template object in the layout the sensor firmware uses.
const LeafTemplate = `{
  "blockNumber": 0,
  "chainId": 0,
  "contractAddress": "",
  "units": {
    "temperature": "",
    "humidity": ""
  },
  "sensorSignature": "",
  "sensorData": {
    "timestamp": "",
    "temperature": 0,
    "humidity": 0
  }
}`

func DeploymentFixture() commitment.Deployment {
	return commitment.Deployment{
		ChainID:         11155111,
		ContractAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		TemperatureUnit: "°C",
		HumidityUnit:    "%",
		ProviderURL:     "http://localhost:8545",
	}
}

// CidFormatFixture returns a cid-format configuration producing base32 CIDv1
// raw sha2-256 leaves from the given template.
func CidFormatFixture(blockNumber uint64, templateRef string) commitment.CidFormatConfig {
	return commitment.CidFormatConfig{
		BlockNumber:        blockNumber,
		Multibase:          "base32",
		Version:            "cidv1",
		Multicodec:         "raw",
		MultihashAlgorithm: "sha2-256",
		MultihashLength:    32,
		TemplateRef:        templateRef,
	}
}

// SensorKeyFixture returns a fresh secp256k1 key and its ledger address.
func SensorKeyFixture(t testing.TB) (*ecdsa.PrivateKey, common.Address) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

// SignMessage signs msg as an EIP-191 personal message and returns the hex
// signature with a 27/28 recovery id, the way wallets produce it.
func SignMessage(t testing.TB, key *ecdsa.PrivateKey, msg string) string {
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

// ReadingFixture returns a reading for the given request block signed by key.
func ReadingFixture(t testing.TB, key *ecdsa.PrivateKey, blockNumber uint64, timestamps ...uint64) commitment.Reading {
	encoded, err := json.Marshal(timestamps)
	require.NoError(t, err)

	r := commitment.Reading{
		BlockNumber: blockNumber,
		Timestamp:   string(encoded),
		Temperature: commitment.RawValue(fmt.Sprintf("%d.5", 20+blockNumber%10)),
		Humidity:    commitment.RawValue(fmt.Sprintf("%d", 40+blockNumber%7)),
	}
	r.Signature = SignMessage(t, key, r.Message())
	return r
}

// ReadingRowFixture returns the raw five-column row of a reading.
func ReadingRowFixture(t testing.TB, r commitment.Reading) []json.RawMessage {
	blockNumber, err := json.Marshal(r.BlockNumber)
	require.NoError(t, err)
	timestamp, err := json.Marshal(r.Timestamp)
	require.NoError(t, err)
	signature, err := json.Marshal(r.Signature)
	require.NoError(t, err)

	return []json.RawMessage{
		blockNumber,
		timestamp,
		json.RawMessage(r.Temperature),
		json.RawMessage(r.Humidity),
		signature,
	}
}

// EventLogFixture returns an event log with the given request blocks, one
// cid-format and one sensor configuration at configBlock.
func EventLogFixture(configBlock uint64, templateRef string, signer common.Address, requests ...uint64) *commitment.EventLog {
	log := commitment.NewEventLog()
	log.RequestedBlocks = append(log.RequestedBlocks, requests...)
	log.CidFormatConfigs[configBlock] = CidFormatFixture(configBlock, templateRef)
	log.SensorConfigs[configBlock] = signer
	return log
}

// RootFixture returns a deterministic non-zero root.
func RootFixture(seed byte) common.Hash {
	return crypto.Keccak256Hash([]byte{seed})
}
