package commitment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ReadingFields is the number of columns in a raw reading row:
// block number, timestamp list, temperature, humidity, signature.
const ReadingFields = 5

// RawValue is a JSON value kept exactly as it was received.
type RawValue []byte

// String returns the textual form used when building signed messages: the
// unquoted content for JSON strings and the raw text for everything else.
func (v RawValue) String() string {
	trimmed := bytes.TrimSpace(v)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

// MarshalJSON emits the value unchanged.
func (v RawValue) MarshalJSON() ([]byte, error) {
	if len(bytes.TrimSpace(v)) == 0 {
		return []byte("null"), nil
	}
	return bytes.TrimSpace(v), nil
}

// UnmarshalJSON stores a copy of the raw value.
func (v *RawValue) UnmarshalJSON(data []byte) error {
	*v = append((*v)[0:0], data...)
	return nil
}

// Reading is a single telemetry row from the off-chain store.
type Reading struct {
	// BlockNumber identifies the RootRequested the reading answers.
	BlockNumber uint64
	// Timestamp is the JSON-encoded list of measurement timestamps, verbatim.
	Timestamp   string
	Temperature RawValue
	Humidity    RawValue
	Signature   string
}

// Message returns the exact byte string the sensor signed.
func (r Reading) Message() string {
	return r.Timestamp + "," + r.Temperature.String() + "," + r.Humidity.String()
}

// Timestamps decodes the timestamp list of the reading.
func (r Reading) Timestamps() ([]float64, error) {
	var timestamps []float64
	err := json.Unmarshal([]byte(r.Timestamp), &timestamps)
	if err != nil {
		return nil, fmt.Errorf("could not decode timestamp list %q: %w", r.Timestamp, err)
	}
	return timestamps, nil
}

func (r Reading) String() string {
	return fmt.Sprintf("reading@%d(%s)", r.BlockNumber, r.Message())
}

// ParseRow converts a raw five-column row into a Reading.
func ParseRow(row []json.RawMessage) (Reading, error) {
	if len(row) != ReadingFields {
		return Reading{}, fmt.Errorf("invalid row: expected %d fields, got %d", ReadingFields, len(row))
	}

	blockNumber, err := parseBlockNumber(row[0])
	if err != nil {
		return Reading{}, fmt.Errorf("invalid block number: %w", err)
	}

	var timestamp string
	err = json.Unmarshal(row[1], &timestamp)
	if err != nil {
		return Reading{}, fmt.Errorf("invalid timestamp list for block %d: %w", blockNumber, err)
	}

	var signature string
	err = json.Unmarshal(row[4], &signature)
	if err != nil {
		return Reading{}, fmt.Errorf("invalid signature for block %d: %w", blockNumber, err)
	}

	return Reading{
		BlockNumber: blockNumber,
		Timestamp:   timestamp,
		Temperature: RawValue(bytes.TrimSpace(row[2])),
		Humidity:    RawValue(bytes.TrimSpace(row[3])),
		Signature:   signature,
	}, nil
}

// ParseRows converts every row, failing on the first malformed one.
func ParseRows(rows [][]json.RawMessage) ([]Reading, error) {
	readings := make([]Reading, 0, len(rows))
	for i, row := range rows {
		reading, err := ParseRow(row)
		if err != nil {
			return nil, fmt.Errorf("could not parse row %d: %w", i, err)
		}
		readings = append(readings, reading)
	}
	return readings, nil
}

// parseBlockNumber accepts both JSON numbers and numeric strings.
func parseBlockNumber(raw json.RawMessage) (uint64, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = string(bytes.TrimSpace(raw))
	}
	return strconv.ParseUint(text, 10, 64)
}
