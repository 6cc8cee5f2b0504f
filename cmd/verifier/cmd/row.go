package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sensorledger/integrity/model/commitment"
)

// ParseReading reads a single five-column row given inline or as @file.
func ParseReading(row string) (commitment.Reading, error) {
	data := []byte(row)
	if strings.HasPrefix(row, "@") {
		var err error
		data, err = os.ReadFile(strings.TrimPrefix(row, "@"))
		if err != nil {
			return commitment.Reading{}, fmt.Errorf("could not read row: %w", err)
		}
	}

	var fields []json.RawMessage
	err := json.Unmarshal(data, &fields)
	if err != nil {
		return commitment.Reading{}, fmt.Errorf("could not decode row: %w", err)
	}
	return commitment.ParseRow(fields)
}
