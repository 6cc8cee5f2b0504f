package verification

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sensorledger/integrity/model/commitment"
)

// ConfigKind names the configuration event kind a lookup was made for.
type ConfigKind string

const (
	ConfigCidFormat ConfigKind = "cid_format"
	ConfigSensor    ConfigKind = "sensor"
)

// MissingConfigurationError indicates that no configuration event of the given
// kind precedes an update. Verification cannot continue without it.
type MissingConfigurationError struct {
	Kind        ConfigKind
	BlockNumber uint64
}

func NewMissingConfigurationError(kind ConfigKind, blockNumber uint64) *MissingConfigurationError {
	return &MissingConfigurationError{
		Kind:        kind,
		BlockNumber: blockNumber,
	}
}

func (e *MissingConfigurationError) Error() string {
	return fmt.Sprintf("no %s configuration precedes update at block %d", e.Kind, e.BlockNumber)
}

func IsMissingConfigurationError(err error) bool {
	var missingConfigurationError *MissingConfigurationError
	return errors.As(err, &missingConfigurationError)
}

// UnmatchedDataError indicates that stored readings reference no retained update event.
type UnmatchedDataError struct {
	Readings []commitment.Reading
}

func NewUnmatchedDataError(readings []commitment.Reading) *UnmatchedDataError {
	return &UnmatchedDataError{
		Readings: readings,
	}
}

func (e *UnmatchedDataError) Error() string {
	blocks := make([]string, 0, len(e.Readings))
	for _, r := range e.Readings {
		blocks = append(blocks, fmt.Sprintf("%d", r.BlockNumber))
	}
	return fmt.Sprintf("%d readings match no update event (block numbers: %s)",
		len(e.Readings), strings.Join(blocks, ", "))
}

func IsUnmatchedDataError(err error) bool {
	var unmatchedDataError *UnmatchedDataError
	return errors.As(err, &unmatchedDataError)
}

// StorageFetchError indicates that a content reference could not be resolved.
type StorageFetchError struct {
	Ref string
	err error
}

func NewStorageFetchError(ref string, err error) *StorageFetchError {
	return &StorageFetchError{
		Ref: ref,
		err: err,
	}
}

func (e *StorageFetchError) Error() string {
	return fmt.Sprintf("could not fetch content %s: %v", e.Ref, e.err)
}

func (e *StorageFetchError) Unwrap() error {
	return e.err
}

func IsStorageFetchError(err error) bool {
	var storageFetchError *StorageFetchError
	return errors.As(err, &storageFetchError)
}
