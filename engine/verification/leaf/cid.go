package leaf

import (
	"fmt"
	"strconv"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"

	"github.com/sensorledger/integrity/model/commitment"
)

// InvalidFormatError indicates that a cid-format configuration cannot be used
// to build a content identifier.
type InvalidFormatError struct {
	Format commitment.CidFormatConfig
	err    error
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid cid format configured at block %d: %v", e.Format.BlockNumber, e.err)
}

func (e *InvalidFormatError) Unwrap() error {
	return e.err
}

func invalidFormat(format commitment.CidFormatConfig, msg string, args ...interface{}) error {
	return &InvalidFormatError{Format: format, err: fmt.Errorf(msg, args...)}
}

// CidVersion extracts the CID version from a version label such as "cidv1".
// The last character of the label is the version digit.
func CidVersion(label string) (uint64, error) {
	if label == "" {
		return 0, fmt.Errorf("empty version label")
	}
	return strconv.ParseUint(label[len(label)-1:], 10, 64)
}

// EncodeLeaf hashes data and wraps the digest into a content identifier of
// the configured version and codec. CIDv1 is always rendered in base32 and
// the digest has the algorithm's default length; the configured multibase and
// multihash length are not used.
func EncodeLeaf(data []byte, format commitment.CidFormatConfig) (string, error) {
	code, ok := mh.Names[format.MultihashAlgorithm]
	if !ok {
		return "", invalidFormat(format, "unknown multihash algorithm %q", format.MultihashAlgorithm)
	}
	digest, err := mh.Sum(data, code, -1)
	if err != nil {
		return "", invalidFormat(format, "could not hash leaf: %w", err)
	}

	version, err := CidVersion(format.Version)
	if err != nil {
		return "", invalidFormat(format, "invalid cid version %q: %w", format.Version, err)
	}

	var codec multicodec.Code
	err = codec.Set(format.Multicodec)
	if err != nil {
		return "", invalidFormat(format, "unknown multicodec %q: %w", format.Multicodec, err)
	}

	switch version {
	case 0:
		if codec != multicodec.DagPb || code != mh.SHA2_256 {
			return "", invalidFormat(format, "cidv0 requires dag-pb and sha2-256, got %s and %s",
				format.Multicodec, format.MultihashAlgorithm)
		}
		return cid.NewCidV0(digest).String(), nil
	case 1:
		return cid.NewCidV1(uint64(codec), digest).String(), nil
	default:
		return "", invalidFormat(format, "unsupported cid version %d", version)
	}
}
