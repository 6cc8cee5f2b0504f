package logging

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/sensorledger/integrity/model/commitment"
)

func TestFields(t *testing.T) {
	assert.Equal(t, []uint64{150, 205}, UpdateBlocks([]commitment.RootUpdated{{BlockNumber: 150}, {BlockNumber: 205}}))
	assert.Equal(t, []uint64{100}, ReadingBlocks([]commitment.Reading{{BlockNumber: 100}}))
	assert.Empty(t, ReadingBlocks(nil))
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000001", Root(common.BigToHash(common.Big1)))
}
