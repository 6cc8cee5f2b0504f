package signature

import (
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorledger/integrity/model/commitment"
	"github.com/sensorledger/integrity/module/metrics"
	"github.com/sensorledger/integrity/utils/unittest"
)

func TestRecoverSigner(t *testing.T) {
	key, address := unittest.SensorKeyFixture(t)
	reading := unittest.ReadingFixture(t, key, 100, 1500, 1600)

	t.Run("prefixed signature", func(t *testing.T) {
		signer, err := RecoverSigner(reading)
		require.NoError(t, err)
		assert.Equal(t, address, signer)
	})

	t.Run("signature without prefix", func(t *testing.T) {
		r := reading
		r.Signature = strings.TrimPrefix(r.Signature, "0x")
		signer, err := RecoverSigner(r)
		require.NoError(t, err)
		assert.Equal(t, address, signer)
	})

	t.Run("different message recovers a different address", func(t *testing.T) {
		r := reading
		r.Humidity = commitment.RawValue("99")
		signer, err := RecoverSigner(r)
		require.NoError(t, err)
		assert.NotEqual(t, address, signer)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, sig := range []string{"", "0x1234", "not-hex", "0x" + strings.Repeat("00", 66)} {
			r := reading
			r.Signature = sig
			_, err := RecoverSigner(r)
			assert.Error(t, err, sig)
		}
	})
}

// TestRecoverKnownVector checks recovery against the personal_sign example
// published with web3.js accounts.sign.
func TestRecoverKnownVector(t *testing.T) {
	const (
		message   = "Some data"
		signature = "0xb91467e570a6466aa9e9876cbcd013baba02900b8979d43fe208a4a4f339f5fd6007e74cd82e037b800186422fc2da167c747ef045e5d18a5f5d4300f8e1a0291c"
	)
	expected := common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")

	signer, err := recoverMessage(message, signature)
	require.NoError(t, err)
	assert.Equal(t, expected, signer)

	signer, err = recoverMessage(message, strings.TrimPrefix(signature, "0x"))
	require.NoError(t, err)
	assert.Equal(t, expected, signer)

	// recovery id already reduced to 0/1
	reduced := signature[:len(signature)-2] + "01"
	signer, err = recoverMessage(message, reduced)
	require.NoError(t, err)
	assert.Equal(t, expected, signer)

	signer, err = recoverMessage("Some other data", signature)
	require.NoError(t, err)
	assert.NotEqual(t, expected, signer)
}

func TestVerifyCancelled(t *testing.T) {
	key, address := unittest.SensorKeyFixture(t)
	reading := unittest.ReadingFixture(t, key, 100, 1500)
	seq := commitment.NewSequence(nil, []commitment.Update{{
		RootUpdated: commitment.RootUpdated{BlockNumber: 105, LeafBlockRef: 100},
		DataPresent: true,
		Reading:     reading,
		Sensor:      commitment.SensorConfig{BlockNumber: 1, SignerAddress: address},
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewVerifier(unittest.Logger(), metrics.NewNoopCollector(), 2).Verify(ctx, seq)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerify(t *testing.T) {
	key, address := unittest.SensorKeyFixture(t)
	otherKey, _ := unittest.SensorKeyFixture(t)

	good := unittest.ReadingFixture(t, key, 100, 1500)
	forged := unittest.ReadingFixture(t, otherKey, 200, 2500)
	broken := unittest.ReadingFixture(t, key, 300, 3500)
	broken.Signature = "0xdeadbeef"

	sensor := commitment.SensorConfig{BlockNumber: 1, SignerAddress: address}
	seq := commitment.NewSequence(
		[]commitment.Request{{RootRequested: commitment.RootRequested{BlockNumber: 100}}},
		[]commitment.Update{
			{RootUpdated: commitment.RootUpdated{BlockNumber: 105, LeafBlockRef: 100}, DataPresent: true, Reading: good, Sensor: sensor},
			{RootUpdated: commitment.RootUpdated{BlockNumber: 205, LeafBlockRef: 200}, DataPresent: true, Reading: forged, Sensor: sensor},
			{RootUpdated: commitment.RootUpdated{BlockNumber: 305, LeafBlockRef: 300}, DataPresent: true, Reading: broken, Sensor: sensor},
			{RootUpdated: commitment.RootUpdated{BlockNumber: 405, LeafBlockRef: 400}, Sensor: sensor},
		},
	)

	v := NewVerifier(unittest.Logger(), metrics.NewNoopCollector(), 2)
	checked, ok, err := v.Verify(context.Background(), seq)
	require.NoError(t, err)
	assert.False(t, ok)

	updates := checked.Updates()
	require.Len(t, updates, 4)
	assert.True(t, updates[0].SignatureOK)
	assert.False(t, updates[1].SignatureOK)
	assert.False(t, updates[2].SignatureOK)
	assert.False(t, updates[3].SignatureOK)
	assert.False(t, updates[3].DataPresent)

	// only the valid update
	checked, ok, err = v.Verify(context.Background(), commitment.NewSequence(nil, []commitment.Update{seq.Updates()[0]}))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, checked.Updates()[0].SignatureOK)
}
