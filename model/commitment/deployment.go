package commitment

import (
	"github.com/ethereum/go-ethereum/common"
)

// Deployment is the immutable description of the contract deployment a run
// verifies against. It is shared read-only by all stages.
type Deployment struct {
	ChainID uint64
	// ContractAddress is kept exactly as configured since it is part of every leaf.
	ContractAddress string
	TemperatureUnit string
	HumidityUnit    string
	ProviderURL     string
}

// Address returns the contract address as a typed ledger address.
func (d Deployment) Address() common.Address {
	return common.HexToAddress(d.ContractAddress)
}
