package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sensorledger/integrity/module"
	"github.com/sensorledger/integrity/module/chain"
	"github.com/sensorledger/integrity/module/content"
)

// Services bundles the collaborators of a verification run.
type Services struct {
	Reader    *chain.Reader
	Content   *content.Cache
	datastore content.Datastore
}

// Close releases the content cache datastore.
func (s *Services) Close() {
	err := s.datastore.Close()
	if err != nil {
		log.Warn().Err(err).Msg("could not close content cache")
	}
}

// InitServices connects to the ledger and opens the content cache.
func InitServices(ctx context.Context, config Config, metrics module.ContentCacheMetrics) (*Services, error) {
	client, err := chain.Dial(ctx, config.Endpoint())
	if err != nil {
		return nil, err
	}

	reader, err := chain.NewReader(log.Logger, client, config.Deployment().Address(),
		chain.WithStartBlock(config.StartBlock),
		chain.WithPageSize(config.PageSize),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create commitment reader: %w", err)
	}

	datastore, err := content.OpenDatastore(log.Logger, config.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("could not open content cache: %w", err)
	}

	gatewayConfig := content.DefaultGatewayConfig()
	gatewayConfig.URL = config.Gateway
	gatewayConfig.RequestsPerSecond = config.GatewayRate
	gateway := content.NewGateway(log.Logger, metrics, gatewayConfig)

	cache, err := content.NewCache(log.Logger, metrics, gateway,
		content.NewBlobstore(datastore.Datastore()), content.DefaultCacheSize)
	if err != nil {
		_ = datastore.Close()
		return nil, err
	}

	return &Services{
		Reader:    reader,
		Content:   cache,
		datastore: datastore,
	}, nil
}

// PrettyPrint writes v as indented JSON to stdout.
func PrettyPrint(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("could not encode output")
	}
	fmt.Println(string(data))
}
