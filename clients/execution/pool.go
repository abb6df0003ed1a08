package execution

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-dashboard/types"
)

// Pool holds the execution clients of all configured chains.
type Pool struct {
	logger logrus.FieldLogger

	clientsMutex  sync.Mutex
	clients       map[uint64][]*Client
	rrLastIndexes map[uint64]int
}

func NewPool(logger logrus.FieldLogger) *Pool {
	return &Pool{
		logger:        logger,
		clients:       map[uint64][]*Client{},
		rrLastIndexes: map[uint64]int{},
	}
}

// AddEndpoint registers an endpoint for its chain. The connection is opened on first use.
func (pool *Pool) AddEndpoint(endpoint *types.EndpointConfig) (*Client, error) {
	if endpoint.ChainId == 0 {
		return nil, fmt.Errorf("endpoint %v has no chain id", endpoint.Name)
	}

	client := NewClient(endpoint.Name, endpoint.Url, endpoint.ChainId, endpoint.Headers, pool.logger)

	pool.clientsMutex.Lock()
	defer pool.clientsMutex.Unlock()

	pool.clients[endpoint.ChainId] = append(pool.clients[endpoint.ChainId], client)
	return client, nil
}

// GetChainIDs returns the chains with at least one endpoint.
func (pool *Pool) GetChainIDs() []uint64 {
	pool.clientsMutex.Lock()
	defer pool.clientsMutex.Unlock()

	chainIDs := make([]uint64, 0, len(pool.clients))
	for chainID := range pool.clients {
		chainIDs = append(chainIDs, chainID)
	}
	sort.Slice(chainIDs, func(i, j int) bool {
		return chainIDs[i] < chainIDs[j]
	})
	return chainIDs
}

// GetClient returns a connected client for chainID, rotating between the chain's endpoints.
func (pool *Pool) GetClient(ctx context.Context, chainID uint64) (*Client, error) {
	pool.clientsMutex.Lock()
	clients := pool.clients[chainID]
	lastIdx, ok := pool.rrLastIndexes[chainID]
	if !ok {
		lastIdx = -1
	}
	startIdx := lastIdx + 1
	pool.clientsMutex.Unlock()

	if len(clients) == 0 {
		return nil, fmt.Errorf("no execution endpoint for chain %v", chainID)
	}

	var lastErr error
	for i := 0; i < len(clients); i++ {
		idx := (startIdx + i) % len(clients)
		client := clients[idx]

		if err := client.Initialize(ctx); err != nil {
			pool.logger.WithError(err).Warnf("execution client %v unavailable", client.GetName())
			lastErr = err
			continue
		}

		pool.clientsMutex.Lock()
		pool.rrLastIndexes[chainID] = idx
		pool.clientsMutex.Unlock()

		return client, nil
	}

	return nil, fmt.Errorf("no ready execution endpoint for chain %v: %w", chainID, lastErr)
}

// Close disconnects all clients.
func (pool *Pool) Close() {
	pool.clientsMutex.Lock()
	defer pool.clientsMutex.Unlock()

	for _, clients := range pool.clients {
		for _, client := range clients {
			client.Close()
		}
	}
}
