package service

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/vocdoni/kernel-prover/api"
	"github.com/vocdoni/kernel-prover/oracle"
	"github.com/vocdoni/kernel-prover/storage"
)

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	storage *storage.Storage
	oracle  *oracle.Oracle
	api     *api.API
	mu      sync.Mutex
	host    string
	port    int
}

// NewAPI creates a new APIService instance.
func NewAPI(stg *storage.Storage, o *oracle.Oracle, host string, port int) *APIService {
	return &APIService{
		storage: stg,
		oracle:  o,
		host:    host,
		port:    port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(_ context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.api != nil {
		return fmt.Errorf("service already running")
	}

	var err error
	as.api, err = api.New(&api.APIConfig{
		Host:    as.host,
		Port:    as.port,
		Storage: as.storage,
		Oracle:  as.oracle,
	})
	if err != nil {
		as.api = nil
		return fmt.Errorf("failed to start API server: %w", err)
	}
	return nil
}

// Stop shuts down the API server. The storage is owned by the caller and
// is not closed.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.api == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = as.api.Close(ctx)
	as.api = nil
}

// HostPort returns the host and port of the API server. Once started, the
// port is the one the server is actually listening on.
func (as *APIService) HostPort() (string, int) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.api != nil {
		if addr, ok := as.api.Addr().(*net.TCPAddr); ok {
			return as.host, addr.Port
		}
	}
	return as.host, as.port
}
