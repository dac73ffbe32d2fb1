package service

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/kernel-prover/storage"
)

func TestAPIService(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)

	// Port 0 lets the OS choose an available port
	apiService := NewAPI(env.stg, env.oracle, "127.0.0.1", 0)
	ctx := context.Background()

	c.Assert(apiService.Start(ctx), qt.IsNil)
	defer apiService.Stop()
	_, port := apiService.HostPort()
	c.Assert(port, qt.Not(qt.Equals), 0)

	// Test stopping and restarting
	apiService.Stop()
	c.Assert(apiService.Start(ctx), qt.IsNil)

	// Test starting an already running service
	c.Assert(apiService.Start(ctx), qt.ErrorMatches, "service already running")

	// the storage is still usable after stopping the service
	apiService.Stop()
	_, err := env.stg.PendingJobs()
	c.Assert(err, qt.IsNil)
	_, err = env.stg.Job("missing")
	c.Assert(err, qt.ErrorIs, storage.ErrNotFound)
}
