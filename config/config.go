// Package config holds the defaults of the kernel prover node.
package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultAPIHost is the interface the HTTP API listens on.
	DefaultAPIHost = "0.0.0.0"
	// DefaultAPIPort is the port of the HTTP API.
	DefaultAPIPort = 9090
	// DefaultSimulatorPort is the port the JSON-RPC kernel simulator listens on.
	DefaultSimulatorPort = 9091
	// DefaultWorkers is the number of proving jobs processed concurrently.
	DefaultWorkers = 2
	// DefaultLogLevel is the log level used when none is provided.
	DefaultLogLevel = "info"
	// DefaultLogOutput is where logs are written to when no output is provided.
	DefaultLogOutput = "stdout"
	// DefaultArtifactsTimeout bounds the download of the circuit artifacts.
	DefaultArtifactsTimeout = 20 * time.Minute

	// EnvPrefix prefixes the environment variables read by the command line.
	EnvPrefix = "KERNEL_PROVER_"

	// StateDBPrefix is the prefix of the world state keys in the database.
	StateDBPrefix = "ws/"
)

// DefaultDataDir returns the directory where the node keeps its database.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "kernel-prover")
	}
	return filepath.Join(home, ".kernel-prover")
}

// Env returns the environment variable name for a setting.
func Env(name string) string {
	return EnvPrefix + name
}
