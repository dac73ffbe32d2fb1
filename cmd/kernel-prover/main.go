package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/vocdoni/kernel-prover/api"
	"github.com/vocdoni/kernel-prover/api/client"
	"github.com/vocdoni/kernel-prover/backend/remote"
	"github.com/vocdoni/kernel-prover/backend/simulator"
	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/config"
	"github.com/vocdoni/kernel-prover/kernelprover"
	"github.com/vocdoni/kernel-prover/log"
	"github.com/vocdoni/kernel-prover/oracle"
	"github.com/vocdoni/kernel-prover/service"
	"github.com/vocdoni/kernel-prover/state"
	"github.com/vocdoni/kernel-prover/storage"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

var debugFile io.Closer

func main() {
	app := &cli.App{
		Name:                 "kernel-prover",
		Usage:                "builds the private kernel proof chain of transactions",
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log.level",
				Usage:   "log level (debug, info, warn, error)",
				Value:   config.DefaultLogLevel,
				EnvVars: []string{config.Env("LOG_LEVEL")},
			},
			&cli.StringFlag{
				Name:    "log.output",
				Usage:   "log output (stdout, stderr or a file path)",
				Value:   config.DefaultLogOutput,
				EnvVars: []string{config.Env("LOG_OUTPUT")},
			},
			&cli.StringFlag{
				Name:    "log.debugDir",
				Usage:   "directory of a rotating log file receiving every debug message",
				EnvVars: []string{config.Env("LOG_DEBUG_DIR")},
			},
			&cli.StringFlag{
				Name:    "log.debug",
				Usage:   "comma separated module patterns, the ones prefixed with '-' are kept out of the log output",
				EnvVars: []string{"DEBUG"},
			},
		},
		Before: func(cctx *cli.Context) error {
			log.SetIgnoredModules(cctx.String("log.debug"))
			if dir := cctx.String("log.debugDir"); dir != "" {
				closer, err := log.SetDebugFile(dir)
				if err != nil {
					return err
				}
				debugFile = closer
			}
			log.Init(cctx.String("log.level"), cctx.String("log.output"), nil)
			return nil
		},
		After: func(*cli.Context) error {
			if debugFile != nil {
				return debugFile.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			simulatorCommand(),
			submitCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API and the proving workers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "datadir",
				Usage:   "directory where the database is stored",
				Value:   config.DefaultDataDir(),
				EnvVars: []string{config.Env("DATADIR")},
			},
			&cli.StringFlag{
				Name:    "api.host",
				Usage:   "host the HTTP API listens on",
				Value:   config.DefaultAPIHost,
				EnvVars: []string{config.Env("API_HOST")},
			},
			&cli.IntFlag{
				Name:    "api.port",
				Usage:   "port the HTTP API listens on",
				Value:   config.DefaultAPIPort,
				EnvVars: []string{config.Env("API_PORT")},
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "number of transactions proved concurrently",
				Value:   config.DefaultWorkers,
				EnvVars: []string{config.Env("WORKERS")},
			},
			&cli.StringFlag{
				Name:    "prover.rpc",
				Usage:   "JSON-RPC endpoint of a remote kernel prover, the local simulator is used if empty",
				EnvVars: []string{config.Env("PROVER_RPC")},
			},
			&cli.StringFlag{
				Name:    "vks.url",
				Usage:   "URL of the kernel verification keys artifact",
				EnvVars: []string{config.Env("VKS_URL")},
			},
			&cli.StringFlag{
				Name:    "vks.hash",
				Usage:   "sha256 of the kernel verification keys artifact, the simulator keys are used if empty",
				EnvVars: []string{config.Env("VKS_HASH")},
			},
			&cli.BoolFlag{
				Name:    "record-inputs",
				Usage:   "store the inputs of every kernel circuit",
				EnvVars: []string{config.Env("RECORD_INPUTS")},
			},
		},
		Action: serve,
	}
}

func simulatorCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulator",
		Usage: "expose the kernel circuit simulator over JSON-RPC",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Usage:   "host the JSON-RPC server listens on",
				Value:   config.DefaultAPIHost,
				EnvVars: []string{config.Env("SIMULATOR_HOST")},
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "port the JSON-RPC server listens on",
				Value:   config.DefaultSimulatorPort,
				EnvVars: []string{config.Env("SIMULATOR_PORT")},
			},
		},
		Action: runSimulator,
	}
}

func submitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "send a proof request to a running kernel prover and wait for the proof",
		ArgsUsage: "<request.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api.url",
				Usage:   "URL of the kernel prover HTTP API",
				Value:   fmt.Sprintf("http://localhost:%d", config.DefaultAPIPort),
				EnvVars: []string{config.Env("API_URL")},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "timeout of every HTTP request",
				Value: client.DefaultTimeout,
			},
			&cli.IntFlag{
				Name:  "retries",
				Usage: "attempts of every HTTP request before giving up",
				Value: client.DefaultRetries,
			},
			&cli.DurationFlag{
				Name:  "wait",
				Usage: "maximum time to wait for the proof, zero only enqueues the request",
				Value: 10 * time.Minute,
			},
		},
		Action: submit,
	}
}

func serve(cctx *cli.Context) error {
	ctx, cancel := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	database, err := metadb.New(db.TypePebble, filepath.Join(cctx.String("datadir"), "db"))
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	stg := storage.New(database)
	defer stg.Close()
	st, err := state.New(database, []byte(config.StateDBPrefix))
	if err != nil {
		return fmt.Errorf("could not open world state: %w", err)
	}

	vkTree, err := loadVKTree(cctx.String("vks.url"), cctx.String("vks.hash"))
	if err != nil {
		return err
	}

	var backend kernelprover.PrivateKernelProver
	if url := cctx.String("prover.rpc"); url != "" {
		client, err := remote.Dial(ctx, url)
		if err != nil {
			return fmt.Errorf("could not connect to remote prover: %w", err)
		}
		defer client.Close()
		backend = client
		log.Infow("using remote kernel prover", "url", url)
	} else {
		if backend, err = simulator.New(simulator.WithState(st)); err != nil {
			return err
		}
		log.Infow("using kernel simulator")
	}

	o := oracle.New(stg, st, vkTree)
	kpConf := &kernelprover.Config{
		Oracle:     o,
		Prover:     backend,
		VKTreeRoot: vkTree.Root(),
	}
	if cctx.Bool("record-inputs") {
		kpConf.Recorder = stg
	}
	kp, err := kernelprover.New(kpConf)
	if err != nil {
		return err
	}

	prover := service.NewProver(stg, kp, cctx.Int("workers"))
	if err := prover.Start(ctx); err != nil {
		return err
	}
	defer prover.Stop()

	apiService := service.NewAPI(stg, o, cctx.String("api.host"), cctx.Int("api.port"))
	if err := apiService.Start(ctx); err != nil {
		return err
	}
	defer apiService.Stop()

	log.Infow("kernel prover started", "vkTreeRoot", vkTree.Root().String())
	<-ctx.Done()
	log.Infow("received signal, shutting down")
	return nil
}

func submit(cctx *cli.Context) error {
	if cctx.NArg() != 1 {
		return fmt.Errorf("expected the path of a proof request")
	}
	data, err := os.ReadFile(cctx.Args().First())
	if err != nil {
		return err
	}
	req := &api.ProofRequest{}
	if err := json.Unmarshal(data, req); err != nil {
		return fmt.Errorf("could not decode proof request: %w", err)
	}

	apiClient, err := client.New(cctx.String("api.url"))
	if err != nil {
		return fmt.Errorf("could not connect to kernel prover: %w", err)
	}
	apiClient.SetTimeout(cctx.Duration("timeout"))
	apiClient.SetRetries(cctx.Int("retries"))

	jobID, err := apiClient.NewProof(req)
	if err != nil {
		return err
	}
	log.Infow("proof request enqueued", "jobId", jobID)
	if cctx.Duration("wait") == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(cctx.Context, cctx.Duration("wait"))
	defer cancel()
	job, err := apiClient.WaitForProof(ctx, jobID, time.Second)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(job.Output, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// loadVKTree returns the VK tree built from the artifact with the provided
// hash, or the tree of the simulated kernel circuits if no hash is set.
func loadVKTree(url, hash string) (*circuits.VKTree, error) {
	if hash == "" {
		vks, err := simulator.KernelVerificationKeys()
		if err != nil {
			return nil, err
		}
		return circuits.NewVKTree(vks...)
	}
	artifact, err := circuits.NewArtifact("kernel verification keys", url, hash)
	if err != nil {
		return nil, err
	}
	if err := service.DownloadArtifacts(config.DefaultArtifactsTimeout, artifact); err != nil {
		return nil, fmt.Errorf("could not load verification keys: %w", err)
	}
	return circuits.ParseVKTree(artifact.Content)
}

func runSimulator(cctx *cli.Context) error {
	ctx, cancel := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sim, err := simulator.New()
	if err != nil {
		return err
	}
	server, err := remote.NewServer(sim)
	if err != nil {
		return err
	}
	defer server.Stop()

	addr := fmt.Sprintf("%s:%d", cctx.String("host"), cctx.Int("port"))
	httpServer := &http.Server{Addr: addr, Handler: server, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Infow("starting kernel simulator", "address", addr, "vkTreeRoot", sim.VKTree().Root().String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Infow("received signal, shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
