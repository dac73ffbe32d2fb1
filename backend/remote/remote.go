// Package remote reaches a PrivateKernelProver over JSON-RPC. Service
// exposes any prover backend and Client implements the prover interface on
// top of a connection to it.
package remote

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/kernelprover"
	"github.com/vocdoni/kernel-prover/log"
	"github.com/vocdoni/kernel-prover/types"
)

// Namespace is the JSON-RPC namespace of the prover methods.
const Namespace = "kernel"

var _ kernelprover.PrivateKernelProver = (*Client)(nil)

// Service exposes a prover backend as JSON-RPC methods.
type Service struct {
	backend kernelprover.PrivateKernelProver
}

// NewServer returns a JSON-RPC server exposing backend under Namespace.
func NewServer(backend kernelprover.PrivateKernelProver) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(Namespace, &Service{backend: backend}); err != nil {
		return nil, fmt.Errorf("could not register prover service: %w", err)
	}
	return srv, nil
}

func (s *Service) ComputeAppCircuitVerificationKey(ctx context.Context, bytecode types.HexBytes, functionName string) (*types.VerificationKey, error) {
	return s.backend.ComputeAppCircuitVerificationKey(ctx, bytecode, functionName)
}

func (s *Service) SimulateProofInit(ctx context.Context, in *circuits.PrivateKernelInitCircuitPrivateInputs) (*circuits.KernelOutput, error) {
	return s.backend.SimulateProofInit(ctx, in)
}

func (s *Service) SimulateProofInner(ctx context.Context, in *circuits.PrivateKernelInnerCircuitPrivateInputs) (*circuits.KernelOutput, error) {
	return s.backend.SimulateProofInner(ctx, in)
}

func (s *Service) SimulateProofReset(ctx context.Context, in *circuits.PrivateKernelResetCircuitPrivateInputs) (*circuits.KernelOutput, error) {
	return s.backend.SimulateProofReset(ctx, in)
}

func (s *Service) SimulateProofTail(ctx context.Context, in *circuits.PrivateKernelTailCircuitPrivateInputs) (*circuits.TailOutput, error) {
	return s.backend.SimulateProofTail(ctx, in)
}

func (s *Service) CreateClientIvcProof(ctx context.Context, bytecodes []types.HexBytes, witnesses []types.WitnessMap) (*circuits.ClientIvcProof, error) {
	log.Debugw("composing client ivc proof", "circuits", len(bytecodes))
	return s.backend.CreateClientIvcProof(ctx, bytecodes, witnesses)
}

// Client is a PrivateKernelProver backed by a remote Service.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the prover service at url.
func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("could not dial prover at %s: %w", url, err)
	}
	return NewClient(c), nil
}

// NewClient returns a client over an existing connection.
func NewClient(c *rpc.Client) *Client {
	return &Client{rpc: c}
}

// Close closes the connection.
func (c *Client) Close() {
	c.rpc.Close()
}

func call[T any](ctx context.Context, c *Client, method string, args ...any) (*T, error) {
	res := new(T)
	if err := c.rpc.CallContext(ctx, res, Namespace+"_"+method, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return res, nil
}

func (c *Client) ComputeAppCircuitVerificationKey(ctx context.Context, bytecode types.HexBytes, functionName string) (*types.VerificationKey, error) {
	return call[types.VerificationKey](ctx, c, "computeAppCircuitVerificationKey", bytecode, functionName)
}

func (c *Client) SimulateProofInit(ctx context.Context, in *circuits.PrivateKernelInitCircuitPrivateInputs) (*circuits.KernelOutput, error) {
	return call[circuits.KernelOutput](ctx, c, "simulateProofInit", in)
}

func (c *Client) SimulateProofInner(ctx context.Context, in *circuits.PrivateKernelInnerCircuitPrivateInputs) (*circuits.KernelOutput, error) {
	return call[circuits.KernelOutput](ctx, c, "simulateProofInner", in)
}

func (c *Client) SimulateProofReset(ctx context.Context, in *circuits.PrivateKernelResetCircuitPrivateInputs) (*circuits.KernelOutput, error) {
	return call[circuits.KernelOutput](ctx, c, "simulateProofReset", in)
}

func (c *Client) SimulateProofTail(ctx context.Context, in *circuits.PrivateKernelTailCircuitPrivateInputs) (*circuits.TailOutput, error) {
	return call[circuits.TailOutput](ctx, c, "simulateProofTail", in)
}

func (c *Client) CreateClientIvcProof(ctx context.Context, bytecodes []types.HexBytes, witnesses []types.WitnessMap) (*circuits.ClientIvcProof, error) {
	return call[circuits.ClientIvcProof](ctx, c, "createClientIvcProof", bytecodes, witnesses)
}
