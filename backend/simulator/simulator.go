// Package simulator provides a native PrivateKernelProver. It enforces the
// rules of the private kernel circuits over their inputs without building
// real circuits, and composes the resulting chain with the IVC chain circuit.
package simulator

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/circuits/ivc"
	"github.com/vocdoni/kernel-prover/log"
	"github.com/vocdoni/kernel-prover/state"
	"github.com/vocdoni/kernel-prover/types"
)

// Names of the simulated kernel circuits.
const (
	CircuitInit         = "private_kernel_init"
	CircuitInner        = "private_kernel_inner"
	CircuitReset        = "private_kernel_reset"
	CircuitTail         = "private_kernel_tail"
	CircuitTailToPublic = "private_kernel_tail_to_public"
)

// Circuits lists the simulated kernel circuits in VK tree order.
var Circuits = []string{CircuitInit, CircuitInner, CircuitReset, CircuitTail, CircuitTailToPublic}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// KernelBytecode returns the bytecode standing for a simulated kernel
// circuit.
func KernelBytecode(name string) types.HexBytes {
	return types.HexBytes("kernel-prover/simulator/" + name)
}

// KernelVerificationKeys returns the verification keys of the simulated
// kernel circuits, in VK tree order.
func KernelVerificationKeys() ([]circuits.NamedVerificationKey, error) {
	vks := make([]circuits.NamedVerificationKey, 0, len(Circuits))
	for _, name := range Circuits {
		vk, err := types.VerificationKeyFromBytes(KernelBytecode(name))
		if err != nil {
			return nil, err
		}
		vks = append(vks, circuits.NamedVerificationKey{Name: name, VK: *vk})
	}
	return vks, nil
}

// Simulator is a PrivateKernelProver running the kernel rules natively. It
// is safe for concurrent use.
type Simulator struct {
	vkTree   *circuits.VKTree
	caps     circuits.Capacities
	state    *state.State
	composer *ivc.Composer
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithCapacities sets the sizes of the kernel accumulated arrays.
func WithCapacities(caps circuits.Capacities) Option {
	return func(s *Simulator) {
		s.caps = caps
	}
}

// WithState makes the reset circuit check settled read requests against the
// roots of the provided world state.
func WithState(st *state.State) Option {
	return func(s *Simulator) {
		s.state = st
	}
}

// WithComposer sets the composer of the client IVC proofs.
func WithComposer(c *ivc.Composer) Option {
	return func(s *Simulator) {
		s.composer = c
	}
}

// New returns a simulator with the kernel verification keys of Circuits.
func New(opts ...Option) (*Simulator, error) {
	vks, err := KernelVerificationKeys()
	if err != nil {
		return nil, err
	}
	vkTree, err := circuits.NewVKTree(vks...)
	if err != nil {
		return nil, err
	}
	s := &Simulator{
		vkTree:   vkTree,
		caps:     circuits.DefaultCapacities(),
		composer: ivc.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// VKTree returns the tree of the kernel verification keys.
func (s *Simulator) VKTree() *circuits.VKTree {
	return s.vkTree
}

// ComputeAppCircuitVerificationKey derives the verification key of an app
// circuit from its bytecode.
func (s *Simulator) ComputeAppCircuitVerificationKey(ctx context.Context, bytecode types.HexBytes, functionName string) (*types.VerificationKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vk, err := types.VerificationKeyFromBytes(bytecode)
	if err != nil {
		return nil, fmt.Errorf("app circuit %s: %w", functionName, err)
	}
	return vk, nil
}

// witness returns the solved witness of a simulated circuit, committing to
// its inputs and outputs.
func witness(inputs, outputs any) (types.WitnessMap, error) {
	in, err := encMode.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("could not encode circuit inputs: %w", err)
	}
	out, err := encMode.Marshal(outputs)
	if err != nil {
		return nil, fmt.Errorf("could not encode circuit outputs: %w", err)
	}
	return types.WitnessMap{
		0: ivc.EntryDigest(crypto.Keccak256(in)),
		1: ivc.EntryDigest(crypto.Keccak256(out)),
	}, nil
}

func (s *Simulator) kernelOutput(name string, inputs any, pi circuits.PrivateKernelCircuitPublicInputs) (*circuits.KernelOutput, error) {
	vk, ok := s.vkTree.Key(name)
	if !ok {
		return nil, fmt.Errorf("unknown kernel circuit %s", name)
	}
	w, err := witness(inputs, pi)
	if err != nil {
		return nil, err
	}
	return &circuits.KernelOutput{
		PublicInputs:    pi,
		VerificationKey: *vk,
		OutputWitness:   w,
		Bytecode:        KernelBytecode(name),
	}, nil
}

// ChainEntries returns the IVC chain entries of the circuit executions.
func ChainEntries(bytecodes []types.HexBytes, witnesses []types.WitnessMap) ([]types.Fr, error) {
	if len(bytecodes) != len(witnesses) {
		return nil, fmt.Errorf("got %d bytecodes and %d witnesses", len(bytecodes), len(witnesses))
	}
	entries := make([]types.Fr, len(bytecodes))
	for i := range bytecodes {
		w, err := encMode.Marshal(witnesses[i])
		if err != nil {
			return nil, fmt.Errorf("could not encode witness %d: %w", i, err)
		}
		entries[i] = ivc.EntryDigest(crypto.Keccak256(bytecodes[i], w))
	}
	return entries, nil
}

// CreateClientIvcProof composes the circuit executions, in order, into one
// proof.
func (s *Simulator) CreateClientIvcProof(ctx context.Context, bytecodes []types.HexBytes, witnesses []types.WitnessMap) (*circuits.ClientIvcProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := ChainEntries(bytecodes, witnesses)
	if err != nil {
		return nil, err
	}
	proof, err := s.composer.Prove(entries)
	if err != nil {
		return nil, err
	}
	proofBytes, err := proof.Bytes()
	if err != nil {
		return nil, fmt.Errorf("could not encode client ivc proof: %w", err)
	}
	log.Debugw("client ivc proof created",
		"circuits", proof.Length,
		"segments", len(proof.Segments),
		"digest", proof.Digest.String())
	return &circuits.ClientIvcProof{
		Proof:           proofBytes,
		VerificationKey: proof.VerifyingKey,
	}, nil
}

// VerifyClientIvcProof checks that proof composes the circuit executions in
// the provided order.
func VerifyClientIvcProof(proof *circuits.ClientIvcProof, bytecodes []types.HexBytes, witnesses []types.WitnessMap) error {
	if proof.IsEmpty() {
		return fmt.Errorf("empty client ivc proof")
	}
	entries, err := ChainEntries(bytecodes, witnesses)
	if err != nil {
		return err
	}
	return ivc.Verify(proof.Proof, proof.VerificationKey, entries)
}
