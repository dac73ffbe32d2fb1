// Package kernelprover drives the private kernel circuits over the trace of
// a private execution and composes every circuit run into a client IVC
// proof.
package kernelprover

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/execution"
	"github.com/vocdoni/kernel-prover/log"
	"github.com/vocdoni/kernel-prover/protocolcontracts"
	"github.com/vocdoni/kernel-prover/types"
)

// Config holds the collaborators of a KernelProver.
type Config struct {
	Oracle ProvingDataOracle
	Prover PrivateKernelProver
	// VKTreeRoot is the root of the tree of kernel verification keys.
	VKTreeRoot types.Fr
	// Capacities of the kernel accumulated arrays. Zero values take the
	// protocol defaults.
	Capacities circuits.Capacities
	// Recorder, if set, receives every circuit input.
	Recorder InputsRecorder
}

// KernelProver proves transactions. It keeps no state between calls to
// Prove, which can run concurrently.
type KernelProver struct {
	oracle                   ProvingDataOracle
	prover                   PrivateKernelProver
	vkTreeRoot               types.Fr
	protocolContractTreeRoot types.Fr
	caps                     circuits.Capacities
	recorder                 InputsRecorder
}

// New returns a KernelProver for the provided configuration.
func New(conf *Config) (*KernelProver, error) {
	if conf == nil || conf.Oracle == nil || conf.Prover == nil {
		return nil, fmt.Errorf("oracle and prover are required")
	}
	if conf.VKTreeRoot.IsZero() {
		return nil, fmt.Errorf("missing vk tree root")
	}
	protocolRoot, err := protocolcontracts.Root()
	if err != nil {
		return nil, fmt.Errorf("could not compute protocol contract tree root: %w", err)
	}
	caps := conf.Capacities
	if caps == (circuits.Capacities{}) {
		caps = circuits.DefaultCapacities()
	}
	return &KernelProver{
		oracle:                   conf.Oracle,
		prover:                   conf.Prover,
		vkTreeRoot:               conf.VKTreeRoot,
		protocolContractTreeRoot: protocolRoot,
		caps:                     caps,
		recorder:                 conf.Recorder,
	}, nil
}

func (k *KernelProver) record(tag string, inputs any) {
	if k.recorder != nil {
		k.recorder.RecordInputs(tag, inputs)
	}
}

// simulate runs one kernel circuit, accounting for it in the metrics and
// wrapping its failure as a circuit simulation error.
func simulate[I any, O any](ctx context.Context, circuit string, fn func(context.Context, *I) (*O, error), inputs *I) (*O, error) {
	circuitSimulations.WithLabelValues(circuit).Inc()
	out, err := fn(ctx, inputs)
	if err != nil {
		circuitSimulationErrors.WithLabelValues(circuit).Inc()
		return nil, ErrCircuitSimulation.Withf("%s circuit", circuit).WithErr(err)
	}
	if out == nil {
		circuitSimulationErrors.WithLabelValues(circuit).Inc()
		return nil, ErrCircuitSimulation.Withf("%s circuit returned no output", circuit)
	}
	return out, nil
}

// Prove runs the kernel circuits over the execution trace rooted at result
// and returns the tail output with the client IVC proof attached.
//
// The calls are visited in pre-order. The first one is verified by the init
// circuit and every other one by an inner circuit. Reset circuits run before
// an inner circuit when the accumulated data would overflow, and before the
// tail circuit until every request is validated.
func (k *KernelProver) Prove(ctx context.Context, txRequest *circuits.TxRequest, result *execution.Result) (*circuits.TailOutput, error) {
	start := time.Now()
	out, err := k.prove(ctx, txRequest, result)
	if err != nil {
		provesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	provesTotal.WithLabelValues("ok").Inc()
	proveDuration.Observe(time.Since(start).Seconds())
	return out, nil
}

func (k *KernelProver) prove(ctx context.Context, txRequest *circuits.TxRequest, result *execution.Result) (*circuits.TailOutput, error) {
	if txRequest == nil || result == nil {
		return nil, fmt.Errorf("missing tx request or execution result")
	}
	summary, err := execution.Summarize(result)
	if err != nil {
		return nil, fmt.Errorf("invalid execution result: %w", err)
	}

	stack := []*execution.Result{result}
	output := &circuits.KernelOutput{PublicInputs: circuits.EmptyPrivateKernelCircuitPublicInputs()}
	chain := &proofChain{}
	resets := 0
	firstIteration := true

	for len(stack) > 0 {
		if !firstIteration {
			if output, err = k.resetLoop(ctx, output, stack, summary, chain, &resets); err != nil {
				return nil, err
			}
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nested := slices.Clone(current.NestedExecutions)
		slices.Reverse(nested)
		stack = append(stack, nested...)

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		functionName, err := k.oracle.GetDebugFunctionName(ctx, current.ContractAddress(), current.Selector())
		if err != nil {
			return nil, ErrLookupFailure.Withf("function name of %s at %s", current.Selector(), current.ContractAddress()).WithErr(err)
		}
		appVK, err := nonNil(k.prover.ComputeAppCircuitVerificationKey(ctx, current.Acir, functionName))
		if err != nil {
			return nil, ErrCircuitSimulation.Withf("app verification key of %s", functionName).WithErr(err)
		}
		chain.push(current.Acir, current.PartialWitness)

		privateCall, err := buildPrivateCallData(ctx, k.oracle, current, appVK)
		if err != nil {
			return nil, err
		}

		if firstIteration {
			inputs := &circuits.PrivateKernelInitCircuitPrivateInputs{
				TxRequest:                *txRequest,
				VKTreeRoot:               k.vkTreeRoot,
				ProtocolContractTreeRoot: k.protocolContractTreeRoot,
				PrivateCall:              *privateCall,
			}
			k.record(TagInitInputs, inputs)
			if output, err = simulate(ctx, circuitInit, k.prover.SimulateProofInit, inputs); err != nil {
				return nil, err
			}
		} else {
			previousKernel, err := previousKernelData(ctx, k.oracle, output)
			if err != nil {
				return nil, err
			}
			inputs := &circuits.PrivateKernelInnerCircuitPrivateInputs{
				PreviousKernel: *previousKernel,
				PrivateCall:    *privateCall,
			}
			k.record(TagInnerInputs, inputs)
			if output, err = simulate(ctx, circuitInner, k.prover.SimulateProofInner, inputs); err != nil {
				return nil, err
			}
		}
		chain.push(output.Bytecode, output.OutputWitness)
		log.Debugw("kernel circuit simulated",
			"function", functionName,
			"init", firstIteration,
			"chain", chain.len())
		firstIteration = false
	}

	if output, err = k.resetLoop(ctx, output, nil, summary, chain, &resets); err != nil {
		return nil, err
	}

	previousKernel, err := previousKernelData(ctx, k.oracle, output)
	if err != nil {
		return nil, err
	}
	log.Debugw("calling private kernel tail",
		"minRevertibleSideEffectCounter", previousKernel.PublicInputs.MinRevertibleSideEffectCounter,
		"splitCounter", summary.ValidationRequestsSplitCounter)
	tailInputs := &circuits.PrivateKernelTailCircuitPrivateInputs{
		PreviousKernel:                 *previousKernel,
		ValidationRequestsSplitCounter: summary.ValidationRequestsSplitCounter,
	}
	k.record(TagTailInputs, tailInputs)
	tailOutput, err := simulate(ctx, circuitTail, k.prover.SimulateProofTail, tailInputs)
	if err != nil {
		return nil, err
	}
	chain.push(tailOutput.Bytecode, tailOutput.OutputWitness)

	proof, err := composeClientIvcProof(ctx, k.prover, chain)
	if err != nil {
		return nil, err
	}
	tailOutput.ClientIvcProof = proof
	proofChainLength.Observe(float64(chain.len()))
	log.Infow("transaction proved",
		"calls", execution.Count(result),
		"resets", resets,
		"chain", chain.len(),
		"hasPublicCalls", summary.HasPublicCalls)
	return tailOutput, nil
}

// resetLoop runs reset circuits over output until no more is needed. A new
// builder is created after every reset, from the new output.
func (k *KernelProver) resetLoop(
	ctx context.Context,
	output *circuits.KernelOutput,
	stack []*execution.Result,
	summary *execution.Summary,
	chain *proofChain,
	resets *int,
) (*circuits.KernelOutput, error) {
	builder := newResetBuilder(output, stack, summary.NoteHashNullifierCounterMap, summary.ValidationRequestsSplitCounter, k.caps)
	for builder.needsReset() {
		inputs, err := builder.build(ctx, k.oracle, summary.NoteHashLeafIndexMap)
		if err != nil {
			return nil, err
		}
		k.record(TagResetInputs, inputs)
		if output, err = simulate(ctx, circuitReset, k.prover.SimulateProofReset, inputs); err != nil {
			return nil, err
		}
		chain.push(output.Bytecode, output.OutputWitness)
		*resets++
		log.Debugw("reset circuit simulated",
			"dimensions", fmt.Sprintf("%+v", inputs.Dimensions),
			"final", len(stack) == 0)
		builder = newResetBuilder(output, stack, summary.NoteHashNullifierCounterMap, summary.ValidationRequestsSplitCounter, k.caps)
	}
	return output, nil
}

// previousKernelData wraps a kernel output with the membership witness of
// its verification key, as the input of the next kernel circuit.
func previousKernelData(ctx context.Context, oracle ProvingDataOracle, output *circuits.KernelOutput) (*circuits.PrivateKernelData, error) {
	w, err := nonNil(oracle.GetVKMembershipWitness(ctx, output.VerificationKey))
	if err != nil {
		return nil, ErrLookupFailure.With("previous kernel vk membership witness").WithErr(err)
	}
	if err := w.CheckHeight(types.VKTreeHeight); err != nil {
		return nil, ErrLookupFailure.With("previous kernel vk membership witness").WithErr(err)
	}
	return &circuits.PrivateKernelData{
		PublicInputs:    output.PublicInputs,
		VerificationKey: output.VerificationKey,
		VKIndex:         w.LeafIndex,
		VKPath:          w.SiblingPath,
	}, nil
}
