package circuits

import "github.com/vocdoni/kernel-prover/types"

// SimulateOutput is the result of simulating a circuit: its public inputs,
// verification key, the solved witness and the bytecode that was executed.
type SimulateOutput[T any] struct {
	PublicInputs    T                     `json:"publicInputs"`
	VerificationKey types.VerificationKey `json:"verificationKey"`
	OutputWitness   types.WitnessMap      `json:"outputWitness"`
	Bytecode        types.HexBytes        `json:"bytecode"`
}

// KernelOutput is the output of the init, inner and reset circuits.
type KernelOutput = SimulateOutput[PrivateKernelCircuitPublicInputs]

// ClientIvcProof is the proof composing every circuit of a transaction.
type ClientIvcProof struct {
	Proof           types.HexBytes `json:"proof"`
	VerificationKey types.HexBytes `json:"verificationKey"`
}

// IsEmpty reports whether the proof is unset.
func (p *ClientIvcProof) IsEmpty() bool {
	return p == nil || len(p.Proof) == 0
}

// TailOutput is the output of the tail circuit. ClientIvcProof is set once
// the whole chain has been composed.
type TailOutput struct {
	SimulateOutput[PrivateKernelTailCircuitPublicInputs]
	ClientIvcProof *ClientIvcProof `json:"clientIvcProof,omitempty"`
}
