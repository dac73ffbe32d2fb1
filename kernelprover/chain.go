package kernelprover

import "github.com/vocdoni/kernel-prover/types"

// proofChain is the ordered list of circuit executions of a transaction, in
// the order they have to be composed.
type proofChain struct {
	bytecodes []types.HexBytes
	witnesses []types.WitnessMap
}

func (c *proofChain) push(bytecode types.HexBytes, witness types.WitnessMap) {
	c.bytecodes = append(c.bytecodes, bytecode)
	c.witnesses = append(c.witnesses, witness)
}

func (c *proofChain) len() int {
	return len(c.bytecodes)
}
