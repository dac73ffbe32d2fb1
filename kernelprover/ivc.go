package kernelprover

import (
	"context"
	"fmt"

	"github.com/vocdoni/kernel-prover/circuits"
)

// composeClientIvcProof composes the whole chain, in order, into one proof.
func composeClientIvcProof(ctx context.Context, prover PrivateKernelProver, chain *proofChain) (*circuits.ClientIvcProof, error) {
	if chain.len() == 0 {
		return nil, ErrComposition.With("empty proof chain")
	}
	proof, err := prover.CreateClientIvcProof(ctx, chain.bytecodes, chain.witnesses)
	if err != nil {
		return nil, ErrComposition.WithErr(err)
	}
	if proof.IsEmpty() {
		return nil, ErrComposition.With(fmt.Sprintf("empty proof for a chain of %d circuits", chain.len()))
	}
	return proof, nil
}
