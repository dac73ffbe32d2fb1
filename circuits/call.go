package circuits

import "github.com/vocdoni/kernel-prover/types"

// TxContext holds the chain parameters a transaction is bound to.
type TxContext struct {
	ChainID types.Fr `json:"chainId"`
	Version types.Fr `json:"version"`
}

// FunctionData identifies the function a call targets.
type FunctionData struct {
	Selector  types.FunctionSelector `json:"selector"`
	IsPrivate bool                   `json:"isPrivate"`
}

// TxRequest is the signed request that starts a transaction: the account
// entrypoint called with the provided arguments.
type TxRequest struct {
	Origin       types.AztecAddress `json:"origin"`
	FunctionData FunctionData       `json:"functionData"`
	ArgsHash     types.Fr           `json:"argsHash"`
	TxContext    TxContext          `json:"txContext"`
}

// Hash returns the hash of the request.
func (r *TxRequest) Hash() (types.Fr, error) {
	isPrivate := types.ZeroFr
	if r.FunctionData.IsPrivate {
		isPrivate = types.NewFr(1)
	}
	return types.PoseidonHash(
		r.Origin.ToField(),
		r.FunctionData.Selector.ToField(),
		isPrivate,
		r.ArgsHash,
		r.TxContext.ChainID,
		r.TxContext.Version,
	)
}

// CallContext describes who called a function and in which contract it runs.
type CallContext struct {
	MsgSender        types.AztecAddress     `json:"msgSender"`
	ContractAddress  types.AztecAddress     `json:"contractAddress"`
	FunctionSelector types.FunctionSelector `json:"functionSelector"`
	IsStaticCall     bool                   `json:"isStaticCall"`
}

// PrivateCircuitPublicInputs are the public inputs of an app circuit, the
// side effects and requests a private function produced.
type PrivateCircuitPublicInputs struct {
	CallContext                    CallContext            `json:"callContext"`
	ArgsHash                       types.Fr               `json:"argsHash"`
	ReturnsHash                    types.Fr               `json:"returnsHash"`
	MinRevertibleSideEffectCounter uint32                 `json:"minRevertibleSideEffectCounter"`
	IsFeePayer                     bool                   `json:"isFeePayer"`
	NoteHashReadRequests           []ReadRequest          `json:"noteHashReadRequests"`
	NullifierReadRequests          []ReadRequest          `json:"nullifierReadRequests"`
	KeyValidationRequests          []KeyValidationRequest `json:"keyValidationRequests"`
	NoteHashes                     []NoteHash             `json:"noteHashes"`
	Nullifiers                     []Nullifier            `json:"nullifiers"`
	PublicCallRequests             []PublicCallRequest    `json:"publicCallRequests"`
	PublicTeardownCallRequest      PublicCallRequest      `json:"publicTeardownCallRequest"`
	StartSideEffectCounter         uint32                 `json:"startSideEffectCounter"`
	EndSideEffectCounter           uint32                 `json:"endSideEffectCounter"`
}

// PrivateCallStackItem is one call of the private execution as seen by the
// kernel.
type PrivateCallStackItem struct {
	ContractAddress types.AztecAddress         `json:"contractAddress"`
	FunctionData    FunctionData               `json:"functionData"`
	PublicInputs    PrivateCircuitPublicInputs `json:"publicInputs"`
}
