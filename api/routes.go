package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// MetricsEndpoint exposes the prometheus metrics of the prover
	MetricsEndpoint = "/metrics"
	// ProofsEndpoint is the endpoint for enqueuing a new proving job
	ProofsEndpoint = "/proofs"
	// ProofEndpoint is the endpoint to get the status and output of a job
	JobURLParam   = "jobId"
	ProofEndpoint = "/proofs/{" + JobURLParam + "}"
	// ContractsEndpoint is the endpoint for registering a contract instance
	// and its class
	ContractsEndpoint = "/contracts"
	// StateEndpoint is the endpoint for inserting settled note hashes,
	// nullifiers and master keys
	StateEndpoint = "/state"
)
