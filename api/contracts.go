package api

import (
	"encoding/json"
	"net/http"

	"github.com/vocdoni/kernel-prover/log"
)

// registerContract stores a contract class and one of its instances
// POST /contracts
func (a *API) registerContract(w http.ResponseWriter, r *http.Request) {
	c := &Contract{}
	if err := json.NewDecoder(r.Body).Decode(c); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if c.Class.Name == "" {
		ErrInvalidContract.With("missing class name").Write(w)
		return
	}
	instance, err := a.oracle.RegisterContract(&c.Class, &c.Instance)
	if err != nil {
		ErrInvalidContract.WithErr(err).Write(w)
		return
	}
	log.Infow("contract registered", "address", instance.Address.String(), "name", c.Class.Name)
	httpWriteJSON(w, &ContractResponse{
		Address: instance.Address,
		ClassID: instance.ContractClassID,
	})
}
