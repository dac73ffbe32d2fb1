package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vocdoni/kernel-prover/state"
)

// updateState inserts settled note hashes, nullifiers and master secret keys
// POST /state
func (a *API) updateState(w http.ResponseWriter, r *http.Request) {
	update := &StateUpdate{}
	if err := json.NewDecoder(r.Body).Decode(update); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if len(update.NoteHashes) == 0 && len(update.Nullifiers) == 0 && len(update.MasterSecretKeys) == 0 {
		ErrInvalidStateUpdate.With("empty update").Write(w)
		return
	}
	st := a.oracle.State()
	res := &StateResponse{}
	var err error
	if len(update.NoteHashes) > 0 {
		if res.FirstNoteHashIndex, err = st.AddNoteHashes(update.NoteHashes...); err != nil {
			ErrStorageFailure.Withf("could not add note hashes: %v", err).Write(w)
			return
		}
	}
	if len(update.Nullifiers) > 0 {
		if err := st.AddNullifiers(update.Nullifiers...); err != nil {
			if errors.Is(err, state.ErrNullifierExists) {
				ErrInvalidStateUpdate.WithErr(err).Write(w)
				return
			}
			ErrStorageFailure.Withf("could not add nullifiers: %v", err).Write(w)
			return
		}
	}
	for _, skM := range update.MasterSecretKeys {
		if _, err := a.oracle.RegisterMasterSecretKey(skM); err != nil {
			ErrStorageFailure.WithErr(err).Write(w)
			return
		}
	}
	if res.NoteHashRoot, err = st.NoteHashRoot(); err != nil {
		ErrStorageFailure.WithErr(err).Write(w)
		return
	}
	if res.NullifierRoot, err = st.NullifierRoot(); err != nil {
		ErrStorageFailure.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, res)
}
