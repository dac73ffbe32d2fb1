package storage

import (
	"github.com/vocdoni/kernel-prover/types"
)

// PrivateFunction is a private function of a contract class.
type PrivateFunction struct {
	Selector types.FunctionSelector `json:"selector"`
	VKHash   types.Fr               `json:"vkHash"`
	Name     string                 `json:"name"`
}

// ContractClass is a registered contract class, identified by ID.
type ContractClass struct {
	ID                       types.Fr          `json:"id"`
	Name                     string            `json:"name"`
	ArtifactHash             types.Fr          `json:"artifactHash"`
	PublicBytecodeCommitment types.Fr          `json:"publicBytecodeCommitment"`
	PrivateFunctions         []PrivateFunction `json:"privateFunctions"`
}

// ContractInstance is a deployed contract.
type ContractInstance struct {
	Address            types.AztecAddress `json:"address"`
	ContractClassID    types.Fr           `json:"contractClassId"`
	Salt               types.Fr           `json:"salt"`
	Deployer           types.AztecAddress `json:"deployer"`
	InitializationHash types.Fr           `json:"initializationHash"`
	PublicKeysHash     types.Fr           `json:"publicKeysHash"`
}

// SetContractClass stores a contract class.
func (s *Storage) SetContractClass(class *ContractClass) error {
	return s.setArtifact(contractClassPrefix, class.ID.Bytes(), class)
}

// ContractClass returns the class with the provided id, or ErrNotFound.
func (s *Storage) ContractClass(id types.Fr) (*ContractClass, error) {
	class := &ContractClass{}
	if err := s.getArtifact(contractClassPrefix, id.Bytes(), class); err != nil {
		return nil, err
	}
	return class, nil
}

// SetContractInstance stores a contract instance.
func (s *Storage) SetContractInstance(instance *ContractInstance) error {
	return s.setArtifact(contractInstancePrefix, instance.Address.ToField().Bytes(), instance)
}

// ContractInstance returns the instance deployed at address, or ErrNotFound.
func (s *Storage) ContractInstance(address types.AztecAddress) (*ContractInstance, error) {
	instance := &ContractInstance{}
	if err := s.getArtifact(contractInstancePrefix, address.ToField().Bytes(), instance); err != nil {
		return nil, err
	}
	return instance, nil
}

type masterKey struct {
	SkM types.Fr `cbor:"0,keyasint"`
}

// SetMasterSecretKey stores the master secret key of the public key whose
// hash is pkMHash.
func (s *Storage) SetMasterSecretKey(pkMHash, skM types.Fr) error {
	return s.setArtifact(masterKeyPrefix, pkMHash.Bytes(), &masterKey{SkM: skM})
}

// MasterSecretKey returns the master secret key for pkMHash, or ErrNotFound.
func (s *Storage) MasterSecretKey(pkMHash types.Fr) (types.Fr, error) {
	k := &masterKey{}
	if err := s.getArtifact(masterKeyPrefix, pkMHash.Bytes(), k); err != nil {
		return types.Fr{}, err
	}
	return k.SkM, nil
}
