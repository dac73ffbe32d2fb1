package types

// MasterPublicKeyHash returns the hash of the master public key of skM.
func MasterPublicKeyHash(skM Fr) (Fr, error) {
	return PoseidonHash(skM)
}

// AppSecretKey derives the secret key of skM for one contract.
func AppSecretKey(skM Fr, contract AztecAddress) (Fr, error) {
	return PoseidonHashWithSeparator(GeneratorIndexSkApp, skM, contract.ToField())
}
