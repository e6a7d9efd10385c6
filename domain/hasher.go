package domain

// Hasher is the core port for credential hashing.
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(hashed, plain string) bool
}
