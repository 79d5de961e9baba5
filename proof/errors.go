package proof

import "fmt"

// EmptyKeyPathError means a commitment key's Merkle path had zero
// elements, so there was no path[0] to derive a storage slot from.
type EmptyKeyPathError struct {
	Index int
}

func (e *EmptyKeyPathError) Error() string {
	return fmt.Sprintf("proof: commitment key %d has an empty path", e.Index)
}

// ProofArityError means the execution layer returned a different number
// of storage proofs than the number of keys requested.
type ProofArityError struct {
	Requested int
	Got       int
}

func (e *ProofArityError) Error() string {
	return fmt.Sprintf("proof: requested %d storage proofs, got %d", e.Requested, e.Got)
}
