package testutil

// FixedRunIDGenerator generates the same run ID every time.
//
// The same scenario with the same FixedRunIDGenerator produces a
// byte-identical result, which golden snapshots rely on.
type FixedRunIDGenerator struct {
	ID string
}

// Generate returns the fixed run ID.
func (g FixedRunIDGenerator) Generate() string {
	return g.ID
}
