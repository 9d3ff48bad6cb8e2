package ports

// RandomSource yields cryptographically secure random bytes.
type RandomSource interface {
	NextBytes(n int) ([]byte, error)
}

// RandomSourceFunc adapts a function to RandomSource.
type RandomSourceFunc func(n int) ([]byte, error)

// NextBytes calls f(n).
func (f RandomSourceFunc) NextBytes(n int) ([]byte, error) { return f(n) }
