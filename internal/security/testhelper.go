package security

// NewTestTokenCodec returns a TokenCodec with a fixed secret for tests.
func NewTestTokenCodec() (*TokenCodec, error) {
	return NewTokenCodec("test-secret-key", "test-issuer")
}
