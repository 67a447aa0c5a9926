package newsletter

import "github.com/google/uuid"

// TokenIssuer hands out opaque single-use tokens for verify and unsubscribe links.
type TokenIssuer interface {
	NewToken() string
}

// UUIDTokenIssuer issues random version 4 UUIDs.
type UUIDTokenIssuer struct{}

func (UUIDTokenIssuer) NewToken() string {
	return uuid.NewString()
}
