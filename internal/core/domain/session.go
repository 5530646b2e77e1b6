package domain

import "time"

const (
	SessionTokenKey        = "token"
	shareAccessTokenPrefix = "auth_token_"
)

func ShareAccessKey(shareToken string) string {
	return shareAccessTokenPrefix + shareToken
}

// Identity is what whoami shows. It is read from the token claims without
// verifying the signature.
type Identity struct {
	Subject   string
	Email     string
	Name      string
	ExpiresAt time.Time
	Expired   bool
}
