package models

// TokenPair is the credential pair minted by login, bootstrapAdmin and
// refreshToken. Both values are opaque to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// IsZero reports whether neither token is set.
func (p TokenPair) IsZero() bool { return p.AccessToken == "" && p.RefreshToken == "" }
