package domain

import "strings"

const (
	credentialAgentPrefix = "agent"
)

// Credential holds an encrypted secret: a seed for HD wallets, a private key
// for imported accounts or a service-agent secret.
type Credential struct {
	ID         string `json:"id"`
	Credential string `json:"credential"`
}

func (c Credential) RecordID() string { return c.ID }

// BuildAgentCredentialID ...
func BuildAgentCredentialID(name string) string {
	return credentialAgentPrefix + IDSeparator + name
}

// IsAgentCredentialID ...
func IsAgentCredentialID(id string) bool {
	return strings.HasPrefix(id, credentialAgentPrefix+IDSeparator)
}

// HDSeed is the secret stored for HD wallets.
type HDSeed struct {
	Entropy string `json:"entropy"`
	Seed    string `json:"seed"`
}

// ImportedKey is the secret stored for imported accounts.
type ImportedKey struct {
	PrivateKey string `json:"privateKey"`
}
