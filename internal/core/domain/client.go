package domain

// EmitterClient is a platform service credential permitted to emit events
// over the HTTP emission surface. The secret key is stored AES-256-GCM
// encrypted and decrypted only while verifying a request signature.
type EmitterClient struct {
	Name         string `json:"name"`
	AccessKey    string `json:"access_key"`
	SecretKeyEnc string `json:"-"` // Encrypted, never expose
}

// Operator is an administrative credential. API keys are held as Argon2id
// hashes; the plaintext key is exchanged for a JWT at the token endpoint.
type Operator struct {
	KeyID      string `json:"key_id"`
	APIKeyHash string `json:"-"`
}
