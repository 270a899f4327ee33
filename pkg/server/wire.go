package server

// certificateWire is the JSON shape of SessionCertificate on the wire.
type certificateWire struct {
	Address         []byte `json:"address"`
	PackageID       []byte `json:"package_id"`
	SessionPK       []byte `json:"session_pk"`
	TTLMinutes      uint16 `json:"ttl_minutes"`
	CreatedAtMillis int64  `json:"created_at"`
	MVRName         string `json:"mvr_name,omitempty"`
	WalletSignature []byte `json:"wallet_signature"`
}

// fetchKeysRequest is the JSON body of POST /v1/fetch_keys (spec §4.5).
type fetchKeysRequest struct {
	PTB                []byte          `json:"ptb"`
	EncKey             []byte          `json:"enc_key"`
	EncVerificationKey []byte          `json:"enc_verification_key"`
	RequestSignature   []byte          `json:"request_signature"`
	Certificate        certificateWire `json:"certificate"`
}

type decryptionKeyWire struct {
	ID  []byte `json:"id"`
	Key []byte `json:"key"`
}

// fetchKeysResponse is the plaintext response body before stage 8's
// envelope encryption.
type fetchKeysResponse struct {
	DecryptionKeys []decryptionKeyWire `json:"decryption_keys"`
}

// envelopeWire is what actually goes over the wire for a successful
// fetch_keys call: fetchKeysResponse encrypted per stage 8.
type envelopeWire struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

type errorWire struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type serviceWire struct {
	KeyServerObjectID string   `json:"key_server_object_id"`
	PublicKey         string   `json:"public_key"`
	SupportedVersions []string `json:"supported_versions"`
	GitRevision       string   `json:"git_revision"`
}

type healthWire struct {
	MasterTableReady bool `json:"master_table_ready"`
	FullNodeReady    bool `json:"full_node_ready"`
}
