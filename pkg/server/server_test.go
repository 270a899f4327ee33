package server

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/airloots/seal/pkg/cache"
	"github.com/airloots/seal/pkg/fullnode"
	"github.com/airloots/seal/pkg/masterkey"
	"github.com/airloots/seal/pkg/ptb"
	"github.com/airloots/seal/pkg/ratelimit"
	"github.com/airloots/seal/pkg/sealerrors"
	"github.com/airloots/seal/pkg/session"
)

type stubVerifier struct {
	pub ed25519.PublicKey
}

func (v stubVerifier) Verify(address [32]byte, message []byte, signature []byte) bool {
	return ed25519.Verify(v.pub, message, signature)
}

func encodePTB(t *testing.T, cmds []ptb.MoveCall) []byte {
	t.Helper()
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(cmds)))
	buf.Write(tmp[:n])
	for _, c := range cmds {
		buf.Write(c.PackageID[:])
		writeField(&buf, []byte(c.Module))
		writeField(&buf, []byte(c.Function))
		writeField(&buf, c.FirstArg)
	}
	return buf.Bytes()
}

func writeField(buf *bytes.Buffer, b []byte) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(b)))
	buf.Write(tmp[:n])
	buf.Write(b)
}

type harness struct {
	server       *Server
	walletPriv   ed25519.PrivateKey
	walletPub    ed25519.PublicKey
	sessionPriv  ed25519.PrivateKey
	sessionPub   ed25519.PublicKey
	packageID    [32]byte
	address      [32]byte
	fullNode     *fullnode.StubClient
	now          time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("ALICE_BLS_KEY", "0x0000000000000000000000000000000000000000000000000000000000002a")

	walletPub, walletPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	sessionPub, sessionPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	pkg := [32]byte{1}
	addr := [32]byte{9}

	table, err := masterkey.NewTable([]*masterkey.Client{
		{
			Name:       "alice",
			Variant:    masterkey.VariantPlain,
			EnvVar:     "ALICE_BLS_KEY",
			PackageIDs: [][32]byte{pkg},
		},
	}, nil)
	require.NoError(t, err)

	policyCache, err := cache.NewPolicyCache(10 * time.Second)
	require.NoError(t, err)
	uskCache, err := cache.NewUskCache(time.Minute)
	require.NoError(t, err)

	stubFullNode := fullnode.NewStubClient()
	now := time.Now()

	deps := Deps{
		MasterTable:       table,
		FullNode:          stubFullNode,
		PolicyCache:       policyCache,
		UskCache:          uskCache,
		WalletVerifier:    stubVerifier{pub: walletPub},
		AddressLimiter:    ratelimit.NewAddressLimiter(1000, 1000),
		Semaphore:         ratelimit.NewSemaphore(10),
		Logger:            zap.NewNop(),
		SupportedVersions: []string{"v1"},
		KeyServerObjectID: pkg,
		FullNodeDeadline:  2 * time.Second,
		Now:               func() time.Time { return now },
	}
	srv := NewServer(deps, ":0")

	return &harness{
		server:      srv,
		walletPriv:  walletPriv,
		walletPub:   walletPub,
		sessionPriv: sessionPriv,
		sessionPub:  sessionPub,
		packageID:   pkg,
		address:     addr,
		fullNode:    stubFullNode,
		now:         now,
	}
}

func (h *harness) buildRequest(t *testing.T, innerID []byte, ttlMinutes uint16, createdAt time.Time) fetchKeysRequest {
	t.Helper()
	cert := &session.Certificate{
		Address:         h.address,
		PackageID:       h.packageID,
		SessionPK:       h.sessionPub,
		TTLMinutes:      ttlMinutes,
		CreatedAtMillis: createdAt.UnixMilli(),
	}
	msg := session.PersonalMessage(cert)
	cert.WalletSignature = ed25519.Sign(h.walletPriv, []byte(msg))

	ptbBytes := encodePTB(t, []ptb.MoveCall{
		{PackageID: h.packageID, Module: "access", Function: "seal_approve", FirstArg: innerID},
	})

	digest := session.Digest(cert)
	sigMsg := append(append(append([]byte{}, ptbBytes...), cert.SessionPK...), digest...)
	reqSig := ed25519.Sign(h.sessionPriv, sigMsg)

	return fetchKeysRequest{
		PTB:                ptbBytes,
		EncKey:              cert.SessionPK,
		EncVerificationKey: cert.WalletSignature,
		RequestSignature:   reqSig,
		Certificate: certificateWire{
			Address:         cert.Address[:],
			PackageID:       cert.PackageID[:],
			SessionPK:       cert.SessionPK,
			TTLMinutes:      cert.TTLMinutes,
			CreatedAtMillis: cert.CreatedAtMillis,
			WalletSignature: cert.WalletSignature,
		},
	}
}

func postFetchKeys(t *testing.T, h *harness, req fetchKeysRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	httpReq := httptest.NewRequest("POST", "/v1/fetch_keys", bytes.NewReader(body))
	httpReq.Header.Set("Client-Sdk-Version", "v1")
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, httpReq)
	return rec
}

func TestFetchKeysHappyPath(t *testing.T) {
	h := newHarness(t)
	req := h.buildRequest(t, []byte("inner-id-a"), 10, h.now)

	rec := postFetchKeys(t, h, req)
	require.Equal(t, 200, rec.Code)

	var env envelopeWire
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	plaintext, err := openEnvelopeForTest(req.EncKey, h.sessionPub, &env)
	require.NoError(t, err)

	var resp fetchKeysResponse
	require.NoError(t, json.Unmarshal(plaintext, &resp))
	require.Len(t, resp.DecryptionKeys, 1)
	assert.Equal(t, []byte("inner-id-a"), resp.DecryptionKeys[0].ID)
	assert.NotEmpty(t, resp.DecryptionKeys[0].Key)
}

func TestFetchKeysMismatchedVerificationKeyRejected(t *testing.T) {
	h := newHarness(t)
	req := h.buildRequest(t, []byte("inner-id-a"), 10, h.now)
	req.EncVerificationKey = []byte("not-the-wallet-signature")

	rec := postFetchKeys(t, h, req)
	require.Equal(t, sealerrors.InvalidSignature.HTTPStatus(), rec.Code)
}

func TestFetchKeysPolicyAbortReturnsNoAccess(t *testing.T) {
	h := newHarness(t)
	h.fullNode.Allow[h.address] = false

	req := h.buildRequest(t, []byte("inner-id-a"), 10, h.now)
	rec := postFetchKeys(t, h, req)

	require.Equal(t, sealerrors.NoAccess.HTTPStatus(), rec.Code)
	var errResp errorWire
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, string(sealerrors.NoAccess), errResp.Error)
}

func TestFetchKeysExpiredSessionRejected(t *testing.T) {
	h := newHarness(t)
	createdAt := h.now.Add(-11 * time.Minute)
	req := h.buildRequest(t, []byte("inner-id-a"), 10, createdAt)

	rec := postFetchKeys(t, h, req)
	require.Equal(t, sealerrors.ExpiredSession.HTTPStatus(), rec.Code)
}

func TestFetchKeysLongerTTLAccepted(t *testing.T) {
	h := newHarness(t)
	createdAt := h.now.Add(-11 * time.Minute)
	req := h.buildRequest(t, []byte("inner-id-a"), 20, createdAt)

	rec := postFetchKeys(t, h, req)
	assert.Equal(t, 200, rec.Code)
}

func TestServiceEndpoint(t *testing.T) {
	h := newHarness(t)
	httpReq := httptest.NewRequest("GET", "/v1/service", nil)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, httpReq)

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "key_server_object_id"))
}

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t)
	httpReq := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, httpReq)
	assert.Equal(t, 200, rec.Code)

	var body healthWire
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.MasterTableReady)
	assert.True(t, body.FullNodeReady)
}

func TestNewServerDefaultsHealthCheckInterval(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, defaultHealthCheckInterval, h.server.deps.HealthCheckInterval)
}

func TestNewServerHonorsConfiguredHealthCheckInterval(t *testing.T) {
	h := newHarness(t)
	deps := h.server.deps
	deps.HealthCheckInterval = 3 * time.Second
	srv := NewServer(deps, ":0")
	assert.Equal(t, 3*time.Second, srv.deps.HealthCheckInterval)
}

func TestHealthEndpointReflectsFullNodeProbe(t *testing.T) {
	h := newHarness(t)
	h.server.fullNodeHealthy.Store(false)

	httpReq := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, httpReq)

	assert.Equal(t, 503, rec.Code)
	var body healthWire
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.FullNodeReady)
}
