package server

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/airloots/seal/pkg/cache"
	"github.com/airloots/seal/pkg/ibe"
	"github.com/airloots/seal/pkg/ptb"
	"github.com/airloots/seal/pkg/sealerrors"
	"github.com/airloots/seal/pkg/session"
)

// handleFetchKeys runs the 8-stage pipeline of spec §4.5.
func (s *Server) handleFetchKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reqID := uuid.New().String()
	w.Header().Set("X-Request-Id", reqID)
	ctx := withRequestID(r.Context(), reqID)
	r = r.WithContext(ctx)

	var req fetchKeysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorCtx(r.Context(), w, sealerrors.New(sealerrors.MalformedRequest, "invalid JSON body"))
		return
	}

	// Stage 1: version gate.
	if !s.supportsVersion(r.Header.Get("Client-Sdk-Version")) {
		s.writeErrorCtx(r.Context(), w, sealerrors.New(sealerrors.MalformedRequest, "unsupported client_sdk_version"))
		return
	}

	cert, err := decodeCertificate(req.Certificate)
	if err != nil {
		s.writeErrorCtx(r.Context(), w, err)
		return
	}

	// Stage 2: certificate validation.
	if err := session.ValidateCertificate(cert, s.deps.WalletVerifier, s.deps.Now()); err != nil {
		s.writeErrorCtx(r.Context(), w, err)
		return
	}

	// enc_verification_key is the same wallet signature the certificate
	// already carries (spec §4.5 request body); check it matches rather
	// than decoding it and letting it go unread.
	if subtle.ConstantTimeCompare(req.EncVerificationKey, cert.WalletSignature) != 1 {
		s.writeErrorCtx(r.Context(), w, sealerrors.New(sealerrors.InvalidSignature, "enc_verification_key does not match certificate wallet signature"))
		return
	}

	// Stage 3: request-signature validation.
	if err := session.ValidateRequestSignature(cert, req.PTB, req.RequestSignature); err != nil {
		s.writeErrorCtx(r.Context(), w, err)
		return
	}

	// Rate limit / backpressure gate ahead of stage 4-5's heavier work.
	if !s.deps.AddressLimiter.Allow(cert.Address) {
		s.writeErrorCtx(r.Context(), w, sealerrors.New(sealerrors.Overloaded, "rate limit exceeded for address"))
		return
	}
	if !s.deps.Semaphore.TryAcquire() {
		s.writeErrorCtx(r.Context(), w, sealerrors.New(sealerrors.Overloaded, "server at capacity"))
		return
	}
	defer s.deps.Semaphore.Release()

	// Stage 4: PTB shape validation.
	tx, err := ptb.Parse(req.PTB)
	if err != nil {
		s.writeErrorCtx(r.Context(), w, err)
		return
	}
	innerIDs, err := ptb.Validate(tx, cert.PackageID, s.deps.MasterTable.Registered)
	if err != nil {
		s.writeErrorCtx(r.Context(), w, err)
		return
	}

	// Stage 5: policy evaluation, with deadline and cache/singleflight.
	ctx, cancel := context.WithTimeout(r.Context(), s.deps.FullNodeDeadline)
	defer cancel()

	policyKey := cache.PolicyKey(req.PTB, cert.Address)
	allowed, err := s.deps.PolicyCache.GetOrEvaluate(ctx, policyKey, func(ctx context.Context) (bool, error) {
		res, err := s.deps.FullNode.DryRunTransaction(ctx, req.PTB, cert.Address)
		if err != nil {
			return false, err
		}
		return !res.Aborted, nil
	})
	if err != nil {
		s.writeErrorCtx(r.Context(), w, translateUpstreamError(ctx, err))
		return
	}
	if !allowed {
		s.writeErrorCtx(r.Context(), w, sealerrors.New(sealerrors.NoAccess, "policy evaluation denied access"))
		return
	}

	// Stage 6: master-key selection.
	sk, err := s.deps.MasterTable.Resolve(cert.PackageID)
	if err != nil {
		s.writeErrorCtx(r.Context(), w, err)
		return
	}
	clientName := s.deps.MasterTable.ClientNameFor(cert.PackageID)
	priv := ibe.PrivateKeyFromScalar(sk)

	// Stage 7: share extraction, in the request's de-duplicated order.
	keys := make([]decryptionKeyWire, 0, len(innerIDs))
	for _, innerID := range innerIDs {
		uskKey := cache.UskKey(clientName, fullID(cert.PackageID, innerID))
		uskBytes, err := s.deps.UskCache.GetOrExtract(uskKey, func() ([]byte, error) {
			usk, err := ibe.Extract(priv, cert.PackageID[:], innerID)
			if err != nil {
				return nil, err
			}
			return usk.Marshal(), nil
		})
		if err != nil {
			s.writeErrorCtx(r.Context(), w, sealerrors.Wrap(sealerrors.Internal, "share extraction failed", err))
			return
		}
		keys = append(keys, decryptionKeyWire{ID: innerID, Key: uskBytes})
	}

	plaintext, err := json.Marshal(fetchKeysResponse{DecryptionKeys: keys})
	if err != nil {
		s.writeErrorCtx(r.Context(), w, sealerrors.Wrap(sealerrors.Internal, "encoding response", err))
		return
	}

	// Stage 8: response envelope.
	env, err := sealEnvelope(req.EncKey, cert.SessionPK, plaintext)
	if err != nil {
		s.writeErrorCtx(r.Context(), w, sealerrors.Wrap(sealerrors.Internal, "sealing response envelope", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(env)
}

func fullID(packageID [32]byte, innerID []byte) []byte {
	out := make([]byte, 0, 32+len(innerID))
	out = append(out, packageID[:]...)
	out = append(out, innerID...)
	return out
}

func decodeCertificate(w certificateWire) (*session.Certificate, error) {
	if len(w.Address) != 32 {
		return nil, sealerrors.New(sealerrors.MalformedRequest, "certificate.address must be 32 bytes")
	}
	if len(w.PackageID) != 32 {
		return nil, sealerrors.New(sealerrors.MalformedRequest, "certificate.package_id must be 32 bytes")
	}
	cert := &session.Certificate{
		SessionPK:       w.SessionPK,
		TTLMinutes:      w.TTLMinutes,
		CreatedAtMillis: w.CreatedAtMillis,
		MVRName:         w.MVRName,
		WalletSignature: w.WalletSignature,
	}
	copy(cert.Address[:], w.Address)
	copy(cert.PackageID[:], w.PackageID)
	return cert, nil
}

// translateUpstreamError maps a context deadline into UpstreamTimeout
// when the full-node RPC's own error didn't already categorize it.
func translateUpstreamError(ctx context.Context, err error) error {
	if _, ok := sealerrors.As(err); ok {
		return err
	}
	if ctx.Err() == context.DeadlineExceeded {
		return sealerrors.Wrap(sealerrors.UpstreamTimeout, "policy evaluation deadline exceeded", err)
	}
	return sealerrors.Wrap(sealerrors.UpstreamUnavailable, "policy evaluation failed", err)
}

func (s *Server) writeErrorCtx(ctx context.Context, w http.ResponseWriter, err error) {
	sealErr, ok := sealerrors.As(err)
	if !ok {
		sealErr = sealerrors.Wrap(sealerrors.Internal, "unexpected error", err)
	}
	s.deps.Logger.Warn("fetch_keys request failed",
		zap.String("request_id", requestIDFrom(ctx)),
		zap.String("category", string(sealErr.Cat)),
		zap.Error(sealErr))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(sealErr.Cat.HTTPStatus())
	_ = json.NewEncoder(w).Encode(sealErr.ToResponse())
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// handleService serves GET /v1/service.
func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	pubKeyHex := ""
	if s.deps.PublicKey != nil {
		pubKeyHex = "0x" + hex.EncodeToString(s.deps.PublicKey.Marshal())
	}
	resp := serviceWire{
		KeyServerObjectID: "0x" + hex.EncodeToString(s.deps.KeyServerObjectID[:]),
		PublicKey:         pubKeyHex,
		SupportedVersions: s.deps.SupportedVersions,
		GitRevision:       s.deps.GitRevision,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleHealth serves GET /health, reporting master-key table
// readiness and the last cached full-node reachability probe rather
// than dry-running a live RPC call on every hit.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	tableReady := s.deps.MasterTable != nil
	fullNodeReady := s.fullNodeHealthy.Load()

	status := healthWire{
		MasterTableReady: tableReady,
		FullNodeReady:    fullNodeReady,
	}
	w.Header().Set("Content-Type", "application/json")
	if !tableReady || !fullNodeReady {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}
