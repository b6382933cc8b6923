package main

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Dev-only JWT issuer and JWKS server for running the API with AUTH_MODE=jwt locally.
// It is not an OIDC provider.

type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

type issuer struct {
	priv     *rsa.PrivateKey
	kid      string
	iss      string
	audience string
	ttl      time.Duration
}

func main() {
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	port := getenv("PORT", "5556")
	is := issuer{
		kid:      getenv("KID", "dev-kid-1"),
		iss:      getenv("ISSUER", "http://devjwt:5556"),
		audience: getenv("AUDIENCE", "gym-access"),
		ttl:      getenvDuration("TTL", 30*time.Minute),
	}

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		logger.Fatal("generate key", zap.Error(err))
	}
	is.priv = priv

	jwksJSON, err := marshalJWKS(priv.PublicKey, is.kid)
	if err != nil {
		logger.Fatal("marshal jwks", zap.Error(err))
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Logger)

	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Get("/.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwksJSON)
	})

	// GET /token?sub=dev|alice
	mux.Get("/token", func(w http.ResponseWriter, r *http.Request) {
		sub := strings.TrimSpace(r.URL.Query().Get("sub"))
		if sub == "" {
			http.Error(w, "missing sub", http.StatusBadRequest)
			return
		}

		now := time.Now().UTC()
		token, err := is.mint(sub, now)
		if err != nil {
			logger.Error("mint token", zap.String("sub", sub), zap.Error(err))
			http.Error(w, "failed to mint token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": token,
			"sub":   sub,
			"iss":   is.iss,
			"aud":   is.audience,
			"exp":   now.Add(is.ttl).Unix(),
		})
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("devjwt listening",
		zap.String("port", port),
		zap.String("iss", is.iss),
		zap.String("aud", is.audience),
		zap.String("kid", is.kid),
		zap.Duration("ttl", is.ttl),
	)
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
}

func (is issuer) mint(sub string, now time.Time) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Issuer:    is.iss,
		Subject:   sub,
		Audience:  jwt.ClaimStrings{is.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(is.ttl)),
	})
	tok.Header["kid"] = is.kid
	return tok.SignedString(is.priv)
}

func marshalJWKS(pub rsa.PublicKey, kid string) ([]byte, error) {
	enc := base64.RawURLEncoding
	set := jwks{
		Keys: []jwk{{
			Kty: "RSA",
			Use: "sig",
			Alg: "RS256",
			Kid: kid,
			N:   enc.EncodeToString(pub.N.Bytes()),
			E:   enc.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
	return json.Marshal(set)
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
