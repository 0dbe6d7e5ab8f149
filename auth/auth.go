/*
Package auth implements the ledger.Verifier contract.

PURPOSE:
  Turns a claimed identity into a verified one. The invoice core requires
  a consent proof for every mutating call; this package supplies two
  verifiers:

  - TokenVerifier: Production gate. Expects an HMAC-signed JWT bearer
    proof in the request context (placed there by the HTTP layer); the
    token subject must equal the claimed identity. Parsed fresh on every
    call - no sessions, no caching, fails closed.
  - Allowlist:     Test/dev gate. Verifies identities present in a set.

PROOF TRANSPORT:
  The proof travels in the context under an unexported key. The api layer
  calls WithProof when it extracts the Authorization header; verifiers
  read it back with proofFrom. The core itself never touches the proof,
  only the Verifier does.

SEE ALSO:
  - ledger/store.go: Verifier contract
  - api/server.go: Header extraction middleware
*/
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/invoice-ledger/ledger"
)

var (
	// ErrMissingProof is returned when no bearer proof is present.
	ErrMissingProof = errors.New("missing consent proof")

	// ErrIdentityMismatch is returned when the proof subject does not match
	// the claimed identity.
	ErrIdentityMismatch = errors.New("proof subject does not match claimed identity")
)

type proofKey struct{}

// WithProof attaches a raw bearer proof to the context.
func WithProof(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, proofKey{}, token)
}

func proofFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(proofKey{}).(string)
	return token, ok && token != ""
}

// =============================================================================
// TOKEN VERIFIER
// =============================================================================

// TokenVerifier validates HMAC-signed JWT consent proofs.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret []byte) *TokenVerifier {
	return &TokenVerifier{secret: secret}
}

// Verify checks that the context carries a valid proof whose subject is
// exactly the claimed identity. All-or-nothing, re-checked per call.
func (v *TokenVerifier) Verify(ctx context.Context, identity ledger.Identity) error {
	raw, ok := proofFrom(ctx)
	if !ok {
		return ErrMissingProof
	}

	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("invalid consent proof: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return errors.New("invalid proof claims")
	}
	if ledger.Identity(claims.Subject) != identity {
		return ErrIdentityMismatch
	}
	return nil
}

// SignProof issues a proof for identity, signed with the verifier's
// secret. Used by tests and dev tooling; a real deployment would have an
// external issuer.
func (v *TokenVerifier) SignProof(identity ledger.Identity) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.RegisteredClaims{
		Subject: string(identity),
	})
	return token.SignedString(v.secret)
}

// =============================================================================
// ALLOWLIST VERIFIER
// =============================================================================

// Allowlist verifies any identity present in the set. Test/dev only.
type Allowlist map[ledger.Identity]bool

func (a Allowlist) Verify(_ context.Context, identity ledger.Identity) error {
	if !a[identity] {
		return fmt.Errorf("identity %s not in allowlist", identity)
	}
	return nil
}

// AllowAll verifies every identity. Dev only.
type AllowAll struct{}

func (AllowAll) Verify(context.Context, ledger.Identity) error { return nil }
