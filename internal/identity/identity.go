package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates the bearer token failed verification.
var ErrInvalidToken = errors.New("invalid identity token")

// Identity is the signed-in caller as asserted by the OTP identity provider:
// a stable account id plus an optional verified phone number claim.
type Identity struct {
	AccountID string
	Phone     string
}

// Verifier validates bearer tokens minted by the identity provider and
// synthesizes the placeholder account email used to tag checkouts.
type Verifier struct {
	secret      []byte
	emailDomain string
}

// NewVerifier creates a Verifier with the shared signing secret and the
// domain appended to account ids when synthesizing emails.
func NewVerifier(secret, emailDomain string) *Verifier {
	return &Verifier{
		secret:      []byte(secret),
		emailDomain: emailDomain,
	}
}

// Verify parses and validates a bearer token, returning the caller identity.
func (v *Verifier) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	accountID, _ := claims["sub"].(string)
	if accountID == "" {
		return Identity{}, ErrInvalidToken
	}
	phone, _ := claims["phone_number"].(string)

	return Identity{AccountID: accountID, Phone: phone}, nil
}

// AccountEmail returns the deterministic placeholder email recorded on
// orders placed through this storefront's checkout: "<accountID>@<domain>".
func (v *Verifier) AccountEmail(id Identity) string {
	if id.AccountID == "" || v.emailDomain == "" {
		return ""
	}
	return id.AccountID + "@" + v.emailDomain
}
