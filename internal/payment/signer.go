package payment

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultSignatureTTL is how long a signed return URL stays valid.
	DefaultSignatureTTL = 24 * time.Hour

	// NotifyStatus is signed into Click and Payme callback URLs, which
	// carry their verdict in the body rather than the query.
	NotifyStatus = "notify"
)

type callbackClaims struct {
	TransactionID string `json:"tx"`
	Status        string `json:"status"`
	jwt.RegisteredClaims
}

// CallbackSigner signs and verifies browser return URLs, whose status
// would otherwise be trusted from the query string.
type CallbackSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCallbackSigner creates a signer. A non-positive ttl uses DefaultSignatureTTL.
func NewCallbackSigner(secret string, ttl time.Duration) *CallbackSigner {
	if ttl <= 0 {
		ttl = DefaultSignatureTTL
	}
	return &CallbackSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign returns an HS256 token binding txID to status.
func (s *CallbackSigner) Sign(txID, status string) (string, error) {
	now := s.now()
	claims := callbackClaims{
		TransactionID: txID,
		Status:        status,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks that token was issued for txID and status and has not expired.
func (s *CallbackSigner) Verify(token, txID, status string) error {
	if token == "" {
		return ErrInvalidSignature
	}

	var claims callbackClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return errors.Join(ErrInvalidSignature, err)
	}

	if claims.TransactionID != txID || claims.Status != status {
		return ErrInvalidSignature
	}
	return nil
}
