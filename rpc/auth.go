package rpc

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

const defaultClockSkew = 2 * time.Minute

// Authenticator verifies HS256 bearer tokens whose subject is the caller's
// address.
type Authenticator struct {
	secret []byte
	issuer string
	skew   time.Duration
	nowFn  func() time.Time
}

// NewAuthenticator requires a non-empty shared secret.
func NewAuthenticator(secret, issuer string) (*Authenticator, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, errors.New("rpc: jwt secret not configured")
	}
	return &Authenticator{
		secret: []byte(trimmed),
		issuer: strings.TrimSpace(issuer),
		skew:   defaultClockSkew,
		nowFn:  time.Now,
	}, nil
}

// SetNowFunc overrides the clock used to validate expiry.
func (a *Authenticator) SetNowFunc(now func() time.Time) {
	if now != nil {
		a.nowFn = now
	}
}

// Issue signs a token for caller valid for ttl.
func (a *Authenticator) Issue(caller common.Address, ttl time.Duration) (string, error) {
	now := a.nowFn()
	claims := jwt.RegisteredClaims{
		Subject:   caller.Hex(),
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Caller authenticates the request and returns the address it acts for.
func (a *Authenticator) Caller(r *http.Request) (common.Address, *RPCError) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return common.Address{}, &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return common.Address{}, &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return common.Address{}, &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.skew),
		jwt.WithTimeFunc(a.nowFn),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return common.Address{}, &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	if !common.IsHexAddress(claims.Subject) || common.HexToAddress(claims.Subject) == (common.Address{}) {
		return common.Address{}, &RPCError{Code: codeUnauthorized, Message: "token subject is not an address"}
	}
	return common.HexToAddress(claims.Subject), nil
}

// callerLimiter throttles mutations per authenticated caller.
type callerLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[common.Address]*rate.Limiter
}

func newCallerLimiter(perMinute float64, burst int) *callerLimiter {
	perSecond := perMinute / 60.0
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &callerLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[common.Address]*rate.Limiter),
	}
}

func (l *callerLimiter) allow(caller common.Address) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[caller]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[caller] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
