// Package callback implements a compact, tamper-resistant, replay-resistant
// codec for inline-keyboard callback data. Payloads are HMAC-signed and
// nonce-bound so a button click cannot be forged or replayed, and the
// encoded form fits within the messaging platform's 64-byte callback-data
// limit.
package callback

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	maxActionLen    = 15
	maxParams       = 5
	maxKeyLen       = 10
	maxValueLen     = 20
	defaultNonceTTL = 5 * time.Minute
	sigBytes        = 12
)

var (
	actionPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	tokenPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]*$`)
)

// ErrInvalid is returned for any decode failure. No further detail is
// exposed to callers beyond this sentinel, by design: a click that fails
// validation for any reason looks identical to an attacker.
var ErrInvalid = errors.New("callback: invalid payload")

// ErrTooLarge is returned by Encode when the signed payload exceeds the
// platform's callback-data size limit.
var ErrTooLarge = errors.New("callback: payload exceeds size limit")

// maxWireSize is the messaging platform's inline-button callback_data limit.
const maxWireSize = 64

// Payload is the decoded, validated content of a callback button.
type Payload struct {
	Action    string
	Params    map[string]string
	UserID    uint32
	Nonce     uint32
	CreatedAt time.Time
}

// Codec encodes and decodes signed callback payloads, tracking consumed
// nonces in a bounded in-process cache to reject replays within the TTL
// window.
type Codec struct {
	key    []byte
	ttl    time.Duration
	nonces *ristretto.Cache[uint32, struct{}]
}

// New creates a Codec using key for HMAC signing. key should be at least
// 32 bytes; it is typically derived from the configured auth salt.
// maxNonceCache bounds the number of consumed nonces retained at once;
// ttl bounds a payload's validity (and nonce retention) after issue,
// defaulting to 5 minutes when non-positive.
func New(key []byte, maxNonceCache int, ttl time.Duration) (*Codec, error) {
	if ttl <= 0 {
		ttl = defaultNonceTTL
	}
	cache, err := ristretto.NewCache(&ristretto.Config[uint32, struct{}]{
		NumCounters: int64(maxNonceCache) * 10,
		MaxCost:     int64(maxNonceCache),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("callback: new nonce cache: %w", err)
	}
	return &Codec{key: key, ttl: ttl, nonces: cache}, nil
}

// Close releases the nonce cache's background resources.
func (c *Codec) Close() {
	c.nonces.Close()
}

// Encode builds a signed, base64 callback-data token for the given action,
// params, nonce, and optional user id (0 means "not bound to a caller").
func (c *Codec) Encode(action string, params map[string]string, userID, nonce uint32, now time.Time) (string, error) {
	if !actionPattern.MatchString(action) || len(action) > maxActionLen {
		return "", fmt.Errorf("%w: bad action", ErrInvalid)
	}
	if len(params) > maxParams {
		return "", fmt.Errorf("%w: too many params", ErrInvalid)
	}
	for k, v := range params {
		if len(k) > maxKeyLen || len(v) > maxValueLen || !tokenPattern.MatchString(k) || !tokenPattern.MatchString(v) {
			return "", fmt.Errorf("%w: bad param", ErrInvalid)
		}
	}

	wire := encodeWire(action, params, userID, nonce, now)
	body := base64.RawURLEncoding.EncodeToString(wire)
	sig := c.sign(body)
	token := body + "." + base64.RawURLEncoding.EncodeToString(sig)

	if len(token) > maxWireSize {
		return "", ErrTooLarge
	}
	return token, nil
}

// Decode validates and parses a callback-data token. requiredUserID, when
// non-zero, must match the payload's bound user id. Validation order
// follows: structural parse, HMAC match, expiry, nonce replay, user
// binding, then character-class checks on the decoded strings — any
// failure collapses to ErrInvalid.
func (c *Codec) Decode(token string, requiredUserID uint32, now time.Time) (*Payload, error) {
	body, sigPart, ok := splitToken(token)
	if !ok {
		return nil, ErrInvalid
	}

	wantSig := c.sign(body)
	gotSig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil || len(gotSig) != sigBytes {
		return nil, ErrInvalid
	}
	if subtle.ConstantTimeCompare(wantSig, gotSig) != 1 {
		return nil, ErrInvalid
	}

	wire, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, ErrInvalid
	}

	payload, err := decodeWire(wire)
	if err != nil {
		return nil, ErrInvalid
	}

	if now.After(payload.CreatedAt.Add(c.ttl)) {
		return nil, ErrInvalid
	}

	if _, seen := c.nonces.Get(payload.Nonce); seen {
		return nil, ErrInvalid
	}
	c.nonces.SetWithTTL(payload.Nonce, struct{}{}, 1, c.ttl)
	c.nonces.Wait()

	if requiredUserID != 0 && payload.UserID != requiredUserID {
		return nil, ErrInvalid
	}

	if !actionPattern.MatchString(payload.Action) || len(payload.Action) > maxActionLen {
		return nil, ErrInvalid
	}
	for k, v := range payload.Params {
		if len(k) > maxKeyLen || len(v) > maxValueLen || !tokenPattern.MatchString(k) || !tokenPattern.MatchString(v) {
			return nil, ErrInvalid
		}
	}

	return payload, nil
}

func (c *Codec) sign(body string) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(body))
	full := mac.Sum(nil)
	return full[:sigBytes]
}

func splitToken(token string) (body, sig string, ok bool) {
	for i := len(token) - 1; i >= 0; i-- {
		if token[i] == '.' {
			return token[:i], token[i+1:], true
		}
	}
	return "", "", false
}
