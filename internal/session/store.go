// Package session implements the in-memory per-user authentication state
// machine: TOTP second-factor verification with progressive lockout,
// session expiry, and a referer mechanism that resumes a privileged
// action interrupted by a step-up auth challenge.
package session

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // required by RFC 4648/6238 base32+TOTP derivation, not used for security hashing
	"encoding/base32"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// AuthState is a UserSession's position in the authentication state machine.
type AuthState string

const (
	StateUnauthenticated AuthState = "unauthenticated"
	StateProcessing      AuthState = "processing"
	StateAuthenticated   AuthState = "authenticated"
	StateBlocked         AuthState = "blocked"
)

// HandlerKind identifies the kind of trigger a referer resumes.
type HandlerKind string

const (
	HandlerMessage      HandlerKind = "message"
	HandlerCallbackQuery HandlerKind = "callback_query"
)

// Referer records the interrupted privileged action to resume after
// successful step-up authentication.
type Referer struct {
	Kind HandlerKind
	Data string
}

// UserSession is one user's authentication state.
type UserSession struct {
	UserID       int64
	State        AuthState
	TOTPAttempts int
	BlockedUntil time.Time
	LoginTime    time.Time
	Referer      *Referer
}

// ErrUnknownUser is returned when querying a user with no session record.
var ErrUnknownUser = errors.New("session: unknown user")

// Store holds every user's session in process memory, synchronised under
// a single lock as required by the state-machine invariants (a user is in
// at most one state at any time; the attempts counter is non-negative).
type Store struct {
	mu            sync.Mutex
	sessions      map[int64]*UserSession
	salt          string
	issuer        string
	ttl           time.Duration
	maxAttempts   int
	blockDuration time.Duration
}

// NewStore creates an empty Store. salt is the configured auth_salt used
// to deterministically derive TOTP secrets; issuer names the provisioning
// URI's issuer field (shown in authenticator apps).
func NewStore(salt, issuer string, ttl, blockDuration time.Duration, maxAttempts int) *Store {
	return &Store{
		sessions:      make(map[int64]*UserSession),
		salt:          salt,
		issuer:        issuer,
		ttl:           ttl,
		maxAttempts:   maxAttempts,
		blockDuration: blockDuration,
	}
}

// Secret deterministically derives a base32 TOTP secret from the user id,
// username, and configured salt. The same (user, salt) pair always yields
// the same secret, so a user's enrolment QR code stays valid across
// process restarts.
func (s *Store) Secret(userID int64, username string) string {
	mac := hmac.New(sha1.New, []byte(s.salt))
	fmt.Fprintf(mac, "%d:%s", userID, username)
	sum := mac.Sum(nil)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum)
}

// ProvisioningURI returns the otpauth:// URI an authenticator app scans to
// enrol the user's deterministic secret.
func (s *Store) ProvisioningURI(userID int64, username string) string {
	secret := s.Secret(userID, username)
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s&algorithm=SHA1&digits=6&period=30",
		s.issuer, username, secret, s.issuer)
}

// get returns the session for userID, creating an unauthenticated one if
// absent, and lazily applies block-expiry and session-expiry transitions.
func (s *Store) get(userID int64, now time.Time) *UserSession {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &UserSession{UserID: userID, State: StateUnauthenticated}
		s.sessions[userID] = sess
	}

	switch sess.State {
	case StateBlocked:
		if !sess.BlockedUntil.IsZero() && !now.Before(sess.BlockedUntil) {
			sess.State = StateUnauthenticated
			sess.TOTPAttempts = 0
			sess.BlockedUntil = time.Time{}
		}
	case StateAuthenticated:
		if now.After(sess.LoginTime.Add(s.ttl)) {
			sess.State = StateUnauthenticated
		}
	}

	return sess
}

// BeginAuth transitions an unauthenticated user into the processing state,
// awaiting their first TOTP code.
func (s *Store) BeginAuth(userID int64, now time.Time) AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(userID, now)
	if sess.State == StateUnauthenticated {
		sess.State = StateProcessing
	}
	return sess.State
}

// VerifyTOTP checks code against the user's derived secret. On success
// the session becomes authenticated and the attempt counter resets. On
// failure the attempt counter increments; reaching maxAttempts blocks the
// user for blockDuration.
func (s *Store) VerifyTOTP(userID int64, username, code string, now time.Time) (bool, AuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(userID, now)
	if sess.State == StateBlocked {
		return false, sess.State, nil
	}

	secret := s.Secret(userID, username)
	valid, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, sess.State, fmt.Errorf("session: totp validate: %w", err)
	}

	if valid {
		sess.State = StateAuthenticated
		sess.LoginTime = now
		sess.TOTPAttempts = 0
		return true, sess.State, nil
	}

	sess.TOTPAttempts++
	if sess.TOTPAttempts >= s.maxAttempts {
		sess.State = StateBlocked
		sess.BlockedUntil = now.Add(s.blockDuration)
	}
	return false, sess.State, nil
}

// IsAuthenticated reports whether the user is currently, effectively
// authenticated: state is authenticated, the session has not expired, and
// the user is not blocked.
func (s *Store) IsAuthenticated(userID int64, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(userID, now)
	return sess.State == StateAuthenticated
}

// SetReferer records the interrupted privileged action for userID, to be
// resumed after successful step-up authentication.
func (s *Store) SetReferer(userID int64, kind HandlerKind, data string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(userID, now)
	sess.Referer = &Referer{Kind: kind, Data: data}
}

// ConsumeReferer returns and clears the user's stored referer, if any.
func (s *Store) ConsumeReferer(userID int64, now time.Time) *Referer {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(userID, now)
	ref := sess.Referer
	sess.Referer = nil
	return ref
}

// Snapshot returns a copy of the user's session, for diagnostics/logging.
func (s *Store) Snapshot(userID int64, now time.Time) UserSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(userID, now)
	return *sess
}
