// Package auth exchanges a wallet signature over the server challenge for an
// opaque bearer session, and re-authenticates that session on every request.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/walletgate/walletgate/internal/model"
	"github.com/walletgate/walletgate/internal/store"
	"github.com/walletgate/walletgate/internal/wallet"
)

var (
	ErrBadSignature    = errors.New("invalid signature for address")
	ErrWrongChallenge  = errors.New("message does not match server challenge")
	ErrTokenUnknown    = errors.New("token not recognized")
	ErrTokenExpired    = errors.New("token expired")
	ErrAddressMismatch = errors.New("token does not authenticate address")
)

type Service struct {
	store     store.SessionStore
	tokenTTL  time.Duration
	challenge string
}

// NewService wires the issuer to its session store. challenge is the fixed
// login message wallets must sign; it is server-chosen, never the client's.
func NewService(st store.SessionStore, tokenTTL time.Duration, challenge string) *Service {
	return &Service{store: st, tokenTTL: tokenTTL, challenge: challenge}
}

// Challenge returns the message a wallet must sign to log in.
func (s *Service) Challenge() string {
	return s.challenge
}

// Login verifies that signature proves control of address over the fixed
// challenge and mints a bearer session bound to the normalized address. The
// session stores no asset data; assets are resolved fresh on every request.
func (s *Service) Login(ctx context.Context, address, message, signature string) (model.Session, error) {
	addr, err := wallet.Normalize(address)
	if err != nil {
		return model.Session{}, ErrBadSignature
	}
	if message != s.challenge {
		return model.Session{}, ErrWrongChallenge
	}
	if err := wallet.Verify(addr, message, signature); err != nil {
		return model.Session{}, ErrBadSignature
	}

	token, err := randomToken(32)
	if err != nil {
		return model.Session{}, fmt.Errorf("mint token: %w", err)
	}

	now := time.Now()
	sess := model.Session{
		Token:     token,
		Address:   addr,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return model.Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// Authenticate resolves a bearer token back to its session and confirms it
// genuinely authenticates the claimed address. The Address header is an
// assertion only; the binding recorded at login is what counts.
func (s *Service) Authenticate(ctx context.Context, bearer, claimedAddress string) (model.Session, error) {
	sess, err := s.store.GetSession(ctx, bearer)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Session{}, ErrTokenUnknown
		}
		return model.Session{}, err
	}
	if sess.Expired(time.Now()) {
		return model.Session{}, ErrTokenExpired
	}
	addr, err := wallet.Normalize(claimedAddress)
	if err != nil || addr != sess.Address {
		return model.Session{}, ErrAddressMismatch
	}
	return sess, nil
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
