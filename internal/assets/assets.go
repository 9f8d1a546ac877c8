// Package assets resolves a wallet address to the set of tokens it currently
// owns. The resolver is the single authority for asset ownership: callers
// must never accept an asset list from client input, and must resolve at most
// once per request.
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// ErrUnavailable wraps resolver transport failures. Requests that hit it
// fail with a retryable error; the session itself stays valid.
var ErrUnavailable = errors.New("asset resolver unavailable")

type Resolver interface {
	Resolve(ctx context.Context, address string) ([]string, error)
}

// Static resolves from a fixed in-memory grant table. It backs tests, the
// seeder, and dev deployments without an oracle; Grant/Revoke let tests
// simulate on-chain transfers between requests.
type Static struct {
	mu     sync.RWMutex
	grants map[string][]string
}

func NewStatic() *Static {
	return &Static{grants: make(map[string][]string)}
}

// LoadStatic reads a JSON grant table of the form {"0xaddr": ["TOKEN", ...]}.
func LoadStatic(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assets file: %w", err)
	}
	var grants map[string][]string
	if err := json.Unmarshal(raw, &grants); err != nil {
		return nil, fmt.Errorf("parse assets file: %w", err)
	}
	s := NewStatic()
	for addr, tokens := range grants {
		for _, t := range tokens {
			s.Grant(addr, t)
		}
	}
	return s, nil
}

func (s *Static) Resolve(ctx context.Context, address string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owned := s.grants[address]
	out := make([]string, len(owned))
	copy(out, owned)
	return out, nil
}

func (s *Static) Grant(address, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.grants[address] {
		if t == token {
			return
		}
	}
	s.grants[address] = append(s.grants[address], token)
	sort.Strings(s.grants[address])
}

func (s *Static) Revoke(address, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := s.grants[address]
	for i, t := range owned {
		if t == token {
			s.grants[address] = append(owned[:i], owned[i+1:]...)
			return
		}
	}
}
