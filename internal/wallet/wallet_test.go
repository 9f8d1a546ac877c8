package wallet

import (
	"strings"
	"testing"
)

func TestSignRecoverRoundTrip(t *testing.T) {
	priv, err := NewKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := AddressOf(priv.PubKey())

	sig := Sign(priv, "the quick brown fox")
	got, err := Recover("the quick brown fox", sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != addr {
		t.Fatalf("recovered %s, want %s", got, addr)
	}
	if err := Verify(addr, "the quick brown fox", sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv1, err := NewKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	priv2, err := NewKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	sig := Sign(priv2, "challenge")
	if err := Verify(AddressOf(priv1.PubKey()), "challenge", sig); err == nil {
		t.Fatal("expected verification failure for wrong key")
	}
}

func TestVerifyRejectsWrongMessage(t *testing.T) {
	priv, err := NewKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := AddressOf(priv.PubKey())

	sig := Sign(priv, "message one")
	if err := Verify(addr, "message two", sig); err == nil {
		t.Fatal("expected verification failure for different message")
	}
}

func TestVerifyFailsClosed(t *testing.T) {
	priv, err := NewKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := AddressOf(priv.PubKey())
	good := Sign(priv, "msg")

	cases := []struct {
		name      string
		address   string
		signature string
	}{
		{"empty signature", addr, ""},
		{"not hex", addr, "0xzz"},
		{"truncated", addr, good[:40]},
		{"bad recovery flag", addr, good[:len(good)-2] + "09"},
		{"empty address", "", good},
		{"short address", "0x1234", good},
		{"not hex address", strings.Repeat("g", 42), good},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Verify(tc.address, "msg", tc.signature); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	priv, err := NewKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := AddressOf(priv.PubKey())

	upper := "0x" + strings.ToUpper(addr[2:])
	norm, err := Normalize(upper)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if norm != addr {
		t.Fatalf("normalize %s = %s, want %s", upper, norm, addr)
	}
}

func TestVerifyAcceptsLegacyRecoveryID(t *testing.T) {
	priv, err := NewKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := AddressOf(priv.PubKey())

	sig := Sign(priv, "msg")
	// Rewrite V from 27/28 to 0/1; both encodings are in the wild.
	raw := sig[2:]
	last := raw[len(raw)-2:]
	var legacy string
	switch last {
	case "1b":
		legacy = "0x" + raw[:len(raw)-2] + "00"
	case "1c":
		legacy = "0x" + raw[:len(raw)-2] + "01"
	default:
		t.Fatalf("unexpected recovery byte %q", last)
	}
	if err := Verify(addr, "msg", legacy); err != nil {
		t.Fatalf("verify legacy v: %v", err)
	}
}
