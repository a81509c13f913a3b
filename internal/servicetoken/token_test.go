package servicetoken

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeKeyPair(t *testing.T) (privPath, pubPath string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	dir := t.TempDir()

	privPath = filepath.Join(dir, "internal.pem")
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		t.Fatalf("write private key: %v", err)
	}

	pubPath = filepath.Join(dir, "internal.pub.pem")
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(pubPath, pubPEM, 0o600); err != nil {
		t.Fatalf("write public key: %v", err)
	}
	return privPath, pubPath
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	privPath, pubPath := writeKeyPair(t)

	signer, err := NewSigner(SignerOptions{PrivateKeyPath: privPath, Issuer: "generation"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	verifier, err := NewVerifier(VerifierOptions{
		PublicKeyPath:  pubPath,
		Audience:       "billing",
		AllowedIssuers: []string{"generation", "speech"},
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token, err := signer.Sign("billing")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	caller, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if caller != "generation" {
		t.Fatalf("unexpected caller: %q", caller)
	}
}

func TestVerifyRejectsWrongAudienceAndIssuer(t *testing.T) {
	privPath, pubPath := writeKeyPair(t)

	signer, err := NewSigner(SignerOptions{PrivateKeyPath: privPath, Issuer: "indexer"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	verifier, err := NewVerifier(VerifierOptions{
		PublicKeyPath:  pubPath,
		Audience:       "billing",
		AllowedIssuers: []string{"generation"},
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	wrongAudience, err := signer.Sign("storage")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.Verify(wrongAudience); err == nil {
		t.Fatalf("expected wrong audience to fail")
	}

	wrongIssuer, err := signer.Sign("billing")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.Verify(wrongIssuer); err == nil {
		t.Fatalf("expected disallowed issuer to fail")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	privPath, pubPath := writeKeyPair(t)

	signer, err := NewSigner(SignerOptions{PrivateKeyPath: privPath, Issuer: "speech", TTL: time.Millisecond})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	verifier, err := NewVerifier(VerifierOptions{
		PublicKeyPath:  pubPath,
		Audience:       "billing",
		AllowedIssuers: []string{"speech"},
		Leeway:         time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token, err := signer.Sign("billing")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := verifier.Verify(token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}
