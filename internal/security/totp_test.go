package security

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func TestTOTPGenerateProducesScannableSetup(t *testing.T) {
	p := NewTOTPProvisioner("Rollt")

	setup, err := p.Generate("alice@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if setup.Secret == "" {
		t.Fatal("expected a secret")
	}
	if !strings.HasPrefix(setup.QRCodeDataURI, "data:image/png;base64,") {
		t.Fatalf("unexpected data uri prefix: %.40s", setup.QRCodeDataURI)
	}
	if !strings.Contains(setup.OTPAuthURL, "otpauth://totp/") {
		t.Fatalf("unexpected otpauth url: %s", setup.OTPAuthURL)
	}
	if !strings.Contains(setup.OTPAuthURL, "Rollt") {
		t.Fatalf("issuer missing from url: %s", setup.OTPAuthURL)
	}
}

func TestTOTPValidateAcceptsDriftedCodes(t *testing.T) {
	p := NewTOTPProvisioner("Rollt")
	setup, err := p.Generate("alice@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	now := time.Now()
	for _, drift := range []time.Duration{-60 * time.Second, -30 * time.Second, 0, 30 * time.Second, 60 * time.Second} {
		code, err := totp.GenerateCodeCustom(setup.Secret, now.Add(drift), totp.ValidateOpts{
			Period: 30, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			t.Fatalf("generate code at drift %v: %v", drift, err)
		}
		if !p.Validate(code, setup.Secret, now) {
			t.Fatalf("expected code at drift %v to validate", drift)
		}
	}
}

func TestTOTPValidateRejectsStaleAndBogusCodes(t *testing.T) {
	p := NewTOTPProvisioner("Rollt")
	setup, err := p.Generate("alice@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	now := time.Now()
	stale, err := totp.GenerateCodeCustom(setup.Secret, now.Add(-10*time.Minute), totp.ValidateOpts{
		Period: 30, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate stale code: %v", err)
	}
	if p.Validate(stale, setup.Secret, now) {
		t.Fatal("expected stale code to be rejected")
	}
	if p.Validate("000000", setup.Secret, now) && p.Validate("123456", setup.Secret, now) {
		t.Fatal("expected bogus codes to be rejected")
	}
	if p.Validate("not-a-code", setup.Secret, now) {
		t.Fatal("expected malformed code to be rejected")
	}
}

func TestGenerateBackupCodesShapeAndUniqueness(t *testing.T) {
	codes, err := GenerateBackupCodes()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(codes) != BackupCodeCount {
		t.Fatalf("expected %d codes, got %d", BackupCodeCount, len(codes))
	}
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		if len(c) != 8 {
			t.Fatalf("unexpected code length for %q", c)
		}
		if strings.ContainsAny(c, "0O1I") {
			t.Fatalf("code %q contains ambiguous characters", c)
		}
		if seen[c] {
			t.Fatalf("duplicate code %q", c)
		}
		seen[c] = true
	}
}
