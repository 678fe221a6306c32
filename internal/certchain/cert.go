// Package certchain is the X.509 facade (C3), CRL set (C4) and PCK/VCEK
// chain validator (C5) used by both the Intel and AMD verifiers. It hides
// crypto/x509 behind a narrow surface — subject, issuer, serial, validity,
// public key, BasicConstraints, Verify(issuer) and Fingerprint() — so the
// rest of the module never imports crypto/x509 directly.
package certchain

import (
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.step.sm/crypto/x509util"

	"github.com/canvasxyz/teekit/internal/errs"
)

// Certificate is the minimal facade over a parsed X.509 certificate that C5
// through C9 operate on.
type Certificate struct {
	raw *x509.Certificate
}

// Parse decodes a single DER-encoded certificate.
func Parse(der []byte) (*Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedCertificate, pkgerrors.WithStack(err))
	}
	return &Certificate{raw: cert}, nil
}

// ParseAll decodes each entry in ders, preserving order and failing on the
// first malformed certificate.
func ParseAll(ders [][]byte) ([]*Certificate, error) {
	out := make([]*Certificate, 0, len(ders))
	for _, der := range ders {
		c, err := Parse(der)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Subject returns the certificate's distinguished subject name.
func (c *Certificate) Subject() string { return c.raw.Subject.String() }

// Issuer returns the certificate's distinguished issuer name.
func (c *Certificate) Issuer() string { return c.raw.Issuer.String() }

// SerialHex returns the certificate serial as normalized uppercase hex.
func (c *Certificate) SerialHex() string {
	return fmt.Sprintf("%X", c.raw.SerialNumber)
}

// NotBefore returns the start of the certificate's validity interval.
func (c *Certificate) NotBefore() time.Time { return c.raw.NotBefore }

// NotAfter returns the end of the certificate's validity interval.
func (c *Certificate) NotAfter() time.Time { return c.raw.NotAfter }

// ValidAt reports whether t falls within [NotBefore, NotAfter], inclusive.
func (c *Certificate) ValidAt(t time.Time) bool {
	return !t.Before(c.raw.NotBefore) && !t.After(c.raw.NotAfter)
}

// IsCA reports the BasicConstraints CA flag.
func (c *Certificate) IsCA() bool { return c.raw.IsCA }

// PathLen reports the BasicConstraints pathLenConstraint, and whether it was
// asserted at all (an absent constraint means "unconstrained").
func (c *Certificate) PathLen() (int, bool) {
	if !c.raw.BasicConstraintsValid {
		return 0, false
	}
	if c.raw.MaxPathLenZero {
		return 0, true
	}
	if c.raw.MaxPathLen > 0 {
		return c.raw.MaxPathLen, true
	}
	return 0, false
}

// SelfIssued reports whether the certificate's subject equals its issuer.
// This is the §4.5 root-identification predicate; it does not by itself
// confirm the self-signature verifies.
func (c *Certificate) SelfIssued() bool {
	return c.raw.Subject.String() == c.raw.Issuer.String()
}

// Verify reports whether issuer's public key signed this certificate's TBS.
func (c *Certificate) Verify(issuer *Certificate) bool {
	return c.raw.CheckSignatureFrom(issuer.raw) == nil
}

// Fingerprint returns the SHA-256 digest of the certificate's DER encoding.
func (c *Certificate) Fingerprint() [32]byte {
	return sha256.Sum256(c.raw.Raw)
}

// FingerprintHex returns Fingerprint as lowercase hex, the form pinned-root
// comparisons and error messages use. Delegates to go.step.sm/crypto's
// x509util, the same fingerprint helper step-ca uses to print `step
// certificate fingerprint` output.
func (c *Certificate) FingerprintHex() string {
	return x509util.Fingerprint(c.raw)
}

// Raw exposes the underlying *x509.Certificate for the narrow set of
// operations (e.g. ecdsa public key extraction) the facade does not wrap.
func (c *Certificate) Raw() *x509.Certificate { return c.raw }

// DER returns the certificate's raw DER bytes.
func (c *Certificate) DER() []byte { return c.raw.Raw }
