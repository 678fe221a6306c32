// Package errs defines the stable, user-facing error taxonomy shared by
// every verification package. It has no dependencies so every other package
// in the module can return these sentinels without import cycles; the qvl
// package re-exports each one under its own name for callers, except
// ErrMalformedCertificate, which callers match through ErrMalformed.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed covers short reads, a length prefix exceeding the
	// buffer, non-UTF8 HCL JSON, or a JSON schema mismatch.
	ErrMalformed = errors.New("malformed structure")

	// ErrMalformedCertificate is ErrMalformed specialized to a certificate
	// that failed to parse as DER/X.509.
	ErrMalformedCertificate = fmt.Errorf("%w: certificate", ErrMalformed)

	// ErrUnsupportedVersion covers SGX != v3, TDX not in {4,5}, SNP < 2.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrUnsupportedCrypto covers att_key_type != ECDSA P-256,
	// cert_data_type != 5, or an unrecognized SNP signature algorithm.
	ErrUnsupportedCrypto = errors.New("unsupported cryptographic parameters")

	// ErrMissingCertdata is returned when a quote carries no cert_data and
	// the caller supplied no extraCertdata fallback.
	ErrMissingCertdata = errors.New("missing certificate data")

	// ErrInvalidChain covers structural chain errors: a cycle, an orphan
	// node, a CA-flag violation, or a chain longer than the accepted
	// maximum.
	ErrInvalidChain = errors.New("invalid certificate chain")

	// ErrExpired is returned when the evaluation time falls outside a
	// certificate's validity interval.
	ErrExpired = errors.New("certificate not valid at evaluation time")

	// ErrRevoked is returned when a certificate's serial appears in the
	// supplied CRL set.
	ErrRevoked = errors.New("certificate revoked")

	// ErrUntrustedRoot is returned when the chain's root fingerprint is
	// absent from the pinned root set.
	ErrUntrustedRoot = errors.New("untrusted root certificate")

	// ErrBadQeSignature is returned when the PCK leaf certificate fails to
	// verify the embedded QE report signature.
	ErrBadQeSignature = errors.New("bad quoting enclave report signature")

	// ErrBadQeBinding is returned when SHA-256(attestation_public_key ||
	// qe_auth_data) does not match qe_report.report_data[0:32].
	ErrBadQeBinding = errors.New("bad quoting enclave binding")

	// ErrBadQuoteSignature is returned when the attestation key fails to
	// verify the outer quote signature.
	ErrBadQuoteSignature = errors.New("bad quote signature")

	// ErrBadReportSignature is returned when a VCEK fails to verify a
	// SEV-SNP report body signature.
	ErrBadReportSignature = errors.New("bad report signature")

	// ErrHclBindingMismatch is returned when SHA-256(variable_data) does
	// not match report_data[0:32] in an HCL attestation.
	ErrHclBindingMismatch = errors.New("HCL variable data binding mismatch")

	// ErrQeIdentityMismatch is returned when a parsed QE report does not
	// match a supplied QE Identity descriptor.
	ErrQeIdentityMismatch = errors.New("quoting enclave identity mismatch")
)
