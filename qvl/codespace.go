package qvl

import (
	"errors"

	sdkerrors "cosmossdk.io/errors"
)

// codespace is the module-scoped error identity registered with
// cosmossdk.io/errors, the same registration pattern the teacher's
// x/enclave/types/errors.go uses for its own sentinel taxonomy. It gives
// callers embedding qvl inside a cosmos-sdk module a stable (codespace,
// code) pair instead of string matching, while errors.Is against the
// package-level Err* sentinels in errors.go remains the primary matching
// idiom.
const codespace = "qvl"

var (
	codeMalformed          = sdkerrors.Register(codespace, 1, "malformed structure")
	codeUnsupportedVersion = sdkerrors.Register(codespace, 2, "unsupported version")
	codeUnsupportedCrypto  = sdkerrors.Register(codespace, 3, "unsupported cryptographic parameters")
	codeMissingCertdata    = sdkerrors.Register(codespace, 4, "missing certificate data")
	codeInvalidChain       = sdkerrors.Register(codespace, 5, "invalid certificate chain")
	codeExpired            = sdkerrors.Register(codespace, 6, "certificate not valid at evaluation time")
	codeRevoked            = sdkerrors.Register(codespace, 7, "certificate revoked")
	codeUntrustedRoot      = sdkerrors.Register(codespace, 8, "untrusted root certificate")
	codeBadQeSignature     = sdkerrors.Register(codespace, 9, "bad quoting enclave report signature")
	codeBadQeBinding       = sdkerrors.Register(codespace, 10, "bad quoting enclave binding")
	codeBadQuoteSignature  = sdkerrors.Register(codespace, 11, "bad quote signature")
	codeBadReportSignature = sdkerrors.Register(codespace, 12, "bad report signature")
	codeHclBindingMismatch = sdkerrors.Register(codespace, 13, "HCL variable data binding mismatch")
	codeQeIdentityMismatch = sdkerrors.Register(codespace, 14, "quoting enclave identity mismatch")
)

// registeredCodes maps each sentinel to its registered cosmossdk.io/errors
// code, in the order Code checks them.
var registeredCodes = []struct {
	sentinel error
	code     *sdkerrors.Error
}{
	{ErrMalformed, codeMalformed},
	{ErrUnsupportedVersion, codeUnsupportedVersion},
	{ErrUnsupportedCrypto, codeUnsupportedCrypto},
	{ErrMissingCertdata, codeMissingCertdata},
	{ErrInvalidChain, codeInvalidChain},
	{ErrExpired, codeExpired},
	{ErrRevoked, codeRevoked},
	{ErrUntrustedRoot, codeUntrustedRoot},
	{ErrBadQeSignature, codeBadQeSignature},
	{ErrBadQeBinding, codeBadQeBinding},
	{ErrBadQuoteSignature, codeBadQuoteSignature},
	{ErrBadReportSignature, codeBadReportSignature},
	{ErrHclBindingMismatch, codeHclBindingMismatch},
	{ErrQeIdentityMismatch, codeQeIdentityMismatch},
}

// Code maps a verification error returned by this package to its registered
// cosmossdk.io/errors (codespace, code) pair. ok is false when err does not
// wrap one of the package's sentinels.
func Code(err error) (cs string, code uint32, ok bool) {
	for _, rc := range registeredCodes {
		if errors.Is(err, rc.sentinel) {
			return rc.code.Codespace(), uint32(rc.code.ABCICode()), true
		}
	}
	return "", 0, false
}
