package qvl

import "github.com/canvasxyz/teekit/internal/errs"

// Re-exported error taxonomy (§7). Callers match with errors.Is against
// these values; the concrete error returned always wraps one of them.
var (
	ErrMalformed           = errs.ErrMalformed
	ErrUnsupportedVersion  = errs.ErrUnsupportedVersion
	ErrUnsupportedCrypto   = errs.ErrUnsupportedCrypto
	ErrMissingCertdata     = errs.ErrMissingCertdata
	ErrInvalidChain        = errs.ErrInvalidChain
	ErrExpired             = errs.ErrExpired
	ErrRevoked             = errs.ErrRevoked
	ErrUntrustedRoot       = errs.ErrUntrustedRoot
	ErrBadQeSignature      = errs.ErrBadQeSignature
	ErrBadQeBinding        = errs.ErrBadQeBinding
	ErrBadQuoteSignature   = errs.ErrBadQuoteSignature
	ErrBadReportSignature  = errs.ErrBadReportSignature
	ErrHclBindingMismatch  = errs.ErrHclBindingMismatch
	ErrQeIdentityMismatch  = errs.ErrQeIdentityMismatch
)
