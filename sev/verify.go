package sev

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha512"
	"fmt"
	"math/big"
	"time"

	"github.com/canvasxyz/teekit/internal/certchain"
	"github.com/canvasxyz/teekit/internal/errs"
	"github.com/canvasxyz/teekit/internal/pemutil"
)

// sigComponentPadded is the width AMD pads each signature component to
// on the wire; sigComponentCanonical is the true width of a P-384 scalar.
const (
	sigComponentPadded    = 72
	sigComponentCanonical = 48
)

// VerifyOptions carries the VCEK/ASK/ARK chain material and evaluation time
// a SEV-SNP verification needs.
type VerifyOptions struct {
	Time        time.Time
	VcekDER     []byte
	AskDER      []byte
	ArkDER      []byte
	PinnedRoots map[string]struct{}
	CRLs        *certchain.CRLSet
}

// Result is what a successful Verify call establishes.
type Result struct {
	Report *Report
	Chain  *certchain.Chain
}

// Verify runs the SEV-SNP verification pipeline: build and validate the
// VCEK -> ASK -> ARK chain, then check the report body signature against
// the VCEK's public key.
func Verify(raw []byte, opts VerifyOptions) (*Result, error) {
	report, err := ParseReport(raw)
	if err != nil {
		return nil, err
	}

	certs, err := certchain.ParseAll([][]byte{opts.VcekDER, opts.AskDER, opts.ArkDER})
	if err != nil {
		return nil, err
	}

	chain, err := certchain.BuildAndValidate(certs, certchain.ChainOptions{
		Time:        opts.Time,
		PinnedRoots: opts.PinnedRoots,
		CRLs:        opts.CRLs,
	})
	if err != nil {
		return nil, err
	}

	vcekKey, ok := chain.Leaf.Raw().PublicKey.(*ecdsa.PublicKey)
	if !ok || vcekKey.Curve != elliptic.P384() {
		return nil, fmt.Errorf("%w: VCEK certificate does not carry a P-384 ECDSA public key", errs.ErrUnsupportedCrypto)
	}

	if err := verifyReportSignature(report, vcekKey); err != nil {
		return nil, err
	}

	return &Result{Report: report, Chain: chain}, nil
}

// verifyReportSignature recomputes SHA-384 over the report body and checks
// it against the VCEK's public key, converting AMD's little-endian,
// 72-byte-padded R/S components into canonical big-endian form first.
func verifyReportSignature(report *Report, pub *ecdsa.PublicKey) error {
	rComp, err := pemutil.SevSnpComponentToBigEndian(report.Signature[:sigComponentPadded], sigComponentCanonical)
	if err != nil {
		return fmt.Errorf("%w: signature R component: %v", errs.ErrBadReportSignature, err)
	}
	sComp, err := pemutil.SevSnpComponentToBigEndian(report.Signature[sigComponentPadded:2*sigComponentPadded], sigComponentCanonical)
	if err != nil {
		return fmt.Errorf("%w: signature S component: %v", errs.ErrBadReportSignature, err)
	}

	digest := sha512.Sum384(report.SignedBody())
	r := new(big.Int).SetBytes(rComp)
	s := new(big.Int).SetBytes(sComp)
	if !ecdsa.Verify(pub, digest[:], r, s) {
		return errs.ErrBadReportSignature
	}
	return nil
}
