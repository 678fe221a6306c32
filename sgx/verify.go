package sgx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/canvasxyz/teekit/internal/certchain"
	"github.com/canvasxyz/teekit/internal/errs"
)

// VerifyOptions carries the evaluation inputs the quote verifier needs on
// top of the quote bytes themselves.
type VerifyOptions struct {
	Time          time.Time
	PinnedRoots   map[string]struct{}
	CRLs          *certchain.CRLSet
	ExtraCertdata [][]byte
}

// Result is what a successful Verify call establishes: the parsed quote and
// the PCK chain it was verified against.
type Result struct {
	Quote *Quote
	Chain *certchain.Chain
}

// Verify runs the full SGX/TDX verification pipeline against raw quote
// bytes: parse, build and validate the embedded PCK certificate chain,
// check the quoting enclave's self-report signature and binding to the
// attestation key, then check the outer quote signature.
func Verify(raw []byte, opts VerifyOptions) (*Result, error) {
	q, err := ParseQuote(raw)
	if err != nil {
		return nil, err
	}

	ders, err := q.CertificatePEMs(opts.ExtraCertdata)
	if err != nil {
		return nil, err
	}
	certs, err := certchain.ParseAll(ders)
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

	pckKey, ok := chain.Leaf.Raw().PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: PCK leaf certificate does not carry an ECDSA public key", errs.ErrUnsupportedCrypto)
	}

	if err := verifyQEReportSignature(q, pckKey); err != nil {
		return nil, err
	}
	if err := verifyQEBinding(q); err != nil {
		return nil, err
	}
	if err := verifyOuterSignature(q); err != nil {
		return nil, err
	}

	return &Result{Quote: q, Chain: chain}, nil
}

// verifyQEReportSignature checks that the PCK leaf's key signed the
// quoting enclave's own report body (§4.7 step 3).
func verifyQEReportSignature(q *Quote, pckKey *ecdsa.PublicKey) error {
	digest := sha256.Sum256(encodeSGXReportBody(q.Signature.QEReport))
	if !ecdsaVerifyRaw(pckKey, digest[:], q.Signature.QEReportSig[:]) {
		return errs.ErrBadQeSignature
	}
	return nil
}

// verifyQEBinding checks that the QE report's report_data commits to the
// attestation public key and any QE auth data (§4.7 step 4): the first 32
// bytes of report_data must equal SHA-256(attestation_public_key ||
// qe_auth_data), with no length prefix on either input.
func verifyQEBinding(q *Quote) error {
	h := sha256.New()
	h.Write(q.Signature.AttestationKey[:])
	h.Write(q.Signature.QEAuthData)
	sum := h.Sum(nil)

	if len(q.Signature.QEReport.ReportData) < 32 {
		return errs.ErrBadQeBinding
	}
	got := q.Signature.QEReport.ReportData[:32]
	for i := range sum {
		if sum[i] != got[i] {
			return errs.ErrBadQeBinding
		}
	}
	return nil
}

// verifyOuterSignature checks that the attestation key embedded in the
// signature section signed the quote header and body (§4.7 step 5).
func verifyOuterSignature(q *Quote) error {
	pub, err := attestationKeyToECDSA(q.Signature.AttestationKey)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(q.SignedRegion())
	if !ecdsaVerifyRaw(pub, digest[:], q.Signature.ECDSASignature[:]) {
		return errs.ErrBadQuoteSignature
	}
	return nil
}

func attestationKeyToECDSA(raw [64]byte) (*ecdsa.PublicKey, error) {
	x := new(big.Int).SetBytes(raw[:32])
	y := new(big.Int).SetBytes(raw[32:])
	curve := elliptic.P256()
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("%w: attestation public key is not a valid P-256 point", errs.ErrUnsupportedCrypto)
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

func ecdsaVerifyRaw(pub *ecdsa.PublicKey, digest, rawSig []byte) bool {
	if len(rawSig) != 64 {
		return false
	}
	r := new(big.Int).SetBytes(rawSig[:32])
	s := new(big.Int).SetBytes(rawSig[32:])
	return ecdsa.Verify(pub, digest, r, s)
}

// encodeSGXReportBody reconstructs the 384-byte wire encoding of an SGX
// report body so its SHA-256 digest can be recomputed for signature
// verification; ParseQuote discards the raw bytes once decoded.
func encodeSGXReportBody(b SGXReportBody) []byte {
	out := make([]byte, 0, sgxBodySize)
	out = append(out, b.CPUSVN[:]...)
	var misc [4]byte
	binary.LittleEndian.PutUint32(misc[:], b.MiscSelect)
	out = append(out, misc[:]...)
	out = append(out, make([]byte, 28)...)
	out = append(out, b.Attributes[:]...)
	out = append(out, b.MREnclave[:]...)
	out = append(out, make([]byte, 32)...)
	out = append(out, b.MRSigner[:]...)
	out = append(out, make([]byte, 96)...)
	var ids [4]byte
	binary.LittleEndian.PutUint16(ids[:2], b.ISVProdID)
	binary.LittleEndian.PutUint16(ids[2:], b.ISVSVN)
	out = append(out, ids[:]...)
	out = append(out, make([]byte, 60)...)
	out = append(out, b.ReportData[:]...)
	return out
}
