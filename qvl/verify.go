// Package qvl is the public entry point of the quote verification library:
// it ties together binary parsing (sgx, sev, hcl), certificate chain
// validation (internal/certchain), and QE identity checking (qeid) behind a
// small functional-options surface.
package qvl

import (
	"encoding/base64"
	"fmt"

	"github.com/canvasxyz/teekit/hcl"
	"github.com/canvasxyz/teekit/internal/certchain"
	"github.com/canvasxyz/teekit/internal/errs"
	"github.com/canvasxyz/teekit/qeid"
	"github.com/canvasxyz/teekit/sev"
	"github.com/canvasxyz/teekit/sgx"
)

// SgxResult is the outcome of a successful SGX or TDX quote verification.
type SgxResult struct {
	Quote *sgx.Quote
	Chain *certchain.Chain
}

// VerifySgx verifies a raw SGX v3 or TDX v4/v5 quote: it builds and
// validates the PCK certificate chain embedded in the quote (falling back
// to WithExtraCertdata when cert_data is empty), checks the quoting
// enclave's self-report signature and its binding to the attestation key,
// then checks the outer quote signature.
func VerifySgx(raw []byte, opts ...Option) (*SgxResult, error) {
	cfg := newConfig(opts)

	res, err := sgx.Verify(raw, sgx.VerifyOptions{
		Time:          cfg.time,
		PinnedRoots:   cfg.pinnedRoots,
		CRLs:          cfg.crls,
		ExtraCertdata: cfg.extraCertdata,
	})
	cfg.trace("verify_sgx", err)
	if err != nil {
		return nil, err
	}
	return &SgxResult{Quote: res.Quote, Chain: res.Chain}, nil
}

// VerifyTdx is VerifySgx restricted to TDX quotes (version 4 or 5); the
// underlying parser and verifier are identical, since SGX and TDX quotes
// share a header and signature section and differ only in report body
// layout.
func VerifyTdx(raw []byte, opts ...Option) (*SgxResult, error) {
	res, err := VerifySgx(raw, opts...)
	if err != nil {
		return nil, err
	}
	if res.Quote.Flavor != sgx.FlavorTDX {
		return nil, fmt.Errorf("%w: quote is not a TDX quote", errs.ErrUnsupportedVersion)
	}
	return res, nil
}

// VerifySgxBase64 is VerifySgx for a base64-encoded quote.
func VerifySgxBase64(encoded string, opts ...Option) (*SgxResult, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformed, err)
	}
	return VerifySgx(raw, opts...)
}

// VerifyTdxBase64 is VerifyTdx for a base64-encoded quote.
func VerifyTdxBase64(encoded string, opts ...Option) (*SgxResult, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformed, err)
	}
	return VerifyTdx(raw, opts...)
}

// SevSnpResult is the outcome of a successful SEV-SNP verification.
type SevSnpResult struct {
	Report *sev.Report
	Chain  *certchain.Chain
}

// VerifySevSnp verifies a raw SEV-SNP attestation report. WithVcekPEM is
// required; WithAskPEM/WithArkPEM default to the embedded Milan
// intermediate/root when omitted.
func VerifySevSnp(raw []byte, opts ...Option) (*SevSnpResult, error) {
	cfg := newConfig(opts)

	if len(cfg.vcekPEM) == 0 {
		return nil, fmt.Errorf("%w: VCEK certificate required, see WithVcekPEM", errs.ErrMissingCertdata)
	}
	vcekDER, err := pemToDER(cfg.vcekPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: VCEK certificate: %v", errs.ErrMalformed, err)
	}

	askDER := mustDER(AMDSigningKeyMilanPEM)
	if len(cfg.askPEM) > 0 {
		if askDER, err = pemToDER(cfg.askPEM); err != nil {
			return nil, fmt.Errorf("%w: ASK certificate: %v", errs.ErrMalformed, err)
		}
	}

	arkDER := mustDER(AMDRootKeyMilanPEM)
	if len(cfg.arkPEM) > 0 {
		if arkDER, err = pemToDER(cfg.arkPEM); err != nil {
			return nil, fmt.Errorf("%w: ARK certificate: %v", errs.ErrMalformed, err)
		}
	}

	res, err := sev.Verify(raw, sev.VerifyOptions{
		Time:        cfg.time,
		VcekDER:     vcekDER,
		AskDER:      askDER,
		ArkDER:      arkDER,
		PinnedRoots: cfg.pinnedRoots,
		CRLs:        cfg.crls,
	})
	cfg.trace("verify_sev_snp", err)
	if err != nil {
		return nil, err
	}
	return &SevSnpResult{Report: res.Report, Chain: res.Chain}, nil
}

// VerifySevSnpBase64 is VerifySevSnp for a base64-encoded report.
func VerifySevSnpBase64(encoded string, opts ...Option) (*SevSnpResult, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformed, err)
	}
	return VerifySevSnp(raw, opts...)
}

// CheckQEIdentity checks a parsed SGX/TDX quote's quoting enclave report
// against an Intel QE Identity document.
func CheckQEIdentity(result *SgxResult, identityJSON []byte, opts ...Option) error {
	cfg := newConfig(opts)

	id, err := qeid.Parse(identityJSON)
	if err != nil {
		return err
	}

	qeReport := qeid.QEReport{
		MRSigner:   result.Quote.Signature.QEReport.MRSigner,
		Attributes: result.Quote.Signature.QEReport.Attributes,
		ISVProdID:  result.Quote.Signature.QEReport.ISVProdID,
		ISVSVN:     result.Quote.Signature.QEReport.ISVSVN,
	}

	return qeid.Check(qeReport, id, qeid.CheckOptions{
		Time:             cfg.time,
		AcceptedStatuses: cfg.acceptedStatuses,
	})
}

// ParseHclReport parses an Azure HCL attestation envelope.
func ParseHclReport(raw []byte) (*hcl.Report, error) {
	return hcl.ParseReport(raw)
}

// VerifyHclBinding checks that an HCL report's variableData is bound into
// the supplied TDX quote's report_data via the SHA-256 indirection Azure
// uses.
func VerifyHclBinding(report *hcl.Report, quote *sgx.Quote) error {
	if !report.VerifyVariableDataBinding(quote.ReportData()) {
		return errs.ErrHclBindingMismatch
	}
	return nil
}
