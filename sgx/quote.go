// Package sgx decodes and verifies Intel SGX v3 and TDX v4/v5 DCAP quotes.
//
// Quote layout:
//
//	+------------------+
//	| Quote Header     | 48 bytes
//	+------------------+
//	| Report Body      | 384 bytes (SGX) / 584+ bytes (TDX)
//	+------------------+
//	| Signature Data   | variable
//	+------------------+
package sgx

import (
	"fmt"

	"github.com/canvasxyz/teekit/internal/bincodec"
	"github.com/canvasxyz/teekit/internal/errs"
	"github.com/canvasxyz/teekit/internal/pemutil"
)

// Flavor distinguishes an SGX quote from a TDX quote; both share the header
// and signature-section layout and differ only in the report body.
type Flavor int

const (
	FlavorSGX Flavor = iota
	FlavorTDX
)

const (
	headerSize   = 48
	sgxBodySize  = 384
	tdxV10Size   = 584
	tdxV15Extra  = 16 + 48 // tee_tcb_svn2 + mr_servicetd
	tdxV15Size   = tdxV10Size + tdxV15Extra

	attKeyTypeECDSAP256 = 2
	teeTypeSGX          = 0x00000000
	teeTypeTDX          = 0x00000081

	certDataTypePCKChain = 5
)

// Header is the 48-byte quote header common to SGX and TDX quotes.
type Header struct {
	Version     uint16
	AttKeyType  uint16
	TEEType     uint32
	QEVendorID  [16]byte
	UserData    [20]byte
}

func parseHeader(r *bincodec.Reader) Header {
	var h Header
	h.Version = r.U16("version")
	h.AttKeyType = r.U16("att_key_type")
	h.TEEType = r.U32("tee_type")
	r.Skip("reserved", 4)
	r.FixedBytes("qe_vendor_id", h.QEVendorID[:])
	r.FixedBytes("user_data", h.UserData[:])
	return h
}

// SGXReportBody is the 384-byte SGX enclave report body.
type SGXReportBody struct {
	CPUSVN     [16]byte
	MiscSelect uint32
	Attributes [16]byte
	MREnclave  [32]byte
	MRSigner   [32]byte
	ISVProdID  uint16
	ISVSVN     uint16
	ReportData [64]byte
}

// TDXReportBody is the TDX report body, v1.0 (584 bytes) or, with the
// v1.5 extension fields populated, v1.5.
type TDXReportBody struct {
	TeeTcbSVN     [16]byte
	MRSeam        [48]byte
	MRSignerSeam  [48]byte
	SeamAttribs   [8]byte
	TDAttribs     [8]byte
	Xfam          [8]byte
	MRTd          [48]byte
	MRConfigID    [48]byte
	MROwner       [48]byte
	MROwnerConfig [48]byte
	RTMR          [4][48]byte
	ReportData    [64]byte

	// v1.5 extension, populated only when the body was 648 bytes.
	IsV15        bool
	TeeTcbSVN2   [16]byte
	MRServiceTd  [48]byte
}

func parseTDXReportBody(r *bincodec.Reader, v15 bool) TDXReportBody {
	var b TDXReportBody
	r.FixedBytes("tee_tcb_svn", b.TeeTcbSVN[:])
	r.FixedBytes("mr_seam", b.MRSeam[:])
	r.FixedBytes("mr_signer_seam", b.MRSignerSeam[:])
	r.FixedBytes("seam_attributes", b.SeamAttribs[:])
	r.FixedBytes("td_attributes", b.TDAttribs[:])
	r.FixedBytes("xfam", b.Xfam[:])
	r.FixedBytes("mr_td", b.MRTd[:])
	r.FixedBytes("mr_config_id", b.MRConfigID[:])
	r.FixedBytes("mr_owner", b.MROwner[:])
	r.FixedBytes("mr_owner_config", b.MROwnerConfig[:])
	for i := range b.RTMR {
		r.FixedBytes(fmt.Sprintf("rtmr%d", i), b.RTMR[i][:])
	}
	r.FixedBytes("report_data", b.ReportData[:])
	if v15 {
		b.IsV15 = true
		r.FixedBytes("tee_tcb_svn2", b.TeeTcbSVN2[:])
		r.FixedBytes("mr_servicetd", b.MRServiceTd[:])
	}
	return b
}

// SignatureData is the variable-length quote signature section.
type SignatureData struct {
	ECDSASignature [64]byte // raw R||S over the signed region
	AttestationKey [64]byte // raw X||Y, P-256
	QEReport       SGXReportBody
	QEReportSig    [64]byte
	QEAuthData     []byte
	CertDataType   uint16
	CertData       []byte
}

// Quote is a fully parsed SGX or TDX DCAP quote.
type Quote struct {
	Flavor    Flavor
	Header    Header
	SGXBody   SGXReportBody // set when Flavor == FlavorSGX
	TDXBody   TDXReportBody // set when Flavor == FlavorTDX
	Signature SignatureData
	raw       []byte
	bodyEnd   int
}

// ParseQuote decodes raw DCAP quote bytes per §3/§4.6. It never panics on
// adversarial input; any bounds violation surfaces as errs.ErrMalformed.
func ParseQuote(raw []byte) (*Quote, error) {
	r := bincodec.NewReader(raw)
	header := parseHeader(r)
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformed, r.Err())
	}

	q := &Quote{Header: header, raw: raw}

	switch header.Version {
	case 3:
		q.Flavor = FlavorSGX
		if header.TEEType != teeTypeSGX {
			return nil, fmt.Errorf("%w: SGX quote (v3) must have tee_type 0, got 0x%x", errs.ErrUnsupportedVersion, header.TEEType)
		}
		q.SGXBody = parseSGXReportBodyBounded(r)
		q.bodyEnd = headerSize + sgxBodySize
	case 4, 5:
		q.Flavor = FlavorTDX
		if header.TEEType != teeTypeTDX {
			return nil, fmt.Errorf("%w: TDX quote must have tee_type 0x81, got 0x%x", errs.ErrUnsupportedVersion, header.TEEType)
		}
		v15 := header.Version == 5
		q.TDXBody = parseTDXReportBody(r, v15)
		if v15 {
			q.bodyEnd = headerSize + tdxV15Size
		} else {
			q.bodyEnd = headerSize + tdxV10Size
		}
	default:
		return nil, fmt.Errorf("%w: unsupported quote version %d", errs.ErrUnsupportedVersion, header.Version)
	}
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformed, r.Err())
	}

	sigLen := r.U32("signature_data_len")
	r.RequireLenPrefixed("signature_data", sigLen)
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformed, r.Err())
	}

	if header.AttKeyType != attKeyTypeECDSAP256 {
		return nil, fmt.Errorf("%w: att_key_type %d unsupported, only ECDSA P-256 (2) is", errs.ErrUnsupportedCrypto, header.AttKeyType)
	}

	sig, err := parseSignatureData(r)
	if err != nil {
		return nil, err
	}
	q.Signature = sig

	if sig.CertDataType != certDataTypePCKChain {
		return nil, fmt.Errorf("%w: cert_data_type %d unsupported, only PCK chain (5) is", errs.ErrUnsupportedCrypto, sig.CertDataType)
	}

	return q, nil
}

func parseSGXReportBodyBounded(r *bincodec.Reader) SGXReportBody {
	var b SGXReportBody
	r.FixedBytes("cpu_svn", b.CPUSVN[:])
	b.MiscSelect = r.U32("misc_select")
	r.Skip("reserved1", 28)
	r.FixedBytes("attributes", b.Attributes[:])
	r.FixedBytes("mr_enclave", b.MREnclave[:])
	r.Skip("reserved2", 32)
	r.FixedBytes("mr_signer", b.MRSigner[:])
	r.Skip("reserved3", 96)
	b.ISVProdID = r.U16("isv_prod_id")
	b.ISVSVN = r.U16("isv_svn")
	r.Skip("reserved4", 60)
	r.FixedBytes("report_data", b.ReportData[:])
	return b
}

func parseSignatureData(r *bincodec.Reader) (SignatureData, error) {
	var s SignatureData
	r.FixedBytes("ecdsa_signature", s.ECDSASignature[:])
	r.FixedBytes("attestation_public_key", s.AttestationKey[:])
	s.QEReport = parseSGXReportBodyBounded(r)
	r.FixedBytes("qe_report_signature", s.QEReportSig[:])
	authLen := r.U16("qe_auth_data_len")
	r.RequireLenPrefixed("qe_auth_data", uint32(authLen))
	s.QEAuthData = r.Bytes("qe_auth_data", int(authLen))
	s.CertDataType = r.U16("cert_data_type")
	certLen := r.U32("cert_data_len")
	r.RequireLenPrefixed("cert_data", certLen)
	s.CertData = r.Bytes("cert_data", int(certLen))
	if r.Err() != nil {
		return s, fmt.Errorf("%w: %v", errs.ErrMalformed, r.Err())
	}
	return s, nil
}

// SignedRegion returns the byte range the outer ECDSA signature is computed
// over: header || body, per §4.6's version-specific selectors.
func (q *Quote) SignedRegion() []byte {
	if q.bodyEnd > len(q.raw) {
		return nil
	}
	return q.raw[:q.bodyEnd]
}

// ReportData returns the report_data field of the quote's own report body
// (SGX report body, or TDX body), regardless of flavor.
func (q *Quote) ReportData() []byte {
	if q.Flavor == FlavorSGX {
		return q.SGXBody.ReportData[:]
	}
	return q.TDXBody.ReportData[:]
}

// CertificatePEMs extracts the PEM certificate blocks from the quote's
// cert_data, falling back to extraCertdata when cert_data is empty.
func (q *Quote) CertificatePEMs(extraCertdata [][]byte) ([][]byte, error) {
	if len(q.Signature.CertData) > 0 {
		return pemutil.ExtractCertificates(q.Signature.CertData), nil
	}
	if len(extraCertdata) > 0 {
		var all [][]byte
		for _, pem := range extraCertdata {
			all = append(all, pemutil.ExtractCertificates(pem)...)
		}
		return all, nil
	}
	return nil, errs.ErrMissingCertdata
}
