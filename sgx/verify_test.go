package sgx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	"github.com/canvasxyz/teekit/internal/certchain"
	"github.com/canvasxyz/teekit/internal/errs"
	"github.com/canvasxyz/teekit/internal/pemutil"
	"github.com/stretchr/testify/require"
)

// syntheticQuote bundles a freshly minted SGX quote with the private keys
// used to sign it, so negative tests can flip bytes and re-derive a broken
// signature without rebuilding the whole chain.
type syntheticQuote struct {
	raw         []byte
	rootDER     []byte
	rootCert    *certchain.Certificate
	leafKey     *ecdsa.PrivateKey
	attestKey   *ecdsa.PrivateKey
	sigDataOff  int // offset of signature_data within raw
}

func buildSyntheticSGXQuote(t *testing.T, notBefore, notAfter time.Time) syntheticQuote {
	t.Helper()

	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	attestKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test PCK Root"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	require.NoError(t, err)
	rootParsed, err := x509.ParseCertificate(rootDER)
	require.NoError(t, err)

	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "Test PCK Leaf"},
		Issuer:       rootTmpl.Subject,
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, rootParsed, &leafKey.PublicKey, rootKey)
	require.NoError(t, err)

	rootCert, err := certchain.Parse(rootDER)
	require.NoError(t, err)

	// Header: SGX v3, ECDSA P-256, tee_type 0.
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint16(header[0:], 3)
	binary.LittleEndian.PutUint16(header[2:], attKeyTypeECDSAP256)
	binary.LittleEndian.PutUint32(header[4:], teeTypeSGX)

	var body SGXReportBody
	body.ISVProdID = 7
	body.ISVSVN = 1
	bodyBytes := encodeSGXReportBody(body)

	attestPubRaw := rawP256PublicKey(&attestKey.PublicKey)
	var qeAuthData []byte // empty, per the common Intel binding convention

	qeReport := body // the quoting enclave's own report; reuse shape for simplicity
	binding := sha256.New()
	binding.Write(attestPubRaw[:])
	binding.Write(qeAuthData)
	bindingSum := binding.Sum(nil)
	copy(qeReport.ReportData[:32], bindingSum)
	qeReportBytes := encodeSGXReportBody(qeReport)

	qeDigest := sha256.Sum256(qeReportBytes)
	qeSig := signRawP256(t, leafKey, qeDigest[:])

	sigData := make([]byte, 0, 256)
	outerDigest := sha256.Sum256(append(append([]byte{}, header...), bodyBytes...))
	outerSig := signRawP256(t, attestKey, outerDigest[:])
	sigData = append(sigData, outerSig...)
	sigData = append(sigData, attestPubRaw[:]...)
	sigData = append(sigData, qeReportBytes...)
	sigData = append(sigData, qeSig...)
	authLen := make([]byte, 2)
	binary.LittleEndian.PutUint16(authLen, uint16(len(qeAuthData)))
	sigData = append(sigData, authLen...)
	sigData = append(sigData, qeAuthData...)
	sigData = append(sigData, byte(certDataTypePCKChain), 0x00)
	certPEM := append(pemutil.EncodeCertificatePEM(leafDER), pemutil.EncodeCertificatePEM(rootDER)...)
	certLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(certLen, uint32(len(certPEM)))
	sigData = append(sigData, certLen...)
	sigData = append(sigData, certPEM...)

	raw := make([]byte, 0, len(header)+len(bodyBytes)+4+len(sigData))
	raw = append(raw, header...)
	raw = append(raw, bodyBytes...)
	sigLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(sigLen, uint32(len(sigData)))
	raw = append(raw, sigLen...)
	sigDataOff := len(raw)
	raw = append(raw, sigData...)

	return syntheticQuote{
		raw:        raw,
		rootDER:    rootDER,
		rootCert:   rootCert,
		leafKey:    leafKey,
		attestKey:  attestKey,
		sigDataOff: sigDataOff,
	}
}

func rawP256PublicKey(pub *ecdsa.PublicKey) [64]byte {
	var out [64]byte
	pub.X.FillBytes(out[:32])
	pub.Y.FillBytes(out[32:])
	return out
}

func signRawP256(t *testing.T, key *ecdsa.PrivateKey, digest []byte) []byte {
	t.Helper()
	r, s, err := ecdsa.Sign(rand.Reader, key, digest)
	require.NoError(t, err)
	out := make([]byte, 64)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out
}

func TestVerify_HappyPath(t *testing.T) {
	now := time.Now()
	sq := buildSyntheticSGXQuote(t, now.Add(-time.Hour), now.Add(time.Hour))

	res, err := Verify(sq.raw, VerifyOptions{Time: now})
	require.NoError(t, err)
	require.Equal(t, FlavorSGX, res.Quote.Flavor)
	require.Equal(t, "Test PCK Leaf", res.Chain.Leaf.Raw().Subject.CommonName)
}

func TestVerify_UntrustedRoot(t *testing.T) {
	now := time.Now()
	sq := buildSyntheticSGXQuote(t, now.Add(-time.Hour), now.Add(time.Hour))

	_, err := Verify(sq.raw, VerifyOptions{
		Time:        now,
		PinnedRoots: map[string]struct{}{"deadbeefdeadbeef": {}},
	})
	require.ErrorIs(t, err, errs.ErrUntrustedRoot)
}

func TestVerify_PinnedRootAccepted(t *testing.T) {
	now := time.Now()
	sq := buildSyntheticSGXQuote(t, now.Add(-time.Hour), now.Add(time.Hour))

	_, err := Verify(sq.raw, VerifyOptions{
		Time:        now,
		PinnedRoots: map[string]struct{}{sq.rootCert.FingerprintHex(): {}},
	})
	require.NoError(t, err)
}

func TestVerify_ExpiredChain(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	sq := buildSyntheticSGXQuote(t, past, past.Add(time.Hour))

	_, err := Verify(sq.raw, VerifyOptions{Time: time.Now()})
	require.ErrorIs(t, err, errs.ErrExpired)
}

func TestVerify_FlippedAttestationKeyBreaksBinding(t *testing.T) {
	now := time.Now()
	sq := buildSyntheticSGXQuote(t, now.Add(-time.Hour), now.Add(time.Hour))

	mutated := append([]byte(nil), sq.raw...)
	attestKeyOff := sq.sigDataOff + 64 // past the outer ecdsa_signature
	mutated[attestKeyOff] ^= 0xFF

	_, err := Verify(mutated, VerifyOptions{Time: now})
	require.ErrorIs(t, err, errs.ErrBadQeBinding)
}

func TestVerify_FlippedSignedRegionBreaksOuterSignature(t *testing.T) {
	now := time.Now()
	sq := buildSyntheticSGXQuote(t, now.Add(-time.Hour), now.Add(time.Hour))

	mutated := append([]byte(nil), sq.raw...)
	mutated[headerSize+10] ^= 0xFF // inside the SGX report body, within the signed region

	_, err := Verify(mutated, VerifyOptions{Time: now})
	require.ErrorIs(t, err, errs.ErrBadQuoteSignature)
}

func TestVerify_FlippedQEReportSignatureFails(t *testing.T) {
	now := time.Now()
	sq := buildSyntheticSGXQuote(t, now.Add(-time.Hour), now.Add(time.Hour))

	mutated := append([]byte(nil), sq.raw...)
	qeReportSigOff := sq.sigDataOff + 64 + 64 + sgxBodySize
	mutated[qeReportSigOff] ^= 0xFF

	_, err := Verify(mutated, VerifyOptions{Time: now})
	require.ErrorIs(t, err, errs.ErrBadQeSignature)
}

// tdxMrTdSignedRegionOffset is mr_td's offset within the signed region
// (header || body): headerSize + tee_tcb_svn(16) + mr_seam(48) +
// mr_signer_seam(48) + seam_attributes(8) + td_attributes(8) + xfam(8).
const tdxMrTdSignedRegionOffset = headerSize + 16 + 48 + 48 + 8 + 8 + 8

// encodeTDXReportBody re-serializes a TDXReportBody in the same field order
// parseTDXReportBody reads it, for building synthetic quotes byte-for-byte.
func encodeTDXReportBody(b TDXReportBody) []byte {
	out := make([]byte, 0, tdxV15Size)
	out = append(out, b.TeeTcbSVN[:]...)
	out = append(out, b.MRSeam[:]...)
	out = append(out, b.MRSignerSeam[:]...)
	out = append(out, b.SeamAttribs[:]...)
	out = append(out, b.TDAttribs[:]...)
	out = append(out, b.Xfam[:]...)
	out = append(out, b.MRTd[:]...)
	out = append(out, b.MRConfigID[:]...)
	out = append(out, b.MROwner[:]...)
	out = append(out, b.MROwnerConfig[:]...)
	for i := range b.RTMR {
		out = append(out, b.RTMR[i][:]...)
	}
	out = append(out, b.ReportData[:]...)
	if b.IsV15 {
		out = append(out, b.TeeTcbSVN2[:]...)
		out = append(out, b.MRServiceTd[:]...)
	}
	return out
}

// buildSyntheticTDXQuote mirrors buildSyntheticSGXQuote but emits a TDX v4
// (v15=false) or v5 (v15=true) quote: tee_type 0x81 and a TDXReportBody in
// place of the SGX report body. The quoting enclave's own self-report
// (inside signature_data) stays SGX-shaped regardless of the outer quote's
// flavor, since the QE itself always produces an SGX report.
func buildSyntheticTDXQuote(t *testing.T, notBefore, notAfter time.Time, v15 bool) syntheticQuote {
	t.Helper()

	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	attestKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test PCK Root"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	require.NoError(t, err)
	rootParsed, err := x509.ParseCertificate(rootDER)
	require.NoError(t, err)

	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "Test PCK Leaf"},
		Issuer:       rootTmpl.Subject,
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, rootParsed, &leafKey.PublicKey, rootKey)
	require.NoError(t, err)

	rootCert, err := certchain.Parse(rootDER)
	require.NoError(t, err)

	version := uint16(4)
	if v15 {
		version = 5
	}
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint16(header[0:], version)
	binary.LittleEndian.PutUint16(header[2:], attKeyTypeECDSAP256)
	binary.LittleEndian.PutUint32(header[4:], teeTypeTDX)

	var body TDXReportBody
	body.IsV15 = v15
	for i := range body.MRTd {
		body.MRTd[i] = byte(i + 1)
	}
	bodyBytes := encodeTDXReportBody(body)

	attestPubRaw := rawP256PublicKey(&attestKey.PublicKey)
	var qeAuthData []byte // empty, per the common Intel binding convention

	var qeReport SGXReportBody // the quoting enclave's own report is always SGX-shaped
	binding := sha256.New()
	binding.Write(attestPubRaw[:])
	binding.Write(qeAuthData)
	bindingSum := binding.Sum(nil)
	copy(qeReport.ReportData[:32], bindingSum)
	qeReportBytes := encodeSGXReportBody(qeReport)

	qeDigest := sha256.Sum256(qeReportBytes)
	qeSig := signRawP256(t, leafKey, qeDigest[:])

	sigData := make([]byte, 0, 256)
	outerDigest := sha256.Sum256(append(append([]byte{}, header...), bodyBytes...))
	outerSig := signRawP256(t, attestKey, outerDigest[:])
	sigData = append(sigData, outerSig...)
	sigData = append(sigData, attestPubRaw[:]...)
	sigData = append(sigData, qeReportBytes...)
	sigData = append(sigData, qeSig...)
	authLen := make([]byte, 2)
	binary.LittleEndian.PutUint16(authLen, uint16(len(qeAuthData)))
	sigData = append(sigData, authLen...)
	sigData = append(sigData, qeAuthData...)
	sigData = append(sigData, byte(certDataTypePCKChain), 0x00)
	certPEM := append(pemutil.EncodeCertificatePEM(leafDER), pemutil.EncodeCertificatePEM(rootDER)...)
	certLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(certLen, uint32(len(certPEM)))
	sigData = append(sigData, certLen...)
	sigData = append(sigData, certPEM...)

	raw := make([]byte, 0, len(header)+len(bodyBytes)+4+len(sigData))
	raw = append(raw, header...)
	raw = append(raw, bodyBytes...)
	sigLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(sigLen, uint32(len(sigData)))
	raw = append(raw, sigLen...)
	sigDataOff := len(raw)
	raw = append(raw, sigData...)

	return syntheticQuote{
		raw:        raw,
		rootDER:    rootDER,
		rootCert:   rootCert,
		leafKey:    leafKey,
		attestKey:  attestKey,
		sigDataOff: sigDataOff,
	}
}

func TestVerifyTDX_HappyPathV4(t *testing.T) {
	now := time.Now()
	sq := buildSyntheticTDXQuote(t, now.Add(-time.Hour), now.Add(time.Hour), false)

	res, err := Verify(sq.raw, VerifyOptions{Time: now})
	require.NoError(t, err)
	require.Equal(t, FlavorTDX, res.Quote.Flavor)
	require.False(t, res.Quote.TDXBody.IsV15)
	require.Equal(t, "Test PCK Leaf", res.Chain.Leaf.Raw().Subject.CommonName)
}

func TestVerifyTDX_HappyPathV5(t *testing.T) {
	now := time.Now()
	sq := buildSyntheticTDXQuote(t, now.Add(-time.Hour), now.Add(time.Hour), true)

	res, err := Verify(sq.raw, VerifyOptions{Time: now})
	require.NoError(t, err)
	require.Equal(t, FlavorTDX, res.Quote.Flavor)
	require.True(t, res.Quote.TDXBody.IsV15)
}

func TestVerifyTDX_PinnedRootAccepted(t *testing.T) {
	now := time.Now()
	sq := buildSyntheticTDXQuote(t, now.Add(-time.Hour), now.Add(time.Hour), false)

	_, err := Verify(sq.raw, VerifyOptions{
		Time:        now,
		PinnedRoots: map[string]struct{}{sq.rootCert.FingerprintHex(): {}},
	})
	require.NoError(t, err)
}

func TestVerifyTDX_UntrustedRoot(t *testing.T) {
	now := time.Now()
	sq := buildSyntheticTDXQuote(t, now.Add(-time.Hour), now.Add(time.Hour), false)

	_, err := Verify(sq.raw, VerifyOptions{
		Time:        now,
		PinnedRoots: map[string]struct{}{"deadbeefdeadbeef": {}},
	})
	require.ErrorIs(t, err, errs.ErrUntrustedRoot)
}

func TestVerifyTDX_ExpiredChain(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	sq := buildSyntheticTDXQuote(t, past, past.Add(time.Hour), false)

	_, err := Verify(sq.raw, VerifyOptions{Time: time.Now()})
	require.ErrorIs(t, err, errs.ErrExpired)
}

// TestVerifyTDX_MutatedMrTdBreaksOuterSignature flips a byte inside mr_td,
// within the TDX signed region, and checks it surfaces as BadQuoteSignature
// rather than being silently accepted.
func TestVerifyTDX_MutatedMrTdBreaksOuterSignature(t *testing.T) {
	now := time.Now()
	sq := buildSyntheticTDXQuote(t, now.Add(-time.Hour), now.Add(time.Hour), false)

	mutated := append([]byte(nil), sq.raw...)
	mutated[tdxMrTdSignedRegionOffset] ^= 0xFF

	_, err := Verify(mutated, VerifyOptions{Time: now})
	require.ErrorIs(t, err, errs.ErrBadQuoteSignature)
}

func TestVerifyTDX_FlippedAttestationKeyBreaksBinding(t *testing.T) {
	now := time.Now()
	sq := buildSyntheticTDXQuote(t, now.Add(-time.Hour), now.Add(time.Hour), false)

	mutated := append([]byte(nil), sq.raw...)
	attestKeyOff := sq.sigDataOff + 64 // past the outer ecdsa_signature
	mutated[attestKeyOff] ^= 0xFF

	_, err := Verify(mutated, VerifyOptions{Time: now})
	require.ErrorIs(t, err, errs.ErrBadQeBinding)
}

func TestVerifyTDX_FlippedQEReportSignatureFails(t *testing.T) {
	now := time.Now()
	sq := buildSyntheticTDXQuote(t, now.Add(-time.Hour), now.Add(time.Hour), false)

	mutated := append([]byte(nil), sq.raw...)
	qeReportSigOff := sq.sigDataOff + 64 + 64 + sgxBodySize
	mutated[qeReportSigOff] ^= 0xFF

	_, err := Verify(mutated, VerifyOptions{Time: now})
	require.ErrorIs(t, err, errs.ErrBadQeSignature)
}

func TestParseQuote_RejectsShortBuffer(t *testing.T) {
	for _, n := range []int{0, 1, 10, 47} {
		_, err := ParseQuote(make([]byte, n))
		require.ErrorIs(t, err, errs.ErrMalformed)
	}
}

func TestParseQuote_RejectsUnsupportedVersion(t *testing.T) {
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint16(header[0:], 99)
	_, err := ParseQuote(header)
	require.ErrorIs(t, err, errs.ErrUnsupportedVersion)
}
