package sev

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	"github.com/canvasxyz/teekit/internal/errs"
	"github.com/canvasxyz/teekit/internal/pemutil"
	"github.com/stretchr/testify/require"
)

type syntheticReport struct {
	raw     []byte
	arkDER  []byte
	askDER  []byte
	vcekDER []byte
}

func buildSyntheticSNPReport(t *testing.T, notBefore, notAfter time.Time, version uint32) syntheticReport {
	t.Helper()

	arkKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	askKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	vcekKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)

	arkTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test ARK-Milan"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	arkDER, err := x509.CreateCertificate(rand.Reader, arkTmpl, arkTmpl, &arkKey.PublicKey, arkKey)
	require.NoError(t, err)
	arkParsed, err := x509.ParseCertificate(arkDER)
	require.NoError(t, err)

	askTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(2),
		Subject:               pkix.Name{CommonName: "Test ASK-Milan"},
		Issuer:                arkTmpl.Subject,
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	askDER, err := x509.CreateCertificate(rand.Reader, askTmpl, arkParsed, &askKey.PublicKey, arkKey)
	require.NoError(t, err)
	askParsed, err := x509.ParseCertificate(askDER)
	require.NoError(t, err)

	vcekTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "Test VCEK"},
		Issuer:       askTmpl.Subject,
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}
	vcekDER, err := x509.CreateCertificate(rand.Reader, vcekTmpl, askParsed, &vcekKey.PublicKey, askKey)
	require.NoError(t, err)

	body := make([]byte, signatureOffset)
	binary.LittleEndian.PutUint32(body[versionOffset:], version)
	binary.LittleEndian.PutUint32(body[sigAlgoOffset:], SignatureAlgoECDSAP384SHA384)

	digest := sha512.Sum384(body)
	r, s, err := ecdsa.Sign(rand.Reader, vcekKey, digest[:])
	require.NoError(t, err)

	sigSection := make([]byte, 512)
	copy(sigSection[0:72], pemutil.BigEndianToSevSnpComponent(r.Bytes(), 72))
	copy(sigSection[72:144], pemutil.BigEndianToSevSnpComponent(s.Bytes(), 72))

	raw := append(body, sigSection...)

	return syntheticReport{raw: raw, arkDER: arkDER, askDER: askDER, vcekDER: vcekDER}
}

func TestVerify_HappyPath(t *testing.T) {
	now := time.Now()
	sr := buildSyntheticSNPReport(t, now.Add(-time.Hour), now.Add(time.Hour), 2)

	res, err := Verify(sr.raw, VerifyOptions{
		Time:    now,
		VcekDER: sr.vcekDER,
		AskDER:  sr.askDER,
		ArkDER:  sr.arkDER,
	})
	require.NoError(t, err)
	require.Equal(t, uint32(2), res.Report.Version)
}

func TestVerify_RejectsFlippedSignedBody(t *testing.T) {
	now := time.Now()
	sr := buildSyntheticSNPReport(t, now.Add(-time.Hour), now.Add(time.Hour), 2)

	mutated := append([]byte(nil), sr.raw...)
	mutated[measurementOffset] ^= 0xFF

	_, err := Verify(mutated, VerifyOptions{
		Time:    now,
		VcekDER: sr.vcekDER,
		AskDER:  sr.askDER,
		ArkDER:  sr.arkDER,
	})
	require.ErrorIs(t, err, errs.ErrBadReportSignature)
}

func TestVerify_UntrustedRoot(t *testing.T) {
	now := time.Now()
	sr := buildSyntheticSNPReport(t, now.Add(-time.Hour), now.Add(time.Hour), 2)

	_, err := Verify(sr.raw, VerifyOptions{
		Time:        now,
		VcekDER:     sr.vcekDER,
		AskDER:      sr.askDER,
		ArkDER:      sr.arkDER,
		PinnedRoots: map[string]struct{}{"deadbeef": {}},
	})
	require.ErrorIs(t, err, errs.ErrUntrustedRoot)
}

func TestParseReport_RejectsVersionBelow2(t *testing.T) {
	body := make([]byte, minReportSize)
	binary.LittleEndian.PutUint32(body[versionOffset:], 1)
	_, err := ParseReport(body)
	require.ErrorIs(t, err, errs.ErrUnsupportedVersion)
}

func TestParseReport_RejectsShortBuffer(t *testing.T) {
	_, err := ParseReport(make([]byte, 10))
	require.ErrorIs(t, err, errs.ErrMalformed)
}

func TestParseReport_AcceptsLegacySignatureAlgoZero(t *testing.T) {
	body := make([]byte, minReportSize)
	binary.LittleEndian.PutUint32(body[versionOffset:], 2)
	binary.LittleEndian.PutUint32(body[sigAlgoOffset:], 0)
	report, err := ParseReport(body)
	require.NoError(t, err)
	require.Equal(t, uint32(0), report.SignatureAlgo)
}
