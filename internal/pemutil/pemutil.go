// Package pemutil extracts PEM certificate blocks from mixed binary buffers
// and converts between the raw ECDSA signature/key encodings used inside
// attestation evidence and the ASN.1 DER forms X.509 expects.
package pemutil

import (
	"bytes"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"
)

// ExtractCertificates scans buf for every "CERTIFICATE" PEM block, in order,
// ignoring any binary garbage in between. cert_data in a DCAP quote is a
// straight concatenation of PEM blocks embedded in an otherwise binary
// section, so each block is located by its BEGIN marker (which need not
// start a line) and then decoded with pem.Decode.
func ExtractCertificates(buf []byte) [][]byte {
	beginMarker := []byte("-----BEGIN CERTIFICATE-----")
	var blocks [][]byte
	rest := buf
	for {
		start := bytes.Index(rest, beginMarker)
		if start < 0 {
			break
		}
		block, next := pem.Decode(rest[start:])
		if block == nil {
			rest = rest[start+len(beginMarker):]
			continue
		}
		if block.Type == "CERTIFICATE" {
			raw := make([]byte, len(block.Bytes))
			copy(raw, block.Bytes)
			blocks = append(blocks, raw)
		}
		rest = next
	}
	return blocks
}

// EncodeCertificatePEM wraps DER-encoded certificate bytes in a PEM block.
func EncodeCertificatePEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

// RawECDSAToASN1 converts a raw R||S ECDSA signature (componentSize bytes
// each) into the ASN.1 DER SEQUENCE(r,s) form crypto/ecdsa.VerifyASN1 and
// X.509 signature verification expect.
func RawECDSAToASN1(raw []byte, componentSize int) ([]byte, error) {
	if len(raw) != 2*componentSize {
		return nil, fmt.Errorf("raw ECDSA signature has %d bytes, want %d", len(raw), 2*componentSize)
	}
	r := new(big.Int).SetBytes(raw[:componentSize])
	s := new(big.Int).SetBytes(raw[componentSize:])
	return marshalASN1Signature(r, s)
}

// asn1Signature mirrors the private struct crypto/ecdsa marshals internally;
// there is no exported encoder for two plain integers, so it is reproduced
// here rather than hand-rolling ASN.1 TLV bytes.
type asn1Signature struct {
	R, S *big.Int
}

func marshalASN1Signature(r, s *big.Int) ([]byte, error) {
	return asn1.Marshal(asn1Signature{R: r, S: s})
}

// SevSnpComponentToBigEndian converts one component (R or S) of an AMD
// SEV-SNP report signature from its nonstandard little-endian,
// right-padded-to-componentSize layout into canonical big-endian bytes of
// length componentSize. AMD stores each component as componentSize bytes in
// little-endian order with trailing zero padding; strip that padding,
// reverse byte order, and left-pad to the canonical width.
func SevSnpComponentToBigEndian(component []byte, canonicalSize int) ([]byte, error) {
	if len(component) == 0 {
		return nil, fmt.Errorf("empty signature component")
	}
	// Strip trailing zero padding (stored after the significant LE bytes).
	end := len(component)
	for end > 0 && component[end-1] == 0 {
		end--
	}
	trimmed := component[:end]

	be := make([]byte, len(trimmed))
	for i, b := range trimmed {
		be[len(trimmed)-1-i] = b
	}

	if len(be) > canonicalSize {
		return nil, fmt.Errorf("signature component is %d bytes, exceeds canonical size %d", len(be), canonicalSize)
	}
	out := make([]byte, canonicalSize)
	copy(out[canonicalSize-len(be):], be)
	return out, nil
}

// BigEndianToSevSnpComponent is the inverse of SevSnpComponentToBigEndian,
// used only by tests to assert the encode/decode round trip (§8 property 8).
func BigEndianToSevSnpComponent(be []byte, paddedSize int) []byte {
	le := make([]byte, len(be))
	for i, b := range be {
		le[len(be)-1-i] = b
	}
	out := make([]byte, paddedSize)
	copy(out, le)
	return out
}
