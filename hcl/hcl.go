// Package hcl parses Azure's Host Compatibility Layer attestation envelope,
// the wrapper Azure places around a TDX quote that additionally publishes a
// vTPM attestation key, binding it into the quote via a SHA-256 digest
// carried in the quote's own report_data.
package hcl

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/canvasxyz/teekit/internal/errs"
)

const (
	headerSize      = 32
	hwReportSize    = 1184
	igvmHeaderSize  = 20
	minEnvelopeSize = headerSize + hwReportSize + igvmHeaderSize

	reportTypeTDX = 4

	akPubClaimID = "HCLAkPub"
)

// Header is the 32-byte HCL attestation header.
type Header struct {
	Signature   [4]byte // "HCLA"
	Version     uint32
	ReportSize  uint32
	RequestType uint32
	Status      uint32
	Reserved    uint32
}

// IGVMHeader is the 20-byte header following the hardware report region.
type IGVMHeader struct {
	DataSize           uint32
	Version            uint32
	ReportType         uint32 // 4 = TDX, 2 = SNP
	ReportDataHashType uint32 // 1 = SHA-256
	VariableDataSize   uint32
}

// variableDataKey is one entry of the `keys` array inside variableData.
type variableDataKey struct {
	Kid   string `json:"kid,omitempty"`
	KeyID string `json:"key_id,omitempty"`
	Kty   string `json:"kty,omitempty"`
	N     string `json:"n,omitempty"`
	E     string `json:"e,omitempty"`
	Value string `json:"value,omitempty"`
}

type variableData struct {
	Keys     []variableDataKey `json:"keys"`
	UserData string            `json:"user-data"`
}

// Report is a parsed HCL attestation envelope.
type Report struct {
	Header        Header
	HardwareReport []byte // the embedded TD Report region, 1184 bytes
	IGVM          IGVMHeader
	VariableData  []byte // raw bytes of the variableData JSON, for hashing
	parsed        variableData
}

// ParseReport decodes a raw HCL attestation envelope. Only reportType == 4
// (TDX) is accepted; reportType == 2 (SNP) and anything else fails with
// errs.ErrUnsupportedVersion.
func ParseReport(raw []byte) (*Report, error) {
	if len(raw) < minEnvelopeSize {
		return nil, fmt.Errorf("%w: HCL envelope is %d bytes, need at least %d", errs.ErrMalformed, len(raw), minEnvelopeSize)
	}

	var r Report
	copy(r.Header.Signature[:], raw[0:4])
	r.Header.Version = binary.LittleEndian.Uint32(raw[4:8])
	r.Header.ReportSize = binary.LittleEndian.Uint32(raw[8:12])
	r.Header.RequestType = binary.LittleEndian.Uint32(raw[12:16])
	r.Header.Status = binary.LittleEndian.Uint32(raw[16:20])
	r.Header.Reserved = binary.LittleEndian.Uint32(raw[20:24])

	hwStart := headerSize
	hwEnd := hwStart + hwReportSize
	r.HardwareReport = append([]byte(nil), raw[hwStart:hwEnd]...)

	igvmStart := hwEnd
	igvmEnd := igvmStart + igvmHeaderSize
	r.IGVM.DataSize = binary.LittleEndian.Uint32(raw[igvmStart : igvmStart+4])
	r.IGVM.Version = binary.LittleEndian.Uint32(raw[igvmStart+4 : igvmStart+8])
	r.IGVM.ReportType = binary.LittleEndian.Uint32(raw[igvmStart+8 : igvmStart+12])
	r.IGVM.ReportDataHashType = binary.LittleEndian.Uint32(raw[igvmStart+12 : igvmStart+16])
	r.IGVM.VariableDataSize = binary.LittleEndian.Uint32(raw[igvmStart+16 : igvmStart+20])

	if r.IGVM.ReportType != reportTypeTDX {
		return nil, fmt.Errorf("%w: HCL reportType %d, only TDX (4) is supported", errs.ErrUnsupportedVersion, r.IGVM.ReportType)
	}

	vdStart := igvmEnd
	vdEnd := vdStart + int(r.IGVM.VariableDataSize)
	if vdEnd > len(raw) {
		return nil, fmt.Errorf("%w: variableData length %d exceeds remaining envelope", errs.ErrMalformed, r.IGVM.VariableDataSize)
	}
	r.VariableData = append([]byte(nil), raw[vdStart:vdEnd]...)

	if err := json.Unmarshal(r.VariableData, &r.parsed); err != nil {
		return nil, fmt.Errorf("%w: variableData JSON: %v", errs.ErrMalformed, err)
	}

	return &r, nil
}

// GetAkPub locates the claim identified as HCLAkPub (by key_id or kid) and
// returns its public key material: a legacy base64-encoded value, or a JWK
// RSA modulus n, base64url-decoded per jwt/v5's JOSE encoding convention.
func (r *Report) GetAkPub() ([]byte, error) {
	for _, k := range r.parsed.Keys {
		if k.KeyID != akPubClaimID && k.Kid != akPubClaimID {
			continue
		}
		if k.N != "" {
			return base64.RawURLEncoding.DecodeString(k.N)
		}
		if k.Value != "" {
			return base64.StdEncoding.DecodeString(k.Value)
		}
		return nil, fmt.Errorf("%w: HCLAkPub claim has neither n nor value", errs.ErrMalformed)
	}
	return nil, fmt.Errorf("%w: no HCLAkPub claim in variableData", errs.ErrMalformed)
}

// GetUserData returns the raw hex string carried in variableData's
// "user-data" field.
func (r *Report) GetUserData() string {
	return r.parsed.UserData
}

// GetUserDataBytes decodes GetUserData as hex.
func (r *Report) GetUserDataBytes() ([]byte, error) {
	b, err := hex.DecodeString(r.parsed.UserData)
	if err != nil {
		return nil, fmt.Errorf("%w: user-data is not valid hex: %v", errs.ErrMalformed, err)
	}
	return b, nil
}

// ComputeVariableDataHash returns SHA-256 over the raw variableData bytes.
func (r *Report) ComputeVariableDataHash() [32]byte {
	return sha256.Sum256(r.VariableData)
}

// VerifyVariableDataBinding reports whether the first 32 bytes of
// quoteReportData equal ComputeVariableDataHash, the indirection Azure uses
// to bind the vTPM AK into the outer TDX quote.
func (r *Report) VerifyVariableDataBinding(quoteReportData []byte) bool {
	if len(quoteReportData) < 32 {
		return false
	}
	hash := r.ComputeVariableDataHash()
	for i := 0; i < 32; i++ {
		if quoteReportData[i] != hash[i] {
			return false
		}
	}
	return true
}
