// Package sev decodes and verifies AMD SEV-SNP attestation reports.
//
// Report Structure (672-byte body + 512-byte signature):
//
//	+------------------+
//	| Header / Policy  | 0x000-0x050
//	+------------------+
//	| Measurement      | 0x090-0x0C0 (48 bytes)
//	+------------------+
//	| TCB / Chip ID    | 0x180-0x1E0
//	+------------------+
//	| Signature        | 0x2A0-0x4A0 (512 bytes)
//	+------------------+
package sev

import (
	"encoding/binary"
	"fmt"

	"github.com/canvasxyz/teekit/internal/errs"
)

const (
	versionOffset         = 0x000
	guestSVNOffset        = 0x004
	policyOffset          = 0x008
	familyIDOffset        = 0x010
	imageIDOffset         = 0x020
	vmplOffset            = 0x030
	sigAlgoOffset         = 0x034
	currentTCBOffset      = 0x038
	platformInfoOffset    = 0x040
	authorKeyEnOffset     = 0x048
	reportDataOffset      = 0x050
	measurementOffset     = 0x090
	hostDataOffset        = 0x0C0
	idKeyDigestOffset     = 0x0E0
	authorKeyDigestOffset = 0x110
	reportIDOffset        = 0x140
	reportIDMAOffset      = 0x160
	reportedTCBOffset     = 0x180
	chipIDOffset          = 0x1A0
	committedTCBOffset    = 0x1E0
	currentBuildOffset    = 0x1E8
	currentMinorOffset    = 0x1E9
	currentMajorOffset    = 0x1EA
	committedBuildOffset  = 0x1EC
	committedMinorOffset  = 0x1ED
	committedMajorOffset  = 0x1EE
	launchTCBOffset       = 0x1F0
	signatureOffset       = 0x2A0 // body length, 672 bytes
	minReportSize         = signatureOffset + 512

	// SignatureAlgoECDSAP384SHA384 and its historical synonym 0 are the only
	// algorithms QVL accepts; see §9 design notes.
	SignatureAlgoECDSAP384SHA384 uint32 = 1
)

// Policy bit flags.
const (
	PolicyABIMajor       uint64 = 0x000000FF
	PolicyABIMinor       uint64 = 0x0000FF00
	PolicySMT            uint64 = 1 << 16
	PolicyReservedMBZ    uint64 = 1 << 17
	PolicyMigrationAgent uint64 = 1 << 18
	PolicyDebug          uint64 = 1 << 19
	PolicySingleSocket   uint64 = 1 << 20
)

// Report is a parsed SEV-SNP attestation report.
type Report struct {
	Version         uint32
	GuestSVN        uint32
	Policy          uint64
	FamilyID        [16]byte
	ImageID         [16]byte
	VMPL            uint32
	SignatureAlgo   uint32
	CurrentTCB      uint64
	PlatformInfo    uint64
	AuthorKeyEn     uint32
	ReportData      [64]byte
	Measurement     [48]byte
	HostData        [32]byte
	IDKeyDigest     [48]byte
	AuthorKeyDigest [48]byte
	ReportID        [32]byte
	ReportIDMA      [32]byte
	ReportedTCB     uint64
	ChipID          [64]byte
	CommittedTCB    uint64
	CurrentBuild    uint8
	CurrentMinor    uint8
	CurrentMajor    uint8
	CommittedBuild  uint8
	CommittedMinor  uint8
	CommittedMajor  uint8
	LaunchTCB       uint64
	Signature       [512]byte // raw r||s, AMD's little-endian right-padded-to-72-bytes layout

	raw []byte
}

// ParseReport decodes a raw SEV-SNP attestation report. Reports shorter than
// the fixed 0x4A0-byte body-plus-signature region are rejected outright;
// bytes beyond that region (vendor-specific extensions) are ignored.
func ParseReport(raw []byte) (*Report, error) {
	if len(raw) < minReportSize {
		return nil, fmt.Errorf("%w: report is %d bytes, need at least %d", errs.ErrMalformed, len(raw), minReportSize)
	}

	r := &Report{raw: make([]byte, len(raw))}
	copy(r.raw, raw)

	r.Version = binary.LittleEndian.Uint32(raw[versionOffset:])
	if r.Version < 2 {
		return nil, fmt.Errorf("%w: SEV-SNP report version %d, require >= 2", errs.ErrUnsupportedVersion, r.Version)
	}

	r.GuestSVN = binary.LittleEndian.Uint32(raw[guestSVNOffset:])
	r.Policy = binary.LittleEndian.Uint64(raw[policyOffset:])
	copy(r.FamilyID[:], raw[familyIDOffset:familyIDOffset+16])
	copy(r.ImageID[:], raw[imageIDOffset:imageIDOffset+16])
	r.VMPL = binary.LittleEndian.Uint32(raw[vmplOffset:])
	r.SignatureAlgo = binary.LittleEndian.Uint32(raw[sigAlgoOffset:])
	r.CurrentTCB = binary.LittleEndian.Uint64(raw[currentTCBOffset:])
	r.PlatformInfo = binary.LittleEndian.Uint64(raw[platformInfoOffset:])
	r.AuthorKeyEn = binary.LittleEndian.Uint32(raw[authorKeyEnOffset:])

	copy(r.ReportData[:], raw[reportDataOffset:reportDataOffset+64])
	copy(r.Measurement[:], raw[measurementOffset:measurementOffset+48])
	copy(r.HostData[:], raw[hostDataOffset:hostDataOffset+32])
	copy(r.IDKeyDigest[:], raw[idKeyDigestOffset:idKeyDigestOffset+48])
	copy(r.AuthorKeyDigest[:], raw[authorKeyDigestOffset:authorKeyDigestOffset+48])
	copy(r.ReportID[:], raw[reportIDOffset:reportIDOffset+32])
	copy(r.ReportIDMA[:], raw[reportIDMAOffset:reportIDMAOffset+32])
	r.ReportedTCB = binary.LittleEndian.Uint64(raw[reportedTCBOffset:])
	copy(r.ChipID[:], raw[chipIDOffset:chipIDOffset+64])
	r.CommittedTCB = binary.LittleEndian.Uint64(raw[committedTCBOffset:])
	r.CurrentBuild = raw[currentBuildOffset]
	r.CurrentMinor = raw[currentMinorOffset]
	r.CurrentMajor = raw[currentMajorOffset]
	r.CommittedBuild = raw[committedBuildOffset]
	r.CommittedMinor = raw[committedMinorOffset]
	r.CommittedMajor = raw[committedMajorOffset]
	r.LaunchTCB = binary.LittleEndian.Uint64(raw[launchTCBOffset:])

	copy(r.Signature[:], raw[signatureOffset:signatureOffset+512])

	if r.SignatureAlgo != SignatureAlgoECDSAP384SHA384 && r.SignatureAlgo != 0 {
		return nil, fmt.Errorf("%w: SEV-SNP signature algo %d unsupported", errs.ErrUnsupportedCrypto, r.SignatureAlgo)
	}

	return r, nil
}

// SignedBody returns the byte range the report signature is computed over:
// every byte of the report preceding the signature field.
func (r *Report) SignedBody() []byte {
	return r.raw[:signatureOffset]
}

// IsDebugPolicy reports whether the debug policy bit is set.
func (r *Report) IsDebugPolicy() bool { return r.Policy&PolicyDebug != 0 }

// IsSMTEnabled reports whether the SMT policy bit is set.
func (r *Report) IsSMTEnabled() bool { return r.Policy&PolicySMT != 0 }
