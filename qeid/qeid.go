// Package qeid checks a parsed quoting enclave report against Intel's
// published QE Identity descriptor (the JSON document Intel's PCS serves
// alongside TCB info).
package qeid

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/canvasxyz/teekit/internal/errs"
)

// TCBLevel is one entry of the QE Identity's tcbLevels array.
type TCBLevel struct {
	ISVSVN    uint16 `json:"isvsvn"`
	TCBDate   string `json:"tcbDate"`
	TCBStatus string `json:"tcbStatus"`
}

// Identity is Intel's QE Identity descriptor, trimmed to the fields QVL
// checks against a quoting enclave report.
type Identity struct {
	IssueDate      time.Time  `json:"issueDate"`
	NextUpdate     time.Time  `json:"nextUpdate"`
	MRSigner       string     `json:"mrsigner"` // hex, 32 bytes
	ISVProdID      *uint16    `json:"isvprodid,omitempty"`
	Attributes     string     `json:"attributes"`     // hex, 16 bytes
	AttributesMask string     `json:"attributesMask"` // hex, 16 bytes
	TCBLevels      []TCBLevel `json:"tcbLevels"`
}

// Parse decodes an Intel QE Identity JSON document.
func Parse(raw []byte) (*Identity, error) {
	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformed, err)
	}
	return &id, nil
}

// QEReport is the narrow subset of a quoting enclave's own report body that
// identity checking needs; callers build it from the quote package's
// SGXReportBody.
type QEReport struct {
	MRSigner   [32]byte
	Attributes [16]byte
	ISVProdID  uint16
	ISVSVN     uint16
}

// AcceptedStatuses is the default set of tcbStatus values Check treats as
// passing; callers may override via CheckOptions.
var AcceptedStatuses = map[string]struct{}{
	"UpToDate":            {},
	"SWHardeningNeeded":   {},
}

// CheckOptions controls which tcbStatus values Check accepts.
type CheckOptions struct {
	Time              time.Time
	AcceptedStatuses  map[string]struct{}
}

// Check verifies that qe satisfies id at the given time: the identity must
// be currently valid, mrsigner and attributes (masked) must match, the
// optional isvprodid must match if specified, and the selected TCB level
// (the greatest isvsvn not exceeding qe.ISVSVN) must carry an accepted
// status.
func Check(qe QEReport, id *Identity, opts CheckOptions) error {
	t := opts.Time
	if t.IsZero() {
		t = time.Now()
	}
	if t.Before(id.IssueDate) || !t.Before(id.NextUpdate) {
		return fmt.Errorf("%w: QE identity not valid at %s (issued %s, next update %s)", errs.ErrQeIdentityMismatch, t, id.IssueDate, id.NextUpdate)
	}

	mrsigner, err := decodeHex32(id.MRSigner)
	if err != nil {
		return fmt.Errorf("%w: mrsigner: %v", errs.ErrMalformed, err)
	}
	if mrsigner != qe.MRSigner {
		return fmt.Errorf("%w: mr_signer mismatch", errs.ErrQeIdentityMismatch)
	}

	attrs, err := decodeHex16(id.Attributes)
	if err != nil {
		return fmt.Errorf("%w: attributes: %v", errs.ErrMalformed, err)
	}
	mask, err := decodeHex16(id.AttributesMask)
	if err != nil {
		return fmt.Errorf("%w: attributesMask: %v", errs.ErrMalformed, err)
	}
	for i := range mask {
		if qe.Attributes[i]&mask[i] != attrs[i]&mask[i] {
			return fmt.Errorf("%w: attributes mismatch under mask", errs.ErrQeIdentityMismatch)
		}
	}

	if id.ISVProdID != nil && *id.ISVProdID != qe.ISVProdID {
		return fmt.Errorf("%w: isvprodid mismatch", errs.ErrQeIdentityMismatch)
	}

	accepted := opts.AcceptedStatuses
	if accepted == nil {
		accepted = AcceptedStatuses
	}

	var selected *TCBLevel
	for i := range id.TCBLevels {
		lvl := &id.TCBLevels[i]
		if lvl.ISVSVN > qe.ISVSVN {
			continue
		}
		if selected == nil || lvl.ISVSVN > selected.ISVSVN {
			selected = lvl
		}
	}
	if selected == nil {
		return fmt.Errorf("%w: no TCB level with isvsvn <= %d", errs.ErrQeIdentityMismatch, qe.ISVSVN)
	}
	if _, ok := accepted[selected.TCBStatus]; !ok {
		return fmt.Errorf("%w: TCB status %q not accepted", errs.ErrQeIdentityMismatch, selected.TCBStatus)
	}

	return nil
}

func decodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := decodeHex(s, 32)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func decodeHex16(s string) ([16]byte, error) {
	var out [16]byte
	b, err := decodeHex(s, 16)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func decodeHex(s string, n int) ([]byte, error) {
	if len(s) != 2*n {
		return nil, fmt.Errorf("expected %d hex chars, got %d", 2*n, len(s))
	}
	return hex.DecodeString(s)
}
