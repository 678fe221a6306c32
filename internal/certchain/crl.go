package certchain

import (
	"crypto/x509"
	"fmt"
	"strings"
)

// CRLSet is a membership-only revoked-serial index (C4). It performs no
// signature or extension validation of the CRLs themselves: callers that
// need full PKIX revocation semantics (CRL issuer-signature checking, CRL
// scope/delta handling) must do that externally before handing the DER
// bytes to FromDERs. This is a deliberate limitation, not an oversight.
type CRLSet struct {
	revoked map[string]map[string]struct{} // issuer name -> set of uppercase-hex serials
}

// FromDERs parses each DER-encoded CRL and accumulates {issuerName,
// serialHex} pairs.
func FromDERs(ders [][]byte) (*CRLSet, error) {
	set := &CRLSet{revoked: make(map[string]map[string]struct{})}
	for i, der := range ders {
		crl, err := x509.ParseRevocationList(der)
		if err != nil {
			return nil, fmt.Errorf("parsing CRL %d: %w", i, err)
		}
		issuer := crl.Issuer.String()
		bucket, ok := set.revoked[issuer]
		if !ok {
			bucket = make(map[string]struct{})
			set.revoked[issuer] = bucket
		}
		for _, entry := range crl.RevokedCertificateEntries {
			serial := fmt.Sprintf("%X", entry.SerialNumber)
			bucket[serial] = struct{}{}
		}
	}
	return set, nil
}

// IsRevoked reports whether serialHex (any case) is listed as revoked by
// issuer in this set.
func (s *CRLSet) IsRevoked(issuer, serialHex string) bool {
	if s == nil {
		return false
	}
	bucket, ok := s.revoked[issuer]
	if !ok {
		return false
	}
	_, revoked := bucket[strings.ToUpper(serialHex)]
	return revoked
}

// Empty reports whether the set carries no CRLs at all, which callers use to
// skip revocation checking entirely when no CRLs were supplied.
func (s *CRLSet) Empty() bool {
	return s == nil || len(s.revoked) == 0
}
