package certchain

import (
	"fmt"
	"time"

	"github.com/canvasxyz/teekit/internal/errs"
)

// maxChainLength bounds pathological chains (§3 invariant: lengths <= a
// small constant).
const maxChainLength = 8

// ChainOptions carries the evaluation inputs §4.5 takes: the time to
// validate against, an optional pinned-root fingerprint set, and an
// optional CRL set.
type ChainOptions struct {
	Time        time.Time
	PinnedRoots map[string]struct{} // lowercase hex SHA-256 fingerprints
	CRLs        *CRLSet
}

// Chain is the validated, ordered [leaf, ...intermediates, root] path
// returned by BuildAndValidate.
type Chain struct {
	Leaf          *Certificate
	Intermediates []*Certificate
	Root          *Certificate
	Ordered       []*Certificate
}

// BuildAndValidate implements §4.5 steps 1-8: dedup, leaf/root
// identification, reordering, signature chaining, validity windows,
// BasicConstraints, CRL membership, and root pinning.
func BuildAndValidate(certs []*Certificate, opts ChainOptions) (*Chain, error) {
	if len(certs) == 0 {
		return nil, errs.ErrMissingCertdata
	}

	unique := dedupeByFingerprint(certs)
	if len(unique) > maxChainLength {
		return nil, fmt.Errorf("%w: chain has %d certificates, max is %d", errs.ErrInvalidChain, len(unique), maxChainLength)
	}

	ordered, err := order(unique)
	if err != nil {
		return nil, err
	}

	leaf := ordered[0]
	root := ordered[len(ordered)-1]
	intermediates := ordered[1 : len(ordered)-1]

	// Step 4: signature chaining. Every non-root node must be signed by
	// its issuer (the next node in the ordered path); the root must be
	// self-signed.
	for i := 0; i < len(ordered)-1; i++ {
		child, issuer := ordered[i], ordered[i+1]
		if !child.Verify(issuer) {
			return nil, fmt.Errorf("%w: %q is not signed by its issuer %q", errs.ErrInvalidChain, child.Subject(), issuer.Subject())
		}
	}
	if !root.Verify(root) {
		return nil, fmt.Errorf("%w: root %q is not self-signed", errs.ErrInvalidChain, root.Subject())
	}

	// Step 5: validity window.
	t := opts.Time
	if t.IsZero() {
		t = time.Now()
	}
	for _, c := range ordered {
		if !c.ValidAt(t) {
			return nil, fmt.Errorf("%w: %q valid [%s, %s], evaluated at %s", errs.ErrExpired, c.Subject(), c.NotBefore(), c.NotAfter(), t)
		}
	}

	// Step 6: BasicConstraints. Every issuer in the path (every node except
	// the leaf, acting as an issuer of its child) must be a CA; the leaf
	// itself must not be a CA.
	if leaf.IsCA() {
		return nil, fmt.Errorf("%w: leaf certificate %q is a CA", errs.ErrInvalidChain, leaf.Subject())
	}
	for i := 1; i < len(ordered); i++ {
		issuer := ordered[i]
		if !issuer.IsCA() {
			return nil, fmt.Errorf("%w: %q signs a subordinate certificate but lacks the CA basic constraint", errs.ErrInvalidChain, issuer.Subject())
		}
		if pathLen, asserted := issuer.PathLen(); asserted {
			// The number of CA certificates below issuer (excluding issuer
			// itself and the leaf) must not exceed its asserted
			// pathLenConstraint.
			depthBelow := i
			if depthBelow-1 > pathLen {
				return nil, fmt.Errorf("%w: %q violates pathLenConstraint %d", errs.ErrInvalidChain, issuer.Subject(), pathLen)
			}
		}
	}

	// Step 7: revocation.
	if opts.CRLs != nil && !opts.CRLs.Empty() {
		for _, c := range ordered {
			if opts.CRLs.IsRevoked(c.Issuer(), c.SerialHex()) {
				return nil, fmt.Errorf("%w: %q (serial %s)", errs.ErrRevoked, c.Subject(), c.SerialHex())
			}
		}
	}

	// Step 8: root pinning.
	if opts.PinnedRoots != nil {
		if _, ok := opts.PinnedRoots[root.FingerprintHex()]; !ok {
			return nil, fmt.Errorf("%w: root %q fingerprint %s not in pinned set", errs.ErrUntrustedRoot, root.Subject(), root.FingerprintHex())
		}
	}

	return &Chain{
		Leaf:          leaf,
		Intermediates: intermediates,
		Root:          root,
		Ordered:       ordered,
	}, nil
}

func dedupeByFingerprint(certs []*Certificate) []*Certificate {
	seen := make(map[[32]byte]struct{}, len(certs))
	out := make([]*Certificate, 0, len(certs))
	for _, c := range certs {
		fp := c.Fingerprint()
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, c)
	}
	return out
}

// order implements §4.5 steps 2-3: identify the leaf (the one certificate no
// other certificate names as its issuer), identify the root (the one
// self-issued certificate), and walk issuer links from leaf to root,
// failing InvalidChain on any cycle, orphan, or unreachable node.
func order(certs []*Certificate) ([]*Certificate, error) {
	bySubject := make(map[string][]*Certificate, len(certs))
	for _, c := range certs {
		bySubject[c.Subject()] = append(bySubject[c.Subject()], c)
	}

	issuedCount := make(map[*Certificate]int, len(certs))
	for _, c := range certs {
		issuedCount[c] = 0
	}
	for _, c := range certs {
		for _, candidateIssuer := range bySubject[c.Issuer()] {
			if candidateIssuer == c && c.SelfIssued() {
				continue
			}
			issuedCount[candidateIssuer]++
		}
	}

	var leaves, roots []*Certificate
	for _, c := range certs {
		if c.SelfIssued() {
			roots = append(roots, c)
			continue
		}
		if issuedCount[c] == 0 {
			leaves = append(leaves, c)
		}
	}

	if len(certs) == 1 {
		if len(roots) != 1 {
			return nil, fmt.Errorf("%w: single-certificate chain is not self-signed", errs.ErrInvalidChain)
		}
		return certs, nil
	}

	if len(roots) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one self-issued root, found %d", errs.ErrInvalidChain, len(roots))
	}
	if len(leaves) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one leaf certificate, found %d", errs.ErrInvalidChain, len(leaves))
	}

	root := roots[0]
	ordered := []*Certificate{leaves[0]}
	visited := map[*Certificate]struct{}{leaves[0]: {}}

	current := leaves[0]
	for current != root {
		candidates := bySubject[current.Issuer()]
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w: %q has no certificate matching issuer %q", errs.ErrInvalidChain, current.Subject(), current.Issuer())
		}
		next := candidates[0]
		if _, cyclic := visited[next]; cyclic {
			return nil, fmt.Errorf("%w: cycle detected at %q", errs.ErrInvalidChain, next.Subject())
		}
		visited[next] = struct{}{}
		ordered = append(ordered, next)
		current = next
		if len(ordered) > maxChainLength {
			return nil, fmt.Errorf("%w: chain exceeds maximum length %d", errs.ErrInvalidChain, maxChainLength)
		}
	}

	if len(visited) != len(certs) {
		return nil, fmt.Errorf("%w: %d certificate(s) not reachable from leaf to root", errs.ErrInvalidChain, len(certs)-len(visited))
	}

	return ordered, nil
}
