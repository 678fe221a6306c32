package qvl

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/canvasxyz/teekit/internal/certchain"
)

// config collects every knob a verification call accepts; it is built up by
// Option functions rather than exposed as a public struct literal, mirroring
// the teacher's preference for functional options over wide constructor
// structs in its provider_daemon and capture_protocol packages.
type config struct {
	time             time.Time
	pinnedRoots      map[string]struct{}
	crls             *certchain.CRLSet
	extraCertdata    [][]byte
	vcekPEM          []byte
	askPEM           []byte
	arkPEM           []byte
	qeIdentity       []byte
	acceptedStatuses map[string]struct{}
	logger           *zerolog.Logger
}

func newConfig(opts []Option) config {
	cfg := config{
		time:        time.Now(),
		pinnedRoots: DefaultPinnedRoots(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures a single verification call.
type Option func(*config)

// WithDate overrides the evaluation time (default: time.Now()).
func WithDate(t time.Time) Option {
	return func(c *config) { c.time = t }
}

// WithPinnedRoots overrides the default embedded pinned-root fingerprint
// set. Pass nil to disable root pinning entirely; an empty, non-nil map
// accepts no root.
func WithPinnedRoots(fingerprints map[string]struct{}) Option {
	return func(c *config) { c.pinnedRoots = fingerprints }
}

// WithCRLs supplies CRLs to check chain certificates against.
func WithCRLs(crls *certchain.CRLSet) Option {
	return func(c *config) { c.crls = crls }
}

// WithExtraCertdata supplies PEM-encoded certificate material to fall back
// to when a quote's own cert_data is empty.
func WithExtraCertdata(pems ...[]byte) Option {
	return func(c *config) { c.extraCertdata = append(c.extraCertdata, pems...) }
}

// WithVcekPEM supplies the PEM-encoded VCEK leaf certificate for SEV-SNP
// verification (required by VerifySevSnp).
func WithVcekPEM(pem []byte) Option {
	return func(c *config) { c.vcekPEM = pem }
}

// WithAskPEM supplies the AMD Signing Key (ASK) intermediate certificate, PEM
// encoded; if omitted, the embedded Milan ASK is used.
func WithAskPEM(pem []byte) Option {
	return func(c *config) { c.askPEM = pem }
}

// WithArkPEM supplies the AMD Root Key (ARK) certificate, PEM encoded; if
// omitted, the embedded Milan ARK is used.
func WithArkPEM(pem []byte) Option {
	return func(c *config) { c.arkPEM = pem }
}

// WithQEIdentityAcceptStatuses overrides the default set of TCB statuses
// (UpToDate, SWHardeningNeeded) the QE Identity checker accepts.
func WithQEIdentityAcceptStatuses(statuses ...string) Option {
	return func(c *config) {
		accepted := make(map[string]struct{}, len(statuses))
		for _, s := range statuses {
			accepted[s] = struct{}{}
		}
		c.acceptedStatuses = accepted
	}
}

// WithLogger attaches a structured logger that receives one trace event per
// verification call (Debug on success, Warn carrying the error on failure);
// the individual steps inside a call are not traced, and CheckQEIdentity
// emits no event. nil (the default) disables tracing.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

func (c *config) trace(step string, err error) {
	if c.logger == nil {
		return
	}
	if err != nil {
		c.logger.Warn().Str("step", step).Err(err).Msg("qvl verification step")
		return
	}
	c.logger.Debug().Str("step", step).Msg("qvl verification step")
}
