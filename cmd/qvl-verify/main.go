// Command qvl-verify reads a quote or attestation report from disk and
// verifies it against the qvl public API, printing a structured
// success/failure line after the library's own trace event for the
// verification call. It carries no decision logic of its own; see
// github.com/canvasxyz/teekit/qvl for the library.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/canvasxyz/teekit/qvl"
)

func main() {
	var (
		kind    = flag.String("kind", "", "quote kind: sgx, tdx, or sev-snp")
		path    = flag.String("file", "", "path to the quote/report file")
		b64     = flag.Bool("base64", false, "input file is base64-encoded")
		vcek    = flag.String("vcek-pem", "", "path to the VCEK leaf certificate PEM (sev-snp only)")
		logJSON = flag.Bool("json", false, "emit the result line as JSON instead of console format")
	)
	flag.Parse()

	var writer zerolog.ConsoleWriter
	var logger zerolog.Logger
	if *logJSON {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		writer = zerolog.NewConsoleWriter()
		writer.Out = os.Stdout
		logger = zerolog.New(writer).With().Timestamp().Logger()
	}

	if err := run(*kind, *path, *vcek, *b64, logger); err != nil {
		logger.Error().Err(err).Str("kind", *kind).Str("file", *path).Msg("verification failed")
		os.Exit(1)
	}
}

func run(kind, path, vcekPath string, b64 bool, logger zerolog.Logger) error {
	if path == "" {
		return fmt.Errorf("-file is required")
	}
	kind = strings.ToLower(kind)

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if b64 {
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(raw)))
		n, err := base64.StdEncoding.Decode(decoded, raw)
		if err != nil {
			return fmt.Errorf("base64-decoding %s: %w", path, err)
		}
		raw = decoded[:n]
	}

	start := time.Now()

	switch kind {
	case "sgx":
		res, err := qvl.VerifySgx(raw, qvl.WithLogger(&logger))
		if err != nil {
			return err
		}
		logger.Info().
			Dur("elapsed", time.Since(start)).
			Str("flavor", "sgx").
			Int("chain_len", len(res.Chain.Ordered)).
			Msg("quote verified")
	case "tdx":
		res, err := qvl.VerifyTdx(raw, qvl.WithLogger(&logger))
		if err != nil {
			return err
		}
		logger.Info().
			Dur("elapsed", time.Since(start)).
			Str("flavor", "tdx").
			Int("chain_len", len(res.Chain.Ordered)).
			Msg("quote verified")
	case "sev-snp":
		if vcekPath == "" {
			return fmt.Errorf("-vcek-pem is required for sev-snp")
		}
		vcekPEM, err := os.ReadFile(vcekPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", vcekPath, err)
		}
		res, err := qvl.VerifySevSnp(raw, qvl.WithVcekPEM(vcekPEM), qvl.WithLogger(&logger))
		if err != nil {
			return err
		}
		logger.Info().
			Dur("elapsed", time.Since(start)).
			Str("flavor", "sev-snp").
			Uint32("report_version", res.Report.Version).
			Msg("report verified")
	default:
		return fmt.Errorf("-kind must be one of: sgx, tdx, sev-snp (got %q)", kind)
	}

	return nil
}
