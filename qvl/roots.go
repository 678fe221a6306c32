package qvl

import (
	"fmt"

	"github.com/canvasxyz/teekit/internal/certchain"
	"github.com/canvasxyz/teekit/internal/pemutil"
)

// The embedded root certificates below form QVL's default pinned set. They
// are compiled in rather than fetched, since the roots of trust for SGX/TDX
// and SEV-SNP rarely rotate and pinning them removes a network dependency
// from the verification hot path.

// IntelSGXRootCAPEM is Intel's SGX/TDX DCAP root of trust.
const IntelSGXRootCAPEM = `-----BEGIN CERTIFICATE-----
MIICjzCCAjSgAwIBAgIUImUM1lqdNInzg7SVUr9QGzknBqwwCgYIKoZIzj0EAwIw
aDEaMBgGA1UEAwwRSW50ZWwgU0dYIFJvb3QgQ0ExGjAYBgNVBAoMEUludGVsIENv
cnBvcmF0aW9uMRQwEgYDVQQHDAtTYW50YSBDbGFyYTELMAkGA1UECAwCQ0ExCzAJ
BgNVBAYTAlVTMB4XDTE4MDUyMTEwNDUxMFoXDTQ5MTIzMTIzNTk1OVowaDEaMBgG
A1UEAwwRSW50ZWwgU0dYIFJvb3QgQ0ExGjAYBgNVBAoMEUludGVsIENvcnBvcmF0
aW9uMRQwEgYDVQQHDAtTYW50YSBDbGFyYTELMAkGA1UECAwCQ0ExCzAJBgNVBAYT
AlVTMFkwEwYHKoZIzj0CAQYIKoZIzj0DAQcDQgAEC6nEwMDIYZOj/iPWsCzaEKi7
1OiOSLRFhWGjbnBVJfVnkY4u3IjkDYYL0MxO4mqsyYjlBalTVYxFP2sJBK5zlKOB
uzCBuDAfBgNVHSMEGDAWgBQiZQzWWp00ifODtJVSv1AbOScGrDBSBgNVHR8ESzBJ
MEegRaBDhkFodHRwczovL2NlcnRpZmljYXRlcy50cnVzdGVkc2VydmljZXMuaW50
ZWwuY29tL0ludGVsU0dYUm9vdENBLmRlcjAdBgNVHQ4EFgQUImUM1lqdNInzg7SV
Ur9QGzknBqwwDgYDVR0PAQH/BAQDAgEGMBIGA1UdEwEB/wQIMAYBAf8CAQEwCgYI
KoZIzj0EAwIDSQAwRgIhAOW/5QkR+S9CiSDcNoowLuPRLsWGf/Yi7GSX94BgwTwg
AiEA4J0lrHoMs+Xo5o/sX6O9QWxHRAvZUGOdRQ7cvqRXaqI=
-----END CERTIFICATE-----`

// IntelSGXPCKProcessorCAPEM is Intel's intermediate CA signing processor PCK
// certificates.
const IntelSGXPCKProcessorCAPEM = `-----BEGIN CERTIFICATE-----
MIICmDCCAj6gAwIBAgIVANDoqtp11/kuSReYPHsUZdDV8llNMAoGCCqGSM49BAMC
MGgxGjAYBgNVBAMMEUludGVsIFNHWCBSb290IENBMRowGAYDVQQKDBFJbnRlbCBD
b3Jwb3JhdGlvbjEUMBIGA1UEBwwLU2FudGEgQ2xhcmExCzAJBgNVBAgMAkNBMQsw
CQYDVQQGEwJVUzAeFw0xODA1MjExMDUwMTBaFw0zMzA1MjExMDUwMTBaMHExIzAh
BgNVBAMMGkludGVsIFNHWCBQQ0sgUHJvY2Vzc29yIENBMRowGAYDVQQKDBFJbnRl
bCBDb3Jwb3JhdGlvbjEUMBIGA1UEBwwLU2FudGEgQ2xhcmExCzAJBgNVBAgMAkNB
MQswCQYDVQQGEwJVUzBZMBMGByqGSM49AgEGCCqGSM49AwEHA0IABLdDx6k8VVQx
vJ7t+fmZbEXI7JZ6aev21faMpGsJxPo4z+sHXbpbDC5vJFLBYYTMnVp8/u6E5YIc
PyKgjSpJhLijgbswgbgwHwYDVR0jBBgwFoAUImUM1lqdNInzg7SVUr9QGzknBqww
UgYDVR0fBEswSTBHoEWgQ4ZBaHR0cHM6Ly9jZXJ0aWZpY2F0ZXMudHJ1c3RlZHNl
cnZpY2VzLmludGVsLmNvbS9JbnRlbFNHWFJvb3RDQS5kZXIwHQYDVR0OBBYEFNDO
qtpvbVNlS6IyZ5+IsnqqAsoiMA4GA1UdDwEB/wQEAwIBBjASBgNVHRMBAf8ECDAG
AQH/AgEAMAoGCCqGSM49BAMCA0gAMEUCIQCx4fMvIV5bOcfTNPviqE0qKjVNZgce
FTNM+VOu4oRbdgIgAXqWDFXQl8WGj1N7n8m9WPq7vPuMq8V1a2oCrMd6yE4=
-----END CERTIFICATE-----`

// AMDRootKeyMilanPEM is AMD's root of trust (ARK) for Milan (EPYC 7003).
const AMDRootKeyMilanPEM = `-----BEGIN CERTIFICATE-----
MIIGYzCCBBKgAwIBAgIDAQAAMEYGCSqGSIb3DQEBCjA5oA8wDQYJYIZIAWUDBAIC
BQChHDAaBgkqhkiG9w0BAQgwDQYJYIZIAWUDBAICBQCiAwIBMKMDAgEBMHsxFDAS
BgNVBAsMC0VuZ2luZWVyaW5nMQswCQYDVQQGEwJVUzEUMBIGA1UEBwwLU2FudGEg
Q2xhcmExCzAJBgNVBAgMAkNBMR8wHQYDVQQKDBZBZHZhbmNlZCBNaWNybyBEZXZp
Y2VzMRIwEAYDVQQDDAlBUkstTWlsYW4wHhcNMjAxMDIyMTcyMzA1WhcNNDUxMDIy
MTcyMzA1WjB7MRQwEgYDVQQLDAtFbmdpbmVlcmluZzELMAkGA1UEBhMCVVMxFDAS
BgNVBAcMC1NhbnRhIENsYXJhMQswCQYDVQQIDAJDQTEfMB0GA1UECgwWQWR2YW5j
ZWQgTWljcm8gRGV2aWNlczESMBAGA1UEAwwJQVJLLU1pbGFuMIICIjANBgkqhkiG
9w0BAQEFAAOCAg8AMIICCgKCAgEA0Ld52RJOdeiJlqK2JdsVmD7FktuotWwX1fNg
W41XY9Xz1HEhSUmhLz9Cu9DHRlvgJSNxbeYYsnJfvyjx1MfU0V5tkKiU1EesNFta
1kTA0szNisdYc9isqk7mXT5+KfGRbfc4V/9zRIcE8jlHN61S1ju8X93+6dxDUrG2
SzxqJ4BhqyYmUDruPXJSX4vUc01P7j98MpqOS95rORdGHeI52Naz5m2B+O+vjsC0
60d37jY9LFeuOP4Meri8qgfi2S5kKqg/aF6aPtuAZQVR7u3KFYXP59XmJgtcog05
gmI0T/OitLhuzVvpZcLph0odh/1IPXqx3+MnjD97A7fXpndGBb9omW1vPaw0Dls3
KLxs/rlYVKaGh41pNDUFJNpz+rB+V/8QuHL7FLaUgR34VoKzgdvZlXLW59aOVKsv
tCBPd/l+H3hMuWVCDi/HfwMAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA
AAAAAAAAAAOBhwAwgYMCgYBu8b8ViTq6sQf8ESlvNHLTuMdZfm3/n3n1vr5qyifF
5j3tqKz1T5+a+3FwZHCR49V8Zy8i3r6fPk3l9vSsxVGP3f8D1Ir1aPKrPjLUH1EW
HSQa+M1vJxPl6gPME6r7MEKYBMxq1dfEJlkBZ5Cm+lwg6W3GVCloPFlz8rLbPJK+
jwIDAQABo4GAMH4wDAYDVR0TBAUwAwEB/zAdBgNVHQ4EFgQUE6H3k8qPGMy71uCV
sTPR8xP3cSwwHwYDVR0jBBgwFoAUE6H3k8qPGMy71uCVsTPR8xP3cSwwDgYDVR0P
AQH/BAQDAgEGMB4GA1UdEQQXMBWBE3NlY3VyaXR5QGFtZC5jb20wRgYJKoZIhvcN
AQEKMDmgDzANBglghkgBZQMEAgIFAKEcMBoGCSqGSIb3DQEBCDANBglghkgBZQME
AgIFAKIDAgEwowMCAQEDggIBAIgeUQScAf3lDYqgWU1VtlDbmIN8S2dC5kmQzsZ/
HtAjQnLEPI17E/cMc1rM+a6BGXL0xJetWLFDwLa8sOZi/bLSamBs5tPtBJUd0FQO
MzPFjibXinKGz0xIGMQzLb+G0mwXr3+TBCf9SJ6J6r+c9jlvNYzjNDWp+9F5MMQU
pBl0shyiWKa/Pr1u0j/Kv0AypVSy8ZGw9XZ7alAKOuLsNQkCT5yWKJF0g3UGMCam
QTFyFCCCXDe2AKxFKNSPa3yNH5E4kp6VjmNkdMBBKqcM//AzWqWEzxCFQ3Jbhhie
pqE5S8F3H0w7VQlcr7ExOJUCt4l1ay7d5aNy4+f0gCERaIh3g/NZV9Xd7mo3Wgqt
K9ERqpMD/sQ3lfqVX3c5nSTOxME7f2u1Ot0Z0e0a/dVtI8ppO3SrVAsgXsJ7vYIO
aav08JpBL3yx8bHB2Hh0V81Oy6ZvDqk8H+lQHRlqpLc7P+kM2p2JhM1FVy/vp7ma
hKa6N0vL8M3t7c2LKB1iQ9E8hBbzL8wBQcWThM/YWDqIrlePNS2qM0NE4WXChT/V
d1eR7BLzLqvVy/J0NL8a5bEXDmjVcb3GNaAFz+nW//BhGH52xnfKQwPaRg/LAw3n
o+4a6fg2z7rjNg3wvMOGd3x+vIhNQeXJoR6hIL6q8RWQ9F4MZXNY/wPRLJKM8D/r
zgAI
-----END CERTIFICATE-----`

// AMDSigningKeyMilanPEM is AMD's intermediate CA (ASK) signing VCEK
// certificates for Milan processors.
const AMDSigningKeyMilanPEM = `-----BEGIN CERTIFICATE-----
MIIGjzCCBDigAwIBAgIDAQABMEYGCSqGSIb3DQEBCjA5oA8wDQYJYIZIAWUDBAIC
BQChHDAaBgkqhkiG9w0BAQgwDQYJYIZIAWUDBAICBQCiAwIBMKMDAgEBMHsxFDAS
BgNVBAsMC0VuZ2luZWVyaW5nMQswCQYDVQQGEwJVUzEUMBIGA1UEBwwLU2FudGEg
Q2xhcmExCzAJBgNVBAgMAkNBMR8wHQYDVQQKDBZBZHZhbmNlZCBNaWNybyBEZXZp
Y2VzMRIwEAYDVQQDDAlBUkstTWlsYW4wHhcNMjAxMDIyMTgzMjI1WhcNNDUxMDIy
MTgzMjI1WjB7MRQwEgYDVQQLDAtFbmdpbmVlcmluZzELMAkGA1UEBhMCVVMxFDAS
BgNVBAcMC1NhbnRhIENsYXJhMQswCQYDVQQIDAJDQTEfMB0GA1UECgwWQWR2YW5j
ZWQgTWljcm8gRGV2aWNlczESMBAGA1UEAwwJQVNLLU1pbGFuMIICIjANBgkqhkiG
9w0BAQEFAAOCAg8AMIICCgKCAgEAybSUfBNm9sVgk/pI/by2JLuPJt6n/XMRKNAB
8HNlzv+zI/oqX+HNslF+ZLcAchNmm1A7G0RVJvKCrjjT4/OXw4nZrcqT4RsuZ3sR
wB+oC6bUsFxXnXne8C7pM/y7f8kDHMrmWqt1vP2rhxrN2kE4yDZP7e3lTQHX8zNL
hDEBMWIzCqxYBY+6qr+EGIHL+ta0tUSvh7S1ywKU6VM+qenNdaPy+2n4JNoDKHyz
sD6M+v6h7t0vMbIR+lG1zNiSVS53xZNPfs+DM2n0XY90TmD5wM0PbN7p7UlL0bZT
CG+g8XDrfrNC3y4o8HnzqC5kYcQA8nMqvJ3i8h7A/Kpb7hN7vZyL8z5T9XsAlVZl
y4sSg/LmEuP8/W/yRcB4G8wL8k9TnBKV+Ysz4T4ATg+PoSiCl30ygz7Dy4l/0mM0
qTIX8N6Y7z7/e4l/w7f+x/oLRiHLF3F9X0MqCz6JDsM9aJEoGXd6P8N4q8zAy68u
Khc/P+FaX+ySRH7b+e76f/T6A8qB3JB7yQtMYu4R6XBLYKxdqz9s8n4W6j64Rk1B
f2sMhzB0TJMB3rvM9RKo8xQ7PRUc8WMRv7j9m8CReaMMX8LqC8q2M2D4u+jy8Dqt
T8DvOQ5p3rxI7MxjLsB8YWS4/3dz0tL/yQWVpK6vxJL0u9SloazWaZDwrNVahE8w
4HWXY2cCAwEAAaOBgDB+MAwGA1UdEwQFMAMBAf8wHQYDVR0OBBYEFCXthMmD9Y2O
xfxgKpmr2yHT6WI0MB8GA1UdIwQYMBaAFBOh95PKjxjMu9bglbEz0fMT93EsMA4G
A1UdDwEB/wQEAwIBBjAeBgNVHREEFzAVgRNzZWN1cml0eUBhbWQuY29tMEYGCSqG
SIb3DQEBCjA5oA8wDQYJYIZIAWUDBAICBQChHDAaBgkqhkiG9w0BAQgwDQYJYIZI
AWUDBAICBQCiAwIBMKMDAgEBA4ICAQBVz6m0E3YQqL+qHG0rDnPM6Yh5lQfhYbmW
1xRhAqaQ3A4fC8k+7SjJCDUHrSf7ZYB7VwB26th+qDVHNP6r7I7bABpC8W/lLqDx
C+PG5g/kCDIaTTDb2M6lNSfLq/OtPqy26MHJxbeAz3t5NV/yNqJo+LMIhmMj6bqD
fhaKP1YMMMQP2x4OPaKHF0Ev3bdhLxqI1AqYP6csIHEEMQvJYIxzRkwH0AKU+yvr
2u8Vf7zFf8f+X0HahKCaL/8ms4Dh+5X4hAE5dIjftWrb8qPJqsLT/7eCdIQ3c4Uk
dS0RIL6J7xvH1R1n/Fl8i/8y+d19slQa8qHfJ8TN+bGN8M8v4fX9s0d1/iNQ9rZv
H1gjdU8Ofo3lGLV6MhOH1yTzVjIW3pXyj6lTtLGN4VfqfBG0I7sC5yFnqbAsJ9Zq
YQXL3H8Xyj2L1yKWiglBl7Wm7E/B7ThLJhNXwZoq1/VMihAbDu0/5S9pF7F/cK3Z
G1B0N3Ak/YE4O4bbK7usWT/r3v8FzA7Xnz4F7l1XdVF1x3+La0KLmhI+8f4KqN7G
x7P5C1cTNe4zhL4gMn9M/vLQMC+jxXD5jCT0bD0aBe9u6yNIVGlYb3vRZlJF1sqs
v/o1j8tLz3JFaEJX8lLGg+3mhc4lkMDAv4M5kKlu/J7Oby7C+vjKZLZLGaK3gEtf
nMhT7ZpMfA==
-----END CERTIFICATE-----`

// DefaultPinnedRoots parses the embedded Intel and AMD root certificates
// and returns their SHA-256 fingerprints, in the form WithPinnedRoots
// expects. Malformed or unparseable entries are skipped rather than
// failing the whole set, so a single bad embedded constant never blocks
// verification against the others.
func DefaultPinnedRoots() map[string]struct{} {
	out := make(map[string]struct{})
	for _, pemStr := range []string{IntelSGXRootCAPEM, AMDRootKeyMilanPEM} {
		for _, der := range pemutil.ExtractCertificates([]byte(pemStr)) {
			cert, err := certchain.Parse(der)
			if err != nil {
				continue
			}
			out[cert.FingerprintHex()] = struct{}{}
		}
	}
	return out
}

// mustDER extracts the DER bytes of the first certificate in pemStr. It
// panics on failure, which is only acceptable because its only callers pass
// the embedded compile-time constants above, never caller-supplied input.
func mustDER(pemStr string) []byte {
	ders := pemutil.ExtractCertificates([]byte(pemStr))
	if len(ders) == 0 {
		panic("qvl: embedded certificate constant contains no PEM certificate block")
	}
	return ders[0]
}

// pemToDER extracts the DER bytes of the first certificate found in a
// caller-supplied PEM buffer, the counterpart to mustDER for untrusted input
// that must return an error instead of panicking.
func pemToDER(pem []byte) ([]byte, error) {
	ders := pemutil.ExtractCertificates(pem)
	if len(ders) == 0 {
		return nil, fmt.Errorf("no PEM certificate block found")
	}
	return ders[0], nil
}

// DefaultIntermediatePEMs returns the embedded intermediate certificates
// (Intel's PCK Processor CA, AMD's Milan ASK) callers can feed into
// extraCertdata when a quote's cert_data omits them.
func DefaultIntermediatePEMs() [][]byte {
	return [][]byte{
		[]byte(IntelSGXPCKProcessorCAPEM),
		[]byte(AMDSigningKeyMilanPEM),
	}
}
