package httpclient

import (
	"crypto/tls"
	"crypto/x509"
)

// TrustPolicy is the certificate-validation surface a transport can invoke
// during a TLS handshake. crypto/tls may call either verification hook
// depending on how the connection is configured, so a policy must cover
// both, plus the accepted-issuers query used when advertising acceptable CAs.
type TrustPolicy interface {
	// VerifyPeerCertificate is called with the peer's raw certificate chain
	// after standard verification (or instead of it when verification is
	// disabled on the config).
	VerifyPeerCertificate(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error
	// VerifyConnection is called with the full negotiated connection state.
	VerifyConnection(cs tls.ConnectionState) error
	// AcceptedIssuers lists the CA certificates the policy requires.
	// Never returns nil.
	AcceptedIssuers() []*x509.Certificate
}

// AcceptAllTrustPolicy trusts every certificate chain from every peer,
// unconditionally: no chain walking, no hostname check, no expiry check.
// Unsafe for production; only reachable through the explicit
// bypassVerification flag on NewWithOptions.
//
// Both verification hooks delegate to the single trust predicate below so
// the no-op behaviour cannot drift between entry points.
type AcceptAllTrustPolicy struct{}

// trust is the shared predicate behind every entry point: everything is
// trusted, nothing is ever rejected.
func (AcceptAllTrustPolicy) trust() error { return nil }

func (p AcceptAllTrustPolicy) VerifyPeerCertificate(_ [][]byte, _ [][]*x509.Certificate) error {
	return p.trust()
}

func (p AcceptAllTrustPolicy) VerifyConnection(_ tls.ConnectionState) error {
	return p.trust()
}

// AcceptedIssuers returns an empty, non-nil slice: no specific issuer is
// required, consistent with the blanket-accept policy.
func (AcceptAllTrustPolicy) AcceptedIssuers() []*x509.Certificate {
	return []*x509.Certificate{}
}

// insecureTLSConfig wires a TrustPolicy into a tls.Config that skips the
// built-in chain verification and routes every hook crypto/tls exposes
// through the policy instead.
func insecureTLSConfig(policy TrustPolicy) *tls.Config {
	return &tls.Config{
		// InsecureSkipVerify disables the default verifier; the policy's
		// hooks below remain the only validation that runs.
		InsecureSkipVerify:    true, //nolint:gosec // explicit opt-in bypass for test environments
		VerifyPeerCertificate: policy.VerifyPeerCertificate,
		VerifyConnection:      policy.VerifyConnection,
	}
}
