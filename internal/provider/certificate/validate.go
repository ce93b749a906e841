package certificate

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/fawz-io/kcmanage/internal/domain/step"
)

// renewalWindow is how much remaining lifetime a certificate must have to be
// accepted. Matches certbot's default renewal threshold.
const renewalWindow = 30 * 24 * time.Hour

// validate runs the four acceptance checks on issued material: remaining
// lifetime, domain match, key correspondence, and a complete chain.
func (s *Step) validate(m certMaterial, domain string) error {
	chainPEM, err := os.ReadFile(m.fullchain)
	if err != nil {
		return fmt.Errorf("read certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(m.privkey)
	if err != nil {
		return fmt.Errorf("read private key: %w", err)
	}

	chain, err := parseChain(chainPEM)
	if err != nil {
		return fmt.Errorf("%w: %v", step.ErrValidationFailed, err)
	}
	leaf := chain[0]

	now := s.now()
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("%w: certificate for %s expired %s",
			step.ErrValidationFailed, domain, leaf.NotAfter.Format(time.RFC3339))
	}
	if leaf.NotAfter.Sub(now) < renewalWindow {
		return fmt.Errorf("%w: certificate for %s expires %s, inside the renewal window",
			step.ErrValidationFailed, domain, leaf.NotAfter.Format(time.RFC3339))
	}

	if err := leaf.VerifyHostname(domain); err != nil {
		return fmt.Errorf("%w: certificate does not cover %s: %v",
			step.ErrValidationFailed, domain, err)
	}

	// tls.X509KeyPair rejects a key that does not match the leaf.
	if _, err := tls.X509KeyPair(chainPEM, keyPEM); err != nil {
		return fmt.Errorf("%w: private key does not match certificate: %v",
			step.ErrValidationFailed, err)
	}

	if err := verifyChain(chain); err != nil {
		return fmt.Errorf("%w: %v", step.ErrValidationFailed, err)
	}

	return nil
}

// parseChain decodes every CERTIFICATE block in the PEM bundle, leaf first.
func parseChain(pemData []byte) ([]*x509.Certificate, error) {
	var chain []*x509.Certificate

	rest := pemData
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		chain = append(chain, cert)
	}

	if len(chain) == 0 {
		return nil, fmt.Errorf("no certificates in bundle")
	}
	return chain, nil
}

// verifyChain checks the bundle is complete: at least one intermediate, and
// every certificate signed by the next one up.
func verifyChain(chain []*x509.Certificate) error {
	if len(chain) < 2 {
		return fmt.Errorf("incomplete chain: bundle has no intermediates")
	}

	for i := 0; i < len(chain)-1; i++ {
		child, parent := chain[i], chain[i+1]
		if err := child.CheckSignatureFrom(parent); err != nil {
			return fmt.Errorf("chain broken at depth %d: %w", i, err)
		}
	}
	return nil
}
