package model

import (
	"time"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
)

// Certificate statuses. Revocation is irreversible; expiry is evaluated on
// read against the transaction timestamp, never written back.
const (
	CertStatusValid   Status = "valid"
	CertStatusRevoked Status = "revoked"
)

// Well-known certificate types. The field is open for other schemes.
const (
	CertTypeDenomination = "denomination"
	CertTypeQuality      = "quality"
	CertTypeOrganic      = "organic"
)

// CertificateInfo is an attestation bound to exactly one asset, with a
// validity window and a revocable status.
type CertificateInfo struct {
	DocType          string            `json:"docType"`
	ID               string            `json:"id"`
	Type             string            `json:"type"`
	IssueDate        time.Time         `json:"issueDate"`
	ExpiryDate       time.Time         `json:"expiryDate"`
	Issuer           string            `json:"issuer"`
	AssetID          string            `json:"assetId"`
	Status           Status            `json:"status"`
	Properties       map[string]string `json:"properties,omitempty"`
	RevocationReason string            `json:"revocationReason,omitempty"`
	RevokedAt        *time.Time        `json:"revokedAt,omitempty"`
}

// ValidAt reports whether the certificate is unrevoked and inside its
// validity window at the given instant.
func (c *CertificateInfo) ValidAt(now time.Time) bool {
	return c.Status == CertStatusValid && !now.Before(c.IssueDate) && !now.After(c.ExpiryDate)
}

// Validate checks the certificate invariants before it is written.
func (c *CertificateInfo) Validate() error {
	if c.ID == "" {
		return errs.Validationf("certificate ID is empty")
	}
	if c.DocType != DocCertificate {
		return errs.Validationf("certificate %s has docType %q", c.ID, c.DocType)
	}
	if c.AssetID == "" {
		return errs.Validationf("certificate %s references no asset", c.ID)
	}
	if c.Issuer == "" {
		return errs.Validationf("certificate %s has no issuer", c.ID)
	}
	if !c.ExpiryDate.After(c.IssueDate) {
		return errs.Validationf("certificate %s expires at or before issuance", c.ID)
	}
	return nil
}
