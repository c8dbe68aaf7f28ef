package contracts

import (
	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/access"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/trace"
)

// RegulatorContract covers oversight: certificate issuance and revocation,
// authenticity checks and full audit traces.
type RegulatorContract struct {
	contractapi.Contract
	cfg access.Config
}

func NewRegulatorContract(cfg access.Config) *RegulatorContract {
	c := &RegulatorContract{cfg: cfg}
	c.Name = "RegulatorContract"
	return c
}

// IssueCertificate binds a certificate to an asset. Dates are RFC 3339.
func (c *RegulatorContract) IssueCertificate(ctx contractapi.TransactionContextInterface, certID, assetID, certType, issueDate, expiryDate, detailsJSON string) (*model.CertificateInfo, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleRegulator); err != nil {
		return nil, err
	}
	issued, err := parseTime(issueDate)
	if err != nil {
		return nil, err
	}
	expires, err := parseTime(expiryDate)
	if err != nil {
		return nil, err
	}
	details, err := parseStringMap(detailsJSON)
	if err != nil {
		return nil, err
	}
	return r.certs.Issue(r.caller, certID, assetID, certType, issued, expires, details)
}

// VerifyAuthenticity reports whether the asset carries a certificate issued
// by the caller that is valid at the transaction timestamp.
func (c *RegulatorContract) VerifyAuthenticity(ctx contractapi.TransactionContextInterface, assetID string) (bool, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return false, err
	}
	if err := r.guard.Enforce(access.RoleRegulator); err != nil {
		return false, err
	}
	return r.certs.Verify(r.caller, assetID)
}

// RevokeCertificate irreversibly invalidates a certificate the caller
// issued.
func (c *RegulatorContract) RevokeCertificate(ctx contractapi.TransactionContextInterface, certID, reason string) (*model.CertificateInfo, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleRegulator); err != nil {
		return nil, err
	}
	return r.certs.Revoke(r.caller, certID, reason)
}

// AuditTrace returns the full trace of a product plus the raw ledger
// modification history of every asset in its chain.
func (c *RegulatorContract) AuditTrace(ctx contractapi.TransactionContextInterface, productID string) (*trace.AuditReport, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleRegulator); err != nil {
		return nil, err
	}
	return r.trace.Audit(productID)
}
