// Package certify manages certificates bound to assets: issuance, validity
// verification against the transaction timestamp, and irreversible
// revocation by the original issuer.
package certify

import (
	"time"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/ledger"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
)

// Registry performs certificate operations through the asset store.
type Registry struct {
	store *ledger.Store
}

func NewRegistry(store *ledger.Store) *Registry {
	return &Registry{store: store}
}

// Issue binds a new certificate to an existing asset. The certificate and
// the asset's back-reference are written in the same transaction.
func (r *Registry) Issue(issuer, certID, assetID, certType string, issued, expires time.Time, details map[string]string) (*model.CertificateInfo, error) {
	exists, err := r.store.Exists(certID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errs.AlreadyExistsf("certificate %s already exists", certID)
	}

	asset, err := r.store.GetAsset(assetID)
	if err != nil {
		return nil, err
	}

	cert := &model.CertificateInfo{
		DocType:    model.DocCertificate,
		ID:         certID,
		Type:       certType,
		IssueDate:  issued,
		ExpiryDate: expires,
		Issuer:     issuer,
		AssetID:    assetID,
		Status:     model.CertStatusValid,
		Properties: details,
	}
	if err := r.store.CreateCertificate(cert); err != nil {
		return nil, err
	}

	now, err := r.store.Now()
	if err != nil {
		return nil, err
	}
	asset.CertificateIDs = append(asset.CertificateIDs, certID)
	asset.AppendHistory(now, model.ActionCertified, issuer, map[string]string{
		"certificateId": certID,
		"type":          certType,
	})
	if err := r.store.UpdateAsset(asset); err != nil {
		return nil, err
	}
	return cert, nil
}

// Verify reports whether the asset carries at least one certificate that is
// unrevoked, unexpired at the transaction timestamp, and issued by the
// caller.
func (r *Registry) Verify(caller, assetID string) (bool, error) {
	asset, err := r.store.GetAsset(assetID)
	if err != nil {
		return false, err
	}
	now, err := r.store.Now()
	if err != nil {
		return false, err
	}
	for _, certID := range asset.CertificateIDs {
		cert, err := r.store.GetCertificate(certID)
		if err != nil {
			return false, err
		}
		if cert.Issuer == caller && cert.ValidAt(now) {
			return true, nil
		}
	}
	return false, nil
}

// Revoke irreversibly invalidates a certificate. Only the original issuer
// may revoke, and a revoked certificate cannot be revoked again.
func (r *Registry) Revoke(caller, certID, reason string) (*model.CertificateInfo, error) {
	cert, err := r.store.GetCertificate(certID)
	if err != nil {
		return nil, err
	}
	if cert.Issuer != caller {
		return nil, errs.Unauthorizedf("only the original issuer may revoke certificate %s", certID)
	}
	if cert.Status == model.CertStatusRevoked {
		return nil, errs.Statef("certificate %s is already revoked", certID)
	}

	now, err := r.store.Now()
	if err != nil {
		return nil, err
	}
	cert.Status = model.CertStatusRevoked
	cert.RevocationReason = reason
	cert.RevokedAt = &now
	if err := r.store.UpdateCertificate(cert); err != nil {
		return nil, err
	}

	asset, err := r.store.GetAsset(cert.AssetID)
	if err != nil {
		return nil, err
	}
	asset.AppendHistory(now, model.ActionCertificateRevoked, caller, map[string]string{
		"certificateId": certID,
		"reason":        reason,
	})
	if err := r.store.UpdateAsset(asset); err != nil {
		return nil, err
	}
	return cert, nil
}

// CertificatesOf resolves an asset's certificate references.
func (r *Registry) CertificatesOf(asset *model.Asset) ([]*model.CertificateInfo, error) {
	certs := make([]*model.CertificateInfo, 0, len(asset.CertificateIDs))
	for _, certID := range asset.CertificateIDs {
		cert, err := r.store.GetCertificate(certID)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	return certs, nil
}
