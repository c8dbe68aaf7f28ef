package certify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/certify"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/ledger"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/ledger/ledgertest"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
)

const regulatorID = "x509::CN=consejo-1::CN=ca.regulator.winetrace"

type RegistrySuite struct {
	suite.Suite
	fake     *ledgertest.Fake
	store    *ledger.Store
	registry *certify.Registry
}

func (s *RegistrySuite) SetupTest() {
	s.fake = ledgertest.New()
	s.store = ledger.NewStore(s.fake)
	s.registry = certify.NewRegistry(s.store)

	now, err := s.store.Now()
	s.Require().NoError(err)
	a := model.NewAsset("LOT-1", model.TypeHarvestLot, "grower-1", model.StatusRegistered, model.Properties{
		HarvestLot: &model.HarvestLotProperties{
			ParcelID:     "PARCEL-1",
			HarvestDate:  now,
			GrapeVariety: "Mencia",
			QuantityKg:   900,
		},
	}, now)
	s.Require().NoError(s.store.CreateAsset(a))
}

func (s *RegistrySuite) issue(certID string, window time.Duration) *model.CertificateInfo {
	now, _ := s.store.Now()
	cert, err := s.registry.Issue(regulatorID, certID, "LOT-1", model.CertTypeDenomination, now, now.Add(window), nil)
	s.Require().NoError(err)
	return cert
}

func (s *RegistrySuite) TestIssueBindsCertificateToAsset() {
	cert := s.issue("CERT-1", 365*24*time.Hour)
	s.Equal(model.CertStatusValid, cert.Status)
	s.Equal("LOT-1", cert.AssetID)

	asset, err := s.store.GetAsset("LOT-1")
	s.Require().NoError(err)
	s.Contains(asset.CertificateIDs, "CERT-1")
	last := asset.History[len(asset.History)-1]
	s.Equal(model.ActionCertified, last.Action)
	s.Equal("CERT-1", last.Details["certificateId"])
}

func (s *RegistrySuite) TestIssueRejectsDuplicateID() {
	s.issue("CERT-1", 24*time.Hour)
	now, _ := s.store.Now()

	_, err := s.registry.Issue(regulatorID, "CERT-1", "LOT-1", model.CertTypeQuality, now, now.Add(time.Hour), nil)
	s.Require().ErrorIs(err, errs.ErrAlreadyExists)
}

func (s *RegistrySuite) TestIssueRejectsMissingAsset() {
	now, _ := s.store.Now()
	_, err := s.registry.Issue(regulatorID, "CERT-1", "LOT-404", model.CertTypeQuality, now, now.Add(time.Hour), nil)
	s.Require().ErrorIs(err, errs.ErrNotFound)
}

func (s *RegistrySuite) TestIssueRejectsInvertedWindow() {
	now, _ := s.store.Now()
	_, err := s.registry.Issue(regulatorID, "CERT-1", "LOT-1", model.CertTypeQuality, now, now.Add(-time.Hour), nil)
	s.Require().ErrorIs(err, errs.ErrValidation)
}

func (s *RegistrySuite) TestVerifyScopedToIssuer() {
	s.issue("CERT-1", 365*24*time.Hour)

	ok, err := s.registry.Verify(regulatorID, "LOT-1")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.registry.Verify("x509::CN=other::CN=ca.regulator.winetrace", "LOT-1")
	s.Require().NoError(err)
	s.False(ok, "a certificate only vouches for its own issuer")
}

func (s *RegistrySuite) TestVerifyFailsAfterExpiry() {
	s.issue("CERT-1", 30*time.Minute)

	// Advance past the validity window.
	now, _ := s.store.Now()
	s.fake.SetNow(now.Add(time.Hour))

	ok, err := s.registry.Verify(regulatorID, "LOT-1")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RegistrySuite) TestRevokeIsIrreversible() {
	s.issue("CERT-1", 365*24*time.Hour)
	s.fake.Tick()

	cert, err := s.registry.Revoke(regulatorID, "CERT-1", "fraud investigation")
	s.Require().NoError(err)
	s.Equal(model.CertStatusRevoked, cert.Status)
	s.Equal("fraud investigation", cert.RevocationReason)
	s.Require().NotNil(cert.RevokedAt)

	asset, err := s.store.GetAsset("LOT-1")
	s.Require().NoError(err)
	last := asset.History[len(asset.History)-1]
	s.Equal(model.ActionCertificateRevoked, last.Action)

	ok, err := s.registry.Verify(regulatorID, "LOT-1")
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.registry.Revoke(regulatorID, "CERT-1", "again")
	s.Require().ErrorIs(err, errs.ErrState, "revocation cannot repeat")
}

func (s *RegistrySuite) TestRevokeRequiresOriginalIssuer() {
	s.issue("CERT-1", 24*time.Hour)

	_, err := s.registry.Revoke("x509::CN=other::CN=ca.regulator.winetrace", "CERT-1", "attempt")
	s.Require().ErrorIs(err, errs.ErrUnauthorized)

	cert, err := s.store.GetCertificate("CERT-1")
	s.Require().NoError(err)
	s.Equal(model.CertStatusValid, cert.Status)
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}
