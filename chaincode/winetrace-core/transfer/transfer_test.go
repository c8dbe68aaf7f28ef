package transfer_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/access"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/ledger"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/ledger/ledgertest"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/transfer"
)

const (
	growerID      = "x509::CN=finca-1::CN=ca.grower.winetrace"
	wineryID      = "x509::CN=bodega-1::CN=ca.winery.winetrace"
	carrierID     = "x509::CN=frio-1::CN=ca.carrier.winetrace"
	distributorID = "x509::CN=dist-1::CN=ca.distributor.winetrace"
	retailerID    = "x509::CN=vinoteca-1::CN=ca.retailer.winetrace"
)

type TransferSuite struct {
	suite.Suite
	fake     *ledgertest.Fake
	store    *ledger.Store
	protocol *transfer.Protocol
}

func (s *TransferSuite) SetupTest() {
	s.fake = ledgertest.New()
	s.store = ledger.NewStore(s.fake)
	s.protocol = transfer.NewProtocol(s.store, access.DefaultConfig())
}

func (s *TransferSuite) seedHarvestLot(id, owner string, status model.Status) *model.Asset {
	now, err := s.store.Now()
	s.Require().NoError(err)
	a := model.NewAsset(id, model.TypeHarvestLot, owner, status, model.Properties{
		HarvestLot: &model.HarvestLotProperties{
			ParcelID:     "PARCEL-1",
			HarvestDate:  now,
			GrapeVariety: "Albarino",
			QuantityKg:   500,
		},
	}, now)
	s.Require().NoError(s.store.CreateAsset(a))
	return a
}

func (s *TransferSuite) seedPackagedLot(id, owner string, status model.Status) *model.Asset {
	now, err := s.store.Now()
	s.Require().NoError(err)
	a := model.NewAsset(id, model.TypePackagedLot, owner, status, model.Properties{
		PackagedLot: &model.PackagedLotProperties{
			WineBatchID: "BATCH-1",
			BottleCount: 600,
			BottledAt:   now,
		},
	}, now)
	s.Require().NoError(s.store.CreateAsset(a))
	return a
}

func (s *TransferSuite) TestTransferReassignsOwnerAndRecordsHistory() {
	s.seedHarvestLot("LOT-1", growerID, model.StatusRegistered)
	s.fake.Tick()

	got, err := s.protocol.Transfer(growerID, "LOT-1", wineryID, nil)
	s.Require().NoError(err)
	s.Equal(wineryID, got.Owner)
	s.Equal(model.StatusTransferred, got.Status)

	last := got.History[len(got.History)-1]
	s.Equal(model.ActionTransferred, last.Action)
	s.Equal(growerID, last.Actor)
	s.Equal(growerID, last.Details["from"])
	s.Equal(wineryID, last.Details["to"])

	stored, err := s.store.GetAsset("LOT-1")
	s.Require().NoError(err)
	s.Equal(wineryID, stored.Owner)
}

func (s *TransferSuite) TestTransferRejectsNonOwner() {
	s.seedHarvestLot("LOT-1", growerID, model.StatusRegistered)

	_, err := s.protocol.Transfer(wineryID, "LOT-1", wineryID, nil)
	s.Require().ErrorIs(err, errs.ErrUnauthorized)

	stored, err := s.store.GetAsset("LOT-1")
	s.Require().NoError(err)
	s.Equal(growerID, stored.Owner, "failed transfer must not change owner")
	s.Equal(model.StatusRegistered, stored.Status)
	s.Len(stored.History, 1)
}

func (s *TransferSuite) TestTransferValidatesDestinationRole() {
	s.seedHarvestLot("LOT-1", growerID, model.StatusRegistered)

	_, err := s.protocol.Transfer(growerID, "LOT-1", retailerID, nil)
	s.Require().ErrorIs(err, errs.ErrValidation, "a harvest lot may not go to a retailer")

	_, err = s.protocol.Transfer(growerID, "LOT-1", "x509::CN=x::CN=ca.nowhere.example", nil)
	s.Require().ErrorIs(err, errs.ErrValidation, "unknown destination organization")
}

func (s *TransferSuite) TestTransferMissingAsset() {
	_, err := s.protocol.Transfer(growerID, "LOT-404", wineryID, nil)
	s.Require().ErrorIs(err, errs.ErrNotFound)
}

func (s *TransferSuite) TestDeliverAndConfirmReceipt() {
	s.seedPackagedLot("PKG-1", carrierID, model.StatusInTransit)
	s.fake.Tick()
	now, _ := s.store.Now()

	delivered, err := s.protocol.Deliver(carrierID, "PKG-1", distributorID, now)
	s.Require().NoError(err)
	s.Equal(model.StatusPendingConfirmation, delivered.Status)
	s.Equal(distributorID, delivered.PendingOwner)
	s.Equal(carrierID, delivered.Owner, "ownership does not move until confirmation")

	s.fake.Tick()
	received, err := s.protocol.ConfirmReceipt(distributorID, "PKG-1")
	s.Require().NoError(err)
	s.Equal(distributorID, received.Owner)
	s.Empty(received.PendingOwner)
	s.Equal(model.StatusReceived, received.Status)

	last := received.History[len(received.History)-1]
	s.Equal(model.ActionReceived, last.Action)
	s.Equal(carrierID, last.Details["from"])
}

func (s *TransferSuite) TestConfirmReceiptRejectsWrongRecipient() {
	s.seedPackagedLot("PKG-1", carrierID, model.StatusInTransit)
	now, _ := s.store.Now()
	_, err := s.protocol.Deliver(carrierID, "PKG-1", distributorID, now)
	s.Require().NoError(err)

	_, err = s.protocol.ConfirmReceipt(retailerID, "PKG-1")
	s.Require().ErrorIs(err, errs.ErrUnauthorized)

	stored, err := s.store.GetAsset("PKG-1")
	s.Require().NoError(err)
	s.Equal(carrierID, stored.Owner)
	s.Equal(distributorID, stored.PendingOwner)
}

func TestTransferSuite(t *testing.T) {
	suite.Run(t, new(TransferSuite))
}
