package contracts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/access"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/ledger/ledgertest"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
)

const (
	growerID      = "x509::CN=finca-1::CN=ca.grower.winetrace"
	wineryID      = "x509::CN=bodega-1::CN=ca.winery.winetrace"
	carrierID     = "x509::CN=frio-1::CN=ca.carrier.winetrace"
	distributorID = "x509::CN=dist-1::CN=ca.distributor.winetrace"
	retailerID    = "x509::CN=vinoteca-1::CN=ca.retailer.winetrace"
	regulatorID   = "x509::CN=consejo-1::CN=ca.regulator.winetrace"
)

type fakeIdentity struct {
	id  string
	msp string
}

func (f fakeIdentity) ID() (string, error)    { return f.id, nil }
func (f fakeIdentity) MSPID() (string, error) { return f.msp, nil }
func (f fakeIdentity) Attribute(string) (string, bool, error) {
	return "", false, nil
}

type LifecycleSuite struct {
	suite.Suite
	fake *ledgertest.Fake
	cfg  access.Config
}

func (s *LifecycleSuite) SetupTest() {
	s.fake = ledgertest.New()
	s.cfg = access.DefaultConfig()
}

// as builds a runtime for an identity against the shared world state, as if
// that identity submitted a fresh transaction.
func (s *LifecycleSuite) as(id, msp string) *runtime {
	s.fake.Tick()
	r, err := buildRuntime(s.fake, fakeIdentity{id: id, msp: msp}, s.cfg)
	s.Require().NoError(err)
	return r
}

func (s *LifecycleSuite) TestGrowerStage() {
	r := s.as(growerID, "GrowerMSP")

	parcel, err := registerParcel(r, "PARCEL-1", "Haro, Rioja Alta", 4.5, "clay-limestone")
	s.Require().NoError(err)
	s.Equal(model.StatusActive, parcel.Status)

	_, err = registerInputApplication(r, "APP-1", "PARCEL-1", "fertilizer", "compost", 120, "2024-03-10T09:00:00Z", `{"organic":"yes"}`)
	s.Require().NoError(err)

	lot, err := registerHarvestLot(r, "LOT-1", "PARCEL-1", "2024-09-14T08:00:00Z", "Tempranillo", 1500, "")
	s.Require().NoError(err)
	s.Equal(model.StatusRegistered, lot.Status)
	s.Equal("PARCEL-1", lot.Properties.HarvestLot.ParcelID)

	r = s.as(growerID, "GrowerMSP")
	lot, err = recordHarvestAnalysis(r, "LOT-1", "sugar-content", `{"brix":"24.5"}`)
	s.Require().NoError(err)
	s.Equal(model.StatusAnalyzed, lot.Status)
	s.Require().Len(lot.Properties.HarvestLot.Analyses, 1)
	s.Equal("24.5", lot.Properties.HarvestLot.Analyses[0].Results["brix"])
}

func (s *LifecycleSuite) TestHarvestLotRequiresOwnParcel() {
	r := s.as(growerID, "GrowerMSP")
	_, err := registerParcel(r, "PARCEL-1", "Haro", 4.5, "clay")
	s.Require().NoError(err)

	other := s.as("x509::CN=finca-2::CN=ca.grower.winetrace", "GrowerMSP")
	_, err = registerHarvestLot(other, "LOT-1", "PARCEL-1", "2024-09-14T08:00:00Z", "Viura", 500, "")
	s.Require().ErrorIs(err, errs.ErrUnauthorized)
}

func (s *LifecycleSuite) TestWineryStage() {
	s.seedThroughTransferToWinery()

	r := s.as(wineryID, "WineryMSP")
	lot, err := receiveHarvestLot(r, "LOT-1")
	s.Require().NoError(err)
	s.Equal(model.StatusReceived, lot.Status)

	r = s.as(wineryID, "WineryMSP")
	batch, err := startElaboration(r, "BATCH-1", `["LOT-1"]`, "crianza", "barrel", "")
	s.Require().NoError(err)
	s.Equal(model.StatusInElaboration, batch.Status)

	lot, err = r.store.GetAsset("LOT-1")
	s.Require().NoError(err)
	s.Equal(model.StatusInProcessing, lot.Status)

	r = s.as(wineryID, "WineryMSP")
	batch, err = recordBatchAnalysis(r, "BATCH-1", "malolactic", `{"ph":"3.6"}`)
	s.Require().NoError(err)
	s.Equal(model.StatusAnalyzed, batch.Status)

	r = s.as(wineryID, "WineryMSP")
	pkg, err := recordBottling(r, "BATCH-1", "PKG-1", 2000, `{"format":"75cl"}`)
	s.Require().NoError(err)
	s.Equal(model.StatusCreated, pkg.Status)
	s.Equal("BATCH-1", pkg.Properties.PackagedLot.WineBatchID)

	batch, err = r.store.GetAsset("BATCH-1")
	s.Require().NoError(err)
	s.Equal(model.StatusBottled, batch.Status)
	s.Equal("PKG-1", batch.Properties.WineBatch.PackagedLotID)
}

func (s *LifecycleSuite) TestCarrierStage() {
	s.seedThroughPackagedLotAtCarrier()

	r := s.as(carrierID, "CarrierMSP")
	tr, err := startTransport(r, "TR-1", "PKG-1", "Haro", "Madrid", "2024-09-16T18:00:00Z")
	s.Require().NoError(err)
	s.Equal(model.StatusInTransit, tr.Status)

	lot, err := r.store.GetAsset("PKG-1")
	s.Require().NoError(err)
	s.Equal(model.StatusInTransit, lot.Status)

	r = s.as(carrierID, "CarrierMSP")
	tr, err = updateTransportConditions(r, "TR-1", 14.0, 65.0, "Burgos")
	s.Require().NoError(err)
	s.Len(tr.Conditions, 1)
	s.Empty(tr.Incidents, "in-range reading raises no incident")

	r = s.as(carrierID, "CarrierMSP")
	tr, err = updateTransportConditions(r, "TR-1", 21.5, 65.0, "Aranda")
	s.Require().NoError(err)
	s.Require().Len(tr.Incidents, 1, "out-of-range reading raises an automatic incident")
	s.Contains(tr.Incidents[0].Details, "temperature")

	r = s.as(carrierID, "CarrierMSP")
	tr, err = recordIncident(r, "TR-1", "pallet shifted", "Madrid ring road")
	s.Require().NoError(err)
	s.Len(tr.Incidents, 2)

	r = s.as(carrierID, "CarrierMSP")
	tr, err = finishTransport(r, "TR-1", distributorID)
	s.Require().NoError(err)
	s.Equal(model.StatusDelivered, tr.Status)

	lot, err = r.store.GetAsset("PKG-1")
	s.Require().NoError(err)
	s.Equal(model.StatusPendingConfirmation, lot.Status)
	s.Equal(distributorID, lot.PendingOwner)

	r = s.as(distributorID, "DistributorMSP")
	lot, err = r.transfer.ConfirmReceipt(distributorID, "PKG-1")
	s.Require().NoError(err)
	s.Equal(distributorID, lot.Owner)
}

func (s *LifecycleSuite) TestRetailStage() {
	s.seedThroughPackagedLotAtRetailer()

	r := s.as(retailerID, "RetailerMSP")
	lot, err := makeAvailable(r, "PKG-1", 500, "Calle Mayor 12", 14.90)
	s.Require().NoError(err)
	s.Equal(model.StatusAvailable, lot.Status)
	s.Require().NotNil(lot.Properties.PackagedLot.Availability)
	s.Equal(500, lot.Properties.PackagedLot.Availability.Units)

	r = s.as(retailerID, "RetailerMSP")
	code, err := generateTraceCode(r, "PKG-1", "0001")
	s.Require().NoError(err)
	s.Equal("PKG-1-U-0001", code.ProductID)
	s.Equal("PKG-1", code.LotID)
	s.Contains(code.URL, "PKG-1-U-0001")

	unit, err := r.store.GetAsset("PKG-1-U-0001")
	s.Require().NoError(err)
	s.Equal(model.StatusAvailable, unit.Status)
	s.Equal("0001", unit.Properties.Unit.SerialNumber)

	_, err = generateTraceCode(r, "PKG-1", "0001")
	s.Require().ErrorIs(err, errs.ErrAlreadyExists)

	r = s.as(retailerID, "RetailerMSP")
	unit, err = recordSale(r, "PKG-1", "0001")
	s.Require().NoError(err)
	s.Equal(model.StatusSold, unit.Status)
	s.Require().NotNil(unit.Properties.Unit.SoldAt)

	lot, err = r.store.GetAsset("PKG-1")
	s.Require().NoError(err)
	s.Equal(499, lot.Properties.PackagedLot.Availability.Units)

	_, err = recordSale(r, "PKG-1", "0001")
	s.Require().ErrorIs(err, errs.ErrState, "a unit sells once")
}

func (s *LifecycleSuite) TestDirectTransferThenReceive() {
	s.seedThroughTransferToWinery()

	r := s.as(wineryID, "WineryMSP")
	_, err := receiveHarvestLot(r, "LOT-1")
	s.Require().NoError(err)
	r = s.as(wineryID, "WineryMSP")
	_, err = startElaboration(r, "BATCH-1", `["LOT-1"]`, "joven", "steel", "")
	s.Require().NoError(err)
	r = s.as(wineryID, "WineryMSP")
	_, err = recordBottling(r, "BATCH-1", "PKG-1", 1000, "")
	s.Require().NoError(err)

	// Winery to retailer with no carrier leg.
	r = s.as(wineryID, "WineryMSP")
	_, err = r.transfer.Transfer(wineryID, "PKG-1", retailerID, nil)
	s.Require().NoError(err)

	other := s.as("x509::CN=vinoteca-2::CN=ca.retailer.winetrace", "RetailerMSP")
	_, err = receiveLot(other, "PKG-1")
	s.Require().ErrorIs(err, errs.ErrUnauthorized)

	r = s.as(retailerID, "RetailerMSP")
	lot, err := receiveLot(r, "PKG-1")
	s.Require().NoError(err)
	s.Equal(model.StatusReceived, lot.Status)

	r = s.as(retailerID, "RetailerMSP")
	lot, err = makeAvailable(r, "PKG-1", 100, "Plaza Nueva 3", 9.50)
	s.Require().NoError(err)
	s.Equal(model.StatusAvailable, lot.Status)
}

func (s *LifecycleSuite) TestGenerateTraceCodeRejectsUnitAsLot() {
	s.seedThroughPackagedLotAtRetailer()

	r := s.as(retailerID, "RetailerMSP")
	_, err := makeAvailable(r, "PKG-1", 500, "Calle Mayor 12", 14.90)
	s.Require().NoError(err)
	_, err = generateTraceCode(r, "PKG-1", "0001")
	s.Require().NoError(err)

	// The unit is retailer-owned and available, so only the type check
	// stands between it and a nested unit.
	r = s.as(retailerID, "RetailerMSP")
	_, err = generateTraceCode(r, "PKG-1-U-0001", "0002")
	s.Require().ErrorIs(err, errs.ErrValidation)

	_, err = r.store.GetAsset("PKG-1-U-0001-U-0002")
	s.Require().ErrorIs(err, errs.ErrNotFound, "rejected call must write nothing")
}

func (s *LifecycleSuite) TestVerifyTraceCode() {
	s.seedThroughPackagedLotAtRetailer()

	r := s.as(retailerID, "RetailerMSP")
	_, err := makeAvailable(r, "PKG-1", 500, "Calle Mayor 12", 14.90)
	s.Require().NoError(err)
	code, err := generateTraceCode(r, "PKG-1", "0001")
	s.Require().NoError(err)

	payload, err := json.Marshal(code)
	s.Require().NoError(err)

	consumer := s.as("x509::CN=anyone::CN=ca.consumer.winetrace", "ConsumerMSP")
	ok, err := verifyTraceCode(consumer, string(payload))
	s.Require().NoError(err)
	s.True(ok)

	forged := *code
	forged.LotID = "PKG-2"
	payload, _ = json.Marshal(forged)
	ok, err = verifyTraceCode(consumer, string(payload))
	s.Require().NoError(err)
	s.False(ok, "payload lot must match the unit's lot")

	missing := *code
	missing.ProductID = "PKG-1-U-9999"
	payload, _ = json.Marshal(missing)
	ok, err = verifyTraceCode(consumer, string(payload))
	s.Require().NoError(err)
	s.False(ok)
}

func (s *LifecycleSuite) TestConsumerTraceEndToEnd() {
	s.seedThroughPackagedLotAtRetailer()

	r := s.as(retailerID, "RetailerMSP")
	_, err := makeAvailable(r, "PKG-1", 500, "Calle Mayor 12", 14.90)
	s.Require().NoError(err)
	_, err = generateTraceCode(r, "PKG-1", "0001")
	s.Require().NoError(err)

	consumer := s.as("x509::CN=anyone::CN=ca.consumer.winetrace", "ConsumerMSP")
	v, err := consumer.trace.ConsumerTrace("PKG-1-U-0001")
	s.Require().NoError(err)
	s.Equal("Tempranillo", v.GrapeVariety)
	s.Equal("crianza", v.WineType)
	s.NotEmpty(v.Stages)
}

// seedThroughTransferToWinery walks the grower stage and transfers LOT-1 to
// the winery.
func (s *LifecycleSuite) seedThroughTransferToWinery() {
	r := s.as(growerID, "GrowerMSP")
	_, err := registerParcel(r, "PARCEL-1", "Haro", 4.5, "clay")
	s.Require().NoError(err)
	_, err = registerHarvestLot(r, "LOT-1", "PARCEL-1", "2024-09-14T08:00:00Z", "Tempranillo", 1500, "")
	s.Require().NoError(err)

	r = s.as(growerID, "GrowerMSP")
	_, err = r.transfer.Transfer(growerID, "LOT-1", wineryID, nil)
	s.Require().NoError(err)
}

// seedThroughPackagedLotAtCarrier continues through the winery stage and
// transfers PKG-1 to the carrier.
func (s *LifecycleSuite) seedThroughPackagedLotAtCarrier() {
	s.seedThroughTransferToWinery()

	r := s.as(wineryID, "WineryMSP")
	_, err := receiveHarvestLot(r, "LOT-1")
	s.Require().NoError(err)
	r = s.as(wineryID, "WineryMSP")
	_, err = startElaboration(r, "BATCH-1", `["LOT-1"]`, "crianza", "barrel", "")
	s.Require().NoError(err)
	r = s.as(wineryID, "WineryMSP")
	_, err = recordBottling(r, "BATCH-1", "PKG-1", 2000, "")
	s.Require().NoError(err)

	r = s.as(wineryID, "WineryMSP")
	_, err = r.transfer.Transfer(wineryID, "PKG-1", carrierID, nil)
	s.Require().NoError(err)
}

// seedThroughPackagedLotAtRetailer finishes the carrier leg with the
// retailer confirming the delivery.
func (s *LifecycleSuite) seedThroughPackagedLotAtRetailer() {
	s.seedThroughPackagedLotAtCarrier()

	r := s.as(carrierID, "CarrierMSP")
	_, err := startTransport(r, "TR-1", "PKG-1", "Haro", "Madrid", "2024-09-16T18:00:00Z")
	s.Require().NoError(err)
	r = s.as(carrierID, "CarrierMSP")
	_, err = finishTransport(r, "TR-1", retailerID)
	s.Require().NoError(err)

	r = s.as(retailerID, "RetailerMSP")
	_, err = r.transfer.ConfirmReceipt(retailerID, "PKG-1")
	s.Require().NoError(err)
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}
