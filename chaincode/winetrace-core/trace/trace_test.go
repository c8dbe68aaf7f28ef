package trace_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/ledger"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/ledger/ledgertest"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/trace"
)

type TraceSuite struct {
	suite.Suite
	fake  *ledgertest.Fake
	store *ledger.Store
	index *trace.Index
}

func (s *TraceSuite) SetupTest() {
	s.fake = ledgertest.New()
	s.store = ledger.NewStore(s.fake)
	s.index = trace.NewIndex(s.store)
	s.seedChain()
}

// seedChain builds a full journey: two harvest lots pressed into one batch,
// bottled into a packaged lot, one unit issued, one transport with two
// incidents.
func (s *TraceSuite) seedChain() {
	now, err := s.store.Now()
	s.Require().NoError(err)

	for _, id := range []string{"G-1", "G-2"} {
		lot := model.NewAsset(id, model.TypeHarvestLot, "grower-1", model.StatusInProcessing, model.Properties{
			HarvestLot: &model.HarvestLotProperties{
				ParcelID:     "PARCEL-1",
				HarvestDate:  now.AddDate(0, -1, 0),
				GrapeVariety: "Tempranillo",
				QuantityKg:   700,
			},
		}, now)
		s.Require().NoError(s.store.CreateAsset(lot))
	}

	batch := model.NewAsset("BATCH-1", model.TypeWineBatch, "winery-1", model.StatusBottled, model.Properties{
		WineBatch: &model.WineBatchProperties{
			HarvestLotIDs: []string{"G-1", "G-2"},
			WineType:      "crianza",
			Method:        "barrel",
			StartedAt:     now,
			PackagedLotID: "PKG-1",
		},
	}, now.Add(time.Hour))
	s.Require().NoError(s.store.CreateAsset(batch))

	pkg := model.NewAsset("PKG-1", model.TypePackagedLot, "retailer-1", model.StatusAvailable, model.Properties{
		PackagedLot: &model.PackagedLotProperties{
			WineBatchID: "BATCH-1",
			BottleCount: 1200,
			BottledAt:   now.Add(2 * time.Hour),
		},
	}, now.Add(2*time.Hour))
	s.Require().NoError(s.store.CreateAsset(pkg))

	unit := model.NewAsset("PKG-1-U-0001", model.TypeUnit, "retailer-1", model.StatusAvailable, model.Properties{
		Unit: &model.UnitProperties{
			PackagedLotID: "PKG-1",
			SerialNumber:  "0001",
			IssuedAt:      now.Add(5 * time.Hour),
		},
	}, now.Add(5*time.Hour))
	s.Require().NoError(s.store.CreateAsset(unit))

	arrival := now.Add(4 * time.Hour)
	tr := &model.TransportRecord{
		DocType:       model.DocTransport,
		ID:            "TR-1",
		BatchID:       "PKG-1",
		Origin:        "Haro",
		Destination:   "Madrid",
		CarrierID:     "carrier-1",
		DepartureTime: now.Add(3 * time.Hour),
		ActualArrival: &arrival,
		Status:        model.StatusDelivered,
		Incidents: []model.Incident{
			{Timestamp: now.Add(3*time.Hour + 20*time.Minute), Details: "temperature 21.0C outside 10-18C"},
			{Timestamp: now.Add(3*time.Hour + 40*time.Minute), Details: "road closure detour"},
		},
	}
	s.Require().NoError(s.store.CreateTransport(tr))

	cert := &model.CertificateInfo{
		DocType:    model.DocCertificate,
		ID:         "CERT-1",
		Type:       model.CertTypeDenomination,
		IssueDate:  now.AddDate(0, 0, -10),
		ExpiryDate: now.AddDate(1, 0, 0),
		Issuer:     "regulator-1",
		AssetID:    "BATCH-1",
		Status:     model.CertStatusValid,
	}
	s.Require().NoError(s.store.CreateCertificate(cert))
	batch.CertificateIDs = []string{"CERT-1"}
	s.Require().NoError(s.store.UpdateAsset(batch))
}

func (s *TraceSuite) TestTraceFromUnitResolvesWholeChain() {
	r, err := s.index.Trace("PKG-1-U-0001")
	s.Require().NoError(err)

	s.Require().NotNil(r.Unit)
	s.Require().NotNil(r.PackagedLot)
	s.Require().NotNil(r.WineBatch)
	s.Require().Len(r.HarvestLots, 2)
	s.Equal("G-1", r.HarvestLots[0].Asset.ID)
	s.Equal("G-2", r.HarvestLots[1].Asset.ID)

	s.Require().Len(r.WineBatch.Certificates, 1)
	s.Equal("CERT-1", r.WineBatch.Certificates[0].ID)

	s.Require().Len(r.Transports, 1)
	s.Equal("TR-1", r.Transports[0].ID)
}

func (s *TraceSuite) TestTraceEventsAreChronological() {
	r, err := s.index.Trace("PKG-1-U-0001")
	s.Require().NoError(err)
	s.Require().NotEmpty(r.Events)

	for i := 1; i < len(r.Events); i++ {
		s.False(r.Events[i].Timestamp.Before(r.Events[i-1].Timestamp),
			"events must be ordered, %d before %d", i, i-1)
	}

	s.Equal(trace.StageViticulture, r.Events[0].Stage)

	var stages []string
	for _, e := range r.Events {
		stages = append(stages, e.Stage)
	}
	s.Contains(stages, trace.StageWinery)
	s.Contains(stages, trace.StageTransport)
	s.Contains(stages, trace.StageRetail)
}

func (s *TraceSuite) TestTraceFromPackagedLotOmitsUnit() {
	r, err := s.index.Trace("PKG-1")
	s.Require().NoError(err)
	s.Nil(r.Unit)
	s.NotNil(r.PackagedLot)
	s.Len(r.HarvestLots, 2)
}

func (s *TraceSuite) TestTraceRejectsUnitReferencingUnit() {
	now, _ := s.store.Now()
	bad := model.NewAsset("PKG-1-U-0001-U-0002", model.TypeUnit, "retailer-1", model.StatusAvailable, model.Properties{
		Unit: &model.UnitProperties{
			PackagedLotID: "PKG-1-U-0001",
			SerialNumber:  "0002",
			IssuedAt:      now,
		},
	}, now)
	s.Require().NoError(s.store.CreateAsset(bad))

	_, err := s.index.Trace("PKG-1-U-0001-U-0002")
	s.Require().ErrorIs(err, errs.ErrValidation, "a unit chained to another unit must fail, not panic")

	_, err = s.index.ConsumerTrace("PKG-1-U-0001-U-0002")
	s.Require().ErrorIs(err, errs.ErrValidation)
}

func (s *TraceSuite) TestTraceMissingProduct() {
	_, err := s.index.Trace("PKG-404")
	s.Require().ErrorIs(err, errs.ErrNotFound)
}

func (s *TraceSuite) TestConsumerTraceRedactsToIncidentCounts() {
	v, err := s.index.ConsumerTrace("PKG-1-U-0001")
	s.Require().NoError(err)

	s.Equal("PKG-1-U-0001", v.ProductID)
	s.Equal("Tempranillo", v.GrapeVariety)
	s.Equal("crianza", v.WineType)
	s.Equal(2, v.IncidentCount, "incidents surface only as a count")

	s.Require().Len(v.Certificates, 1)
	s.Equal(model.CertTypeDenomination, v.Certificates[0].Type)

	for _, e := range v.Stages {
		s.Empty(e.Actor, "consumer view carries no identities")
		s.Empty(e.Detail)
	}
}

func (s *TraceSuite) TestConsumerTraceSkipsInvalidCertificates() {
	cert, err := s.store.GetCertificate("CERT-1")
	s.Require().NoError(err)
	now, _ := s.store.Now()
	revoked := now
	cert.Status = model.CertStatusRevoked
	cert.RevokedAt = &revoked
	s.Require().NoError(s.store.UpdateCertificate(cert))

	v, err := s.index.ConsumerTrace("PKG-1-U-0001")
	s.Require().NoError(err)
	s.Empty(v.Certificates)
}

func (s *TraceSuite) TestAuditIncludesLedgerHistory() {
	a, err := s.index.Audit("PKG-1-U-0001")
	s.Require().NoError(err)

	s.Require().Contains(a.LedgerHistory, "BATCH-1")
	s.Len(a.LedgerHistory["BATCH-1"], 2, "create plus certificate attachment")
	s.Contains(a.LedgerHistory, "G-1")
	s.Contains(a.LedgerHistory, "PKG-1-U-0001")
}

func TestTraceSuite(t *testing.T) {
	suite.Run(t, new(TraceSuite))
}
