package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
)

var testTime = time.Date(2024, 9, 15, 10, 0, 0, 0, time.UTC)

func harvestLotProps() Properties {
	return Properties{HarvestLot: &HarvestLotProperties{
		ParcelID:     "PARCEL-1",
		HarvestDate:  testTime,
		GrapeVariety: "Tempranillo",
		QuantityKg:   1200,
	}}
}

func TestNewAssetRecordsCreation(t *testing.T) {
	a := NewAsset("LOT-1", TypeHarvestLot, "grower-1", StatusRegistered, harvestLotProps(), testTime)

	require.Len(t, a.History, 1)
	assert.Equal(t, ActionCreated, a.History[0].Action)
	assert.Equal(t, "grower-1", a.History[0].Actor)
	assert.Equal(t, testTime, a.History[0].Timestamp)
	assert.Equal(t, DocAsset, a.DocType)
	require.NoError(t, a.Validate())
}

func TestTransitionRejectsUnknownEdge(t *testing.T) {
	a := NewAsset("LOT-1", TypeHarvestLot, "grower-1", StatusRegistered, harvestLotProps(), testTime)

	err := a.Transition(StatusReceived)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrState)
	assert.Equal(t, StatusRegistered, a.Status, "failed transition must not change status")
}

func TestTransitionFollowsMachine(t *testing.T) {
	a := NewAsset("LOT-1", TypeHarvestLot, "grower-1", StatusRegistered, harvestLotProps(), testTime)

	require.NoError(t, a.Transition(StatusAnalyzed))
	require.NoError(t, a.Transition(StatusTransferred))
	require.NoError(t, a.Transition(StatusReceived))
	require.NoError(t, a.Transition(StatusInProcessing))

	err := a.Transition(StatusAnalyzed)
	assert.ErrorIs(t, err, errs.ErrState, "in-processing is terminal")
}

func TestValidateRejectsMismatchedProperties(t *testing.T) {
	a := NewAsset("BATCH-1", TypeWineBatch, "winery-1", StatusInElaboration, harvestLotProps(), testTime)

	err := a.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestValidateRejectsNonPositiveQuantity(t *testing.T) {
	props := harvestLotProps()
	props.HarvestLot.QuantityKg = 0
	a := NewAsset("LOT-1", TypeHarvestLot, "grower-1", StatusRegistered, props, testTime)

	assert.ErrorIs(t, a.Validate(), errs.ErrValidation)
}

func TestCertificateValidAt(t *testing.T) {
	cert := &CertificateInfo{
		DocType:    DocCertificate,
		ID:         "CERT-1",
		Type:       CertTypeDenomination,
		IssueDate:  testTime,
		ExpiryDate: testTime.AddDate(1, 0, 0),
		Issuer:     "regulator-1",
		AssetID:    "LOT-1",
		Status:     CertStatusValid,
	}
	require.NoError(t, cert.Validate())

	assert.True(t, cert.ValidAt(testTime))
	assert.True(t, cert.ValidAt(testTime.AddDate(0, 6, 0)))
	assert.False(t, cert.ValidAt(testTime.Add(-time.Second)), "before issuance")
	assert.False(t, cert.ValidAt(testTime.AddDate(1, 0, 1)), "after expiry")

	cert.Status = CertStatusRevoked
	assert.False(t, cert.ValidAt(testTime), "revoked is never valid")
}

func TestCertificateValidateRejectsInvertedWindow(t *testing.T) {
	cert := &CertificateInfo{
		DocType:    DocCertificate,
		ID:         "CERT-1",
		IssueDate:  testTime,
		ExpiryDate: testTime,
		Issuer:     "regulator-1",
		AssetID:    "LOT-1",
	}
	assert.ErrorIs(t, cert.Validate(), errs.ErrValidation)
}

func TestConditionReadingOutOfRange(t *testing.T) {
	ok := ConditionReading{TemperatureC: 14, HumidityPct: 65}
	_, out := ok.OutOfRange()
	assert.False(t, out)

	hot := ConditionReading{TemperatureC: 22, HumidityPct: 65}
	detail, out := hot.OutOfRange()
	assert.True(t, out)
	assert.Contains(t, detail, "temperature")

	both := ConditionReading{TemperatureC: 5, HumidityPct: 90}
	detail, out = both.OutOfRange()
	assert.True(t, out)
	assert.Contains(t, detail, "temperature")
	assert.Contains(t, detail, "humidity")
}

func TestShipmentTransitions(t *testing.T) {
	sh := &Shipment{
		DocType:        DocShipment,
		ID:             "SHIP-1",
		Products:       []string{"PKG-1"},
		Owner:          "dist-1",
		TargetOrg:      "RetailerMSP",
		TransporterOrg: "CarrierMSP",
		Status:         StatusCreated,
	}
	require.NoError(t, sh.Validate())

	assert.ErrorIs(t, sh.Transition(StatusReceived), errs.ErrState, "cannot skip transit")
	require.NoError(t, sh.Transition(StatusInTransit))
	require.NoError(t, sh.Transition(StatusDelivered))
	require.NoError(t, sh.Transition(StatusReceived))
	assert.ErrorIs(t, sh.Transition(StatusInTransit), errs.ErrState, "received is terminal")
}

func TestTransportComplete(t *testing.T) {
	tr := &TransportRecord{
		DocType:   DocTransport,
		ID:        "TR-1",
		BatchID:   "PKG-1",
		CarrierID: "carrier-1",
		Status:    StatusInTransit,
	}
	require.NoError(t, tr.Validate())

	arrival := testTime.Add(4 * time.Hour)
	require.NoError(t, tr.Complete(arrival))
	assert.Equal(t, StatusDelivered, tr.Status)
	require.NotNil(t, tr.ActualArrival)
	assert.Equal(t, arrival, *tr.ActualArrival)

	assert.ErrorIs(t, tr.Complete(arrival), errs.ErrState, "already delivered")
}
