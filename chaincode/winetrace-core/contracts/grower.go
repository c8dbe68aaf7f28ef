package contracts

import (
	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/access"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
)

// GrowerContract covers the viticulture stage: parcels, input applications,
// harvest lots and their hand-off to a winery.
type GrowerContract struct {
	contractapi.Contract
	cfg access.Config
}

func NewGrowerContract(cfg access.Config) *GrowerContract {
	c := &GrowerContract{cfg: cfg}
	c.Name = "GrowerContract"
	return c
}

// RegisterParcel records a vineyard parcel under the caller's ownership.
func (c *GrowerContract) RegisterParcel(ctx contractapi.TransactionContextInterface, parcelID, location string, areaHectares float64, soilType string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleGrower); err != nil {
		return nil, err
	}
	return registerParcel(r, parcelID, location, areaHectares, soilType)
}

// RegisterHarvestLot records a grape lot harvested from one of the caller's
// parcels. harvestDate is RFC 3339; attributesJSON is an optional JSON
// object of free-form grape attributes.
func (c *GrowerContract) RegisterHarvestLot(ctx contractapi.TransactionContextInterface, lotID, parcelID, harvestDate, grapeVariety string, quantityKg float64, attributesJSON string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleGrower); err != nil {
		return nil, err
	}
	return registerHarvestLot(r, lotID, parcelID, harvestDate, grapeVariety, quantityKg, attributesJSON)
}

// RegisterInputApplication records a treatment or fertilizer applied to a
// parcel.
func (c *GrowerContract) RegisterInputApplication(ctx contractapi.TransactionContextInterface, appID, parcelID, kind, name string, quantity float64, appliedAt, detailsJSON string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleGrower); err != nil {
		return nil, err
	}
	return registerInputApplication(r, appID, parcelID, kind, name, quantity, appliedAt, detailsJSON)
}

// RecordHarvestAnalysis attaches an analysis result to a harvest lot and
// marks it analyzed.
func (c *GrowerContract) RecordHarvestAnalysis(ctx contractapi.TransactionContextInterface, lotID, kind, resultsJSON string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleGrower); err != nil {
		return nil, err
	}
	return recordHarvestAnalysis(r, lotID, kind, resultsJSON)
}

// TransferHarvestLot hands a harvest lot over to a winery identity.
func (c *GrowerContract) TransferHarvestLot(ctx contractapi.TransactionContextInterface, lotID, newOwner, detailsJSON string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleGrower); err != nil {
		return nil, err
	}
	details, err := parseStringMap(detailsJSON)
	if err != nil {
		return nil, err
	}
	return r.transfer.Transfer(r.caller, lotID, newOwner, details)
}

func registerParcel(r *runtime, parcelID, location string, areaHectares float64, soilType string) (*model.Asset, error) {
	now, err := r.now()
	if err != nil {
		return nil, err
	}
	asset := model.NewAsset(parcelID, model.TypeParcel, r.caller, model.StatusActive, model.Properties{
		Parcel: &model.ParcelProperties{
			Location:     location,
			AreaHectares: areaHectares,
			SoilType:     soilType,
		},
	}, now)
	if err := r.store.CreateAsset(asset); err != nil {
		return nil, err
	}
	return asset, nil
}

func registerHarvestLot(r *runtime, lotID, parcelID, harvestDate, grapeVariety string, quantityKg float64, attributesJSON string) (*model.Asset, error) {
	parcel, err := r.store.GetAsset(parcelID)
	if err != nil {
		return nil, err
	}
	if parcel.Owner != r.caller {
		return nil, errs.Unauthorizedf("parcel %s belongs to another grower", parcelID)
	}
	date, err := parseTime(harvestDate)
	if err != nil {
		return nil, err
	}
	attrs, err := parseStringMap(attributesJSON)
	if err != nil {
		return nil, err
	}
	now, err := r.now()
	if err != nil {
		return nil, err
	}
	asset := model.NewAsset(lotID, model.TypeHarvestLot, r.caller, model.StatusRegistered, model.Properties{
		HarvestLot: &model.HarvestLotProperties{
			ParcelID:     parcelID,
			HarvestDate:  date,
			GrapeVariety: grapeVariety,
			QuantityKg:   quantityKg,
			Attributes:   attrs,
		},
	}, now)
	if err := r.store.CreateAsset(asset); err != nil {
		return nil, err
	}
	return asset, nil
}

func registerInputApplication(r *runtime, appID, parcelID, kind, name string, quantity float64, appliedAt, detailsJSON string) (*model.Asset, error) {
	parcel, err := r.store.GetAsset(parcelID)
	if err != nil {
		return nil, err
	}
	if parcel.Owner != r.caller {
		return nil, errs.Unauthorizedf("parcel %s belongs to another grower", parcelID)
	}
	at, err := parseTime(appliedAt)
	if err != nil {
		return nil, err
	}
	details, err := parseStringMap(detailsJSON)
	if err != nil {
		return nil, err
	}
	now, err := r.now()
	if err != nil {
		return nil, err
	}
	asset := model.NewAsset(appID, model.TypeInputApplication, r.caller, model.StatusApplied, model.Properties{
		InputApplication: &model.InputApplicationProperties{
			ParcelID:  parcelID,
			Kind:      kind,
			Name:      name,
			Quantity:  quantity,
			AppliedAt: at,
			Details:   details,
		},
	}, now)
	if err := r.store.CreateAsset(asset); err != nil {
		return nil, err
	}
	return asset, nil
}

func recordHarvestAnalysis(r *runtime, lotID, kind, resultsJSON string) (*model.Asset, error) {
	asset, err := r.store.GetAsset(lotID)
	if err != nil {
		return nil, err
	}
	if asset.Owner != r.caller {
		return nil, errs.Unauthorizedf("harvest lot %s belongs to another grower", lotID)
	}
	if asset.Type != model.TypeHarvestLot {
		return nil, errs.Validationf("%s is not a harvest lot", lotID)
	}
	results, err := parseStringMap(resultsJSON)
	if err != nil {
		return nil, err
	}
	if err := asset.Transition(model.StatusAnalyzed); err != nil {
		return nil, err
	}
	now, err := r.now()
	if err != nil {
		return nil, err
	}
	asset.Properties.HarvestLot.Analyses = append(asset.Properties.HarvestLot.Analyses, model.AnalysisResult{
		Kind:       kind,
		Date:       now,
		Results:    results,
		RecordedBy: r.caller,
	})
	asset.AppendHistory(now, model.ActionAnalysisRecorded, r.caller, map[string]string{"kind": kind})
	if err := r.store.UpdateAsset(asset); err != nil {
		return nil, err
	}
	return asset, nil
}
