package contracts

import (
	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/access"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
)

// WineryContract covers the cellar stage: receiving harvest lots, elaborating
// wine batches, analyses, bottling and shipping packaged lots onward.
type WineryContract struct {
	contractapi.Contract
	cfg access.Config
}

func NewWineryContract(cfg access.Config) *WineryContract {
	c := &WineryContract{cfg: cfg}
	c.Name = "WineryContract"
	return c
}

// ReceiveHarvestLot acknowledges a transferred harvest lot at the winery.
func (c *WineryContract) ReceiveHarvestLot(ctx contractapi.TransactionContextInterface, lotID string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleWinery); err != nil {
		return nil, err
	}
	return receiveHarvestLot(r, lotID)
}

// StartElaboration consumes harvest lots into a new wine batch.
// harvestLotsJSON is a JSON array of lot IDs the caller owns.
func (c *WineryContract) StartElaboration(ctx contractapi.TransactionContextInterface, batchID, harvestLotsJSON, wineType, method, detailsJSON string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleWinery); err != nil {
		return nil, err
	}
	return startElaboration(r, batchID, harvestLotsJSON, wineType, method, detailsJSON)
}

// RecordAnalysis attaches a cellar analysis to a wine batch.
func (c *WineryContract) RecordAnalysis(ctx contractapi.TransactionContextInterface, batchID, kind, resultsJSON string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleWinery); err != nil {
		return nil, err
	}
	return recordBatchAnalysis(r, batchID, kind, resultsJSON)
}

// RecordBottling closes a wine batch into a new packaged lot.
func (c *WineryContract) RecordBottling(ctx contractapi.TransactionContextInterface, batchID, packagedLotID string, bottleCount int, detailsJSON string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleWinery); err != nil {
		return nil, err
	}
	return recordBottling(r, batchID, packagedLotID, bottleCount, detailsJSON)
}

// TransferLot hands a packaged lot to a carrier, distributor or retailer
// identity.
func (c *WineryContract) TransferLot(ctx contractapi.TransactionContextInterface, lotID, newOwner, detailsJSON string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleWinery); err != nil {
		return nil, err
	}
	details, err := parseStringMap(detailsJSON)
	if err != nil {
		return nil, err
	}
	return r.transfer.Transfer(r.caller, lotID, newOwner, details)
}

func receiveHarvestLot(r *runtime, lotID string) (*model.Asset, error) {
	asset, err := r.store.GetAsset(lotID)
	if err != nil {
		return nil, err
	}
	if asset.Owner != r.caller {
		return nil, errs.Unauthorizedf("harvest lot %s was not transferred to this caller", lotID)
	}
	if err := asset.Transition(model.StatusReceived); err != nil {
		return nil, err
	}
	now, err := r.now()
	if err != nil {
		return nil, err
	}
	asset.AppendHistory(now, model.ActionReceived, r.caller, nil)
	if err := r.store.UpdateAsset(asset); err != nil {
		return nil, err
	}
	return asset, nil
}

func startElaboration(r *runtime, batchID, harvestLotsJSON, wineType, method, detailsJSON string) (*model.Asset, error) {
	lotIDs, err := parseStringList(harvestLotsJSON)
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

	// Every lot is checked before the first write so a bad member leaves
	// the whole elaboration unapplied.
	lots := make([]*model.Asset, 0, len(lotIDs))
	for _, id := range lotIDs {
		lot, err := r.store.GetAsset(id)
		if err != nil {
			return nil, err
		}
		if lot.Type != model.TypeHarvestLot {
			return nil, errs.Validationf("%s is not a harvest lot", id)
		}
		if lot.Owner != r.caller {
			return nil, errs.Unauthorizedf("harvest lot %s belongs to another organization", id)
		}
		if !model.CanTransition(lot.Type, lot.Status, model.StatusInProcessing) {
			return nil, errs.Statef("harvest lot %s cannot enter processing from %q", id, lot.Status)
		}
		lots = append(lots, lot)
	}

	for _, lot := range lots {
		lot.Status = model.StatusInProcessing
		lot.AppendHistory(now, model.ActionInProcessing, r.caller, map[string]string{"wineBatchId": batchID})
		if err := r.store.UpdateAsset(lot); err != nil {
			return nil, err
		}
	}

	batch := model.NewAsset(batchID, model.TypeWineBatch, r.caller, model.StatusInElaboration, model.Properties{
		WineBatch: &model.WineBatchProperties{
			HarvestLotIDs: lotIDs,
			WineType:      wineType,
			Method:        method,
			StartedAt:     now,
			Details:       details,
		},
	}, now)
	if err := r.store.CreateAsset(batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func recordBatchAnalysis(r *runtime, batchID, kind, resultsJSON string) (*model.Asset, error) {
	batch, err := r.store.GetAsset(batchID)
	if err != nil {
		return nil, err
	}
	if batch.Owner != r.caller {
		return nil, errs.Unauthorizedf("wine batch %s belongs to another organization", batchID)
	}
	if batch.Type != model.TypeWineBatch {
		return nil, errs.Validationf("%s is not a wine batch", batchID)
	}
	results, err := parseStringMap(resultsJSON)
	if err != nil {
		return nil, err
	}
	if err := batch.Transition(model.StatusAnalyzed); err != nil {
		return nil, err
	}
	now, err := r.now()
	if err != nil {
		return nil, err
	}
	batch.Properties.WineBatch.Analyses = append(batch.Properties.WineBatch.Analyses, model.AnalysisResult{
		Kind:       kind,
		Date:       now,
		Results:    results,
		RecordedBy: r.caller,
	})
	batch.AppendHistory(now, model.ActionAnalysisRecorded, r.caller, map[string]string{"kind": kind})
	if err := r.store.UpdateAsset(batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func recordBottling(r *runtime, batchID, packagedLotID string, bottleCount int, detailsJSON string) (*model.Asset, error) {
	batch, err := r.store.GetAsset(batchID)
	if err != nil {
		return nil, err
	}
	if batch.Owner != r.caller {
		return nil, errs.Unauthorizedf("wine batch %s belongs to another organization", batchID)
	}
	if batch.Type != model.TypeWineBatch {
		return nil, errs.Validationf("%s is not a wine batch", batchID)
	}
	details, err := parseStringMap(detailsJSON)
	if err != nil {
		return nil, err
	}
	if err := batch.Transition(model.StatusBottled); err != nil {
		return nil, err
	}
	now, err := r.now()
	if err != nil {
		return nil, err
	}

	lot := model.NewAsset(packagedLotID, model.TypePackagedLot, r.caller, model.StatusCreated, model.Properties{
		PackagedLot: &model.PackagedLotProperties{
			WineBatchID: batchID,
			BottleCount: bottleCount,
			BottledAt:   now,
			Details:     details,
		},
	}, now)
	if err := r.store.CreateAsset(lot); err != nil {
		return nil, err
	}

	batch.Properties.WineBatch.PackagedLotID = packagedLotID
	batch.AppendHistory(now, model.ActionBottled, r.caller, map[string]string{
		"packagedLotId": packagedLotID,
	})
	if err := r.store.UpdateAsset(batch); err != nil {
		return nil, err
	}
	return lot, nil
}
