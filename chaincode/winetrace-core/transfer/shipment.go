package transfer

import (
	"time"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/ledger"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
)

// CreateShipment groups assets the actor owns into a shipment addressed to a
// target organization. Every member asset is marked in-shipment in the same
// transaction.
func (p *Protocol) CreateShipment(actor, actorOrg, shipmentID string, assetIDs []string, targetOrg, transporterOrg string, props map[string]string) (*model.Shipment, error) {
	exists, err := p.store.Exists(shipmentID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errs.AlreadyExistsf("shipment %s already exists", shipmentID)
	}
	if !p.cfg.KnownMSP(targetOrg) {
		return nil, errs.Validationf("target organization %q is unknown", targetOrg)
	}
	if !p.cfg.KnownMSP(transporterOrg) {
		return nil, errs.Validationf("transporter organization %q is unknown", transporterOrg)
	}

	now, err := p.store.Now()
	if err != nil {
		return nil, err
	}

	// Guards on every member run before the first write, so a failing
	// member leaves the whole group untouched even without relying on the
	// platform's rollback.
	assets := make([]*model.Asset, 0, len(assetIDs))
	for _, id := range assetIDs {
		asset, err := p.store.GetAsset(id)
		if err != nil {
			return nil, err
		}
		if asset.Owner != actor {
			return nil, errs.Unauthorizedf("caller does not own asset %s", id)
		}
		if !model.CanTransition(asset.Type, asset.Status, model.StatusInShipment) {
			return nil, errs.Statef("%s %s cannot join a shipment from %q", asset.Type, id, asset.Status)
		}
		assets = append(assets, asset)
	}

	for _, asset := range assets {
		asset.Status = model.StatusInShipment
		asset.AppendHistory(now, model.ActionShipmentRequested, actor, map[string]string{
			"shipmentId": shipmentID,
		})
		if err := p.store.UpdateAsset(asset); err != nil {
			return nil, err
		}
	}

	sh := &model.Shipment{
		DocType:        model.DocShipment,
		ID:             shipmentID,
		Products:       assetIDs,
		CreatedAt:      now,
		Owner:          actor,
		SourceOrg:      actorOrg,
		TargetOrg:      targetOrg,
		TransporterOrg: transporterOrg,
		Status:         model.StatusCreated,
		Properties:     props,
	}
	if err := p.store.CreateShipment(sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// RetargetShipment redirects a not-yet-dispatched shipment to another
// organization. Only the sender may do this, and only while the shipment is
// still in its created state.
func (p *Protocol) RetargetShipment(actor, shipmentID, targetOrg string, at time.Time) (*model.Shipment, error) {
	sh, err := p.store.GetShipment(shipmentID)
	if err != nil {
		return nil, err
	}
	if sh.Owner != actor {
		return nil, errs.Unauthorizedf("only the sender may retarget shipment %s", shipmentID)
	}
	if sh.Status != model.StatusCreated {
		return nil, errs.Statef("shipment %s cannot be retargeted from %q", shipmentID, sh.Status)
	}
	if !p.cfg.KnownMSP(targetOrg) {
		return nil, errs.Validationf("target organization %q is unknown", targetOrg)
	}
	sh.TargetOrg = targetOrg
	if sh.Properties == nil {
		sh.Properties = map[string]string{}
	}
	sh.Properties["retargetedAt"] = at.Format(time.RFC3339)
	if err := p.store.UpdateShipment(sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// BeginShipmentTransit is the carrier-side dispatch: only the configured
// transporter organization may move a created shipment into transit.
func (p *Protocol) BeginShipmentTransit(actorOrg, shipmentID string) (*model.Shipment, error) {
	sh, err := p.store.GetShipment(shipmentID)
	if err != nil {
		return nil, err
	}
	if sh.TransporterOrg != actorOrg {
		return nil, errs.Unauthorizedf("shipment %s is not assigned to this transporter", shipmentID)
	}
	if err := sh.Transition(model.StatusInTransit); err != nil {
		return nil, err
	}
	if err := p.store.UpdateShipment(sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// MarkShipmentDelivered records the carrier's drop-off. Acceptance by the
// target organization happens in a separate transaction.
func (p *Protocol) MarkShipmentDelivered(actorOrg, shipmentID string) (*model.Shipment, error) {
	sh, err := p.store.GetShipment(shipmentID)
	if err != nil {
		return nil, err
	}
	if sh.TransporterOrg != actorOrg {
		return nil, errs.Unauthorizedf("shipment %s is not assigned to this transporter", shipmentID)
	}
	if err := sh.Transition(model.StatusDelivered); err != nil {
		return nil, err
	}
	if err := p.store.UpdateShipment(sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// AcceptShipment completes the handshake: an identity of the target
// organization takes ownership of every member asset and the shipment in one
// transaction. Preconditions run before any write, so either every member
// changes owner or none does.
func (p *Protocol) AcceptShipment(actor, actorOrg, shipmentID string) (*model.Shipment, error) {
	sh, err := p.store.GetShipment(shipmentID)
	if err != nil {
		return nil, err
	}
	if sh.TargetOrg != actorOrg {
		return nil, errs.Unauthorizedf("shipment %s is not addressed to the caller's organization", shipmentID)
	}
	if sh.Status != model.StatusDelivered {
		return nil, errs.Statef("shipment %s is %q, not delivered", shipmentID, sh.Status)
	}

	now, err := p.store.Now()
	if err != nil {
		return nil, err
	}

	assets := make([]*model.Asset, 0, len(sh.Products))
	for _, id := range sh.Products {
		asset, err := p.store.GetAsset(id)
		if err != nil {
			return nil, err
		}
		if !model.CanTransition(asset.Type, asset.Status, model.StatusReceived) {
			return nil, errs.Statef("%s %s cannot be received from %q", asset.Type, id, asset.Status)
		}
		assets = append(assets, asset)
	}

	for _, asset := range assets {
		asset.Owner = actor
		asset.PendingOwner = ""
		asset.Status = model.StatusReceived
		asset.AppendHistory(now, model.ActionShipmentReceived, actor, map[string]string{
			"shipmentId": shipmentID,
		})
		if err := p.store.UpdateAsset(asset); err != nil {
			return nil, err
		}
	}

	sh.Status = model.StatusReceived
	sh.ReceivedAt = &now
	sh.ReceivedBy = actor
	if err := p.store.UpdateShipment(sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// ShipmentsFor returns shipments addressed to an organization, for gateway
// listings.
func (p *Protocol) ShipmentsFor(targetOrg string) ([]*model.Shipment, error) {
	return p.store.QueryShipments(ledger.Selector(map[string]interface{}{
		"docType":   model.DocShipment,
		"targetOrg": targetOrg,
	}))
}
