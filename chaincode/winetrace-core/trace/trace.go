// Package trace reconstructs a product's full supply-chain journey from the
// asset graph: unit to packaged lot to wine batch to harvest lots, together
// with certificates, transport records and a chronological event timeline.
package trace

import (
	"sort"
	"time"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/ledger"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
)

// Supply-chain stages as they appear in timelines.
const (
	StageViticulture  = "Viticulture"
	StageWinery       = "Winery"
	StageTransport    = "Transport"
	StageDistribution = "Distribution"
	StageRetail       = "Retail"
)

// Event is one timeline entry derived from asset history or transport data.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	Stage         string    `json:"stage"`
	Action        string    `json:"action"`
	Actor         string    `json:"actor"`
	Detail        string    `json:"detail,omitempty"`
	IncidentCount int       `json:"incidentCount"`
}

// Node pairs an asset with its resolved certificates.
type Node struct {
	Asset        *model.Asset             `json:"asset"`
	Certificates []*model.CertificateInfo `json:"certificates,omitempty"`
}

// Report is the complete trace for one product. Fields above the queried
// level are nil: tracing a packaged lot yields no Unit node.
type Report struct {
	ProductID   string                   `json:"productId"`
	Unit        *Node                    `json:"unit,omitempty"`
	PackagedLot *Node                    `json:"packagedLot,omitempty"`
	WineBatch   *Node                    `json:"wineBatch,omitempty"`
	HarvestLots []*Node                  `json:"harvestLots,omitempty"`
	Transports  []*model.TransportRecord `json:"transports,omitempty"`
	Events      []Event                  `json:"events"`
}

// ConsumerCertificate is the redacted certificate summary shown to consumers.
type ConsumerCertificate struct {
	Type       string    `json:"type"`
	Issuer     string    `json:"issuer"`
	ExpiryDate time.Time `json:"expiryDate"`
}

// ConsumerView is the public trace: provenance facts and the timeline, with
// owners and commercial details stripped. Transport problems surface only as
// incident counts.
type ConsumerView struct {
	ProductID     string                `json:"productId"`
	GrapeVariety  string                `json:"grapeVariety,omitempty"`
	HarvestDate   *time.Time            `json:"harvestDate,omitempty"`
	WineType      string                `json:"wineType,omitempty"`
	BottledAt     *time.Time            `json:"bottledAt,omitempty"`
	Stages        []Event               `json:"stages"`
	Certificates  []ConsumerCertificate `json:"certificates,omitempty"`
	IncidentCount int                   `json:"incidentCount"`
}

// AuditReport extends the trace with raw ledger modification history per
// asset key, for regulator review.
type AuditReport struct {
	Report
	LedgerHistory map[string][]ledger.Modification `json:"ledgerHistory"`
}

// Index builds trace reports from the store.
type Index struct {
	store *ledger.Store
}

func NewIndex(store *ledger.Store) *Index {
	return &Index{store: store}
}

// Trace resolves the asset chain upward from productID, which may name any
// level from unit down to harvest lot, and assembles the full report.
func (x *Index) Trace(productID string) (*Report, error) {
	asset, err := x.store.GetAsset(productID)
	if err != nil {
		return nil, err
	}

	r := &Report{ProductID: productID}

	switch asset.Type {
	case model.TypeUnit:
		if r.Unit, err = x.node(asset); err != nil {
			return nil, err
		}
		if err = x.resolvePackagedLot(r, asset.Properties.Unit.PackagedLotID); err != nil {
			return nil, err
		}
	case model.TypePackagedLot:
		if err = x.resolvePackagedLotAsset(r, asset); err != nil {
			return nil, err
		}
	case model.TypeWineBatch:
		if err = x.resolveWineBatchAsset(r, asset); err != nil {
			return nil, err
		}
	case model.TypeHarvestLot:
		n, err := x.node(asset)
		if err != nil {
			return nil, err
		}
		r.HarvestLots = append(r.HarvestLots, n)
	default:
		return nil, errs.Validationf("asset %s of type %s is not traceable", productID, asset.Type)
	}

	if err := x.collectTransports(r); err != nil {
		return nil, err
	}
	r.Events = x.buildTimeline(r)
	return r, nil
}

// ConsumerTrace is Trace with the report redacted for public consumption.
func (x *Index) ConsumerTrace(productID string) (*ConsumerView, error) {
	r, err := x.Trace(productID)
	if err != nil {
		return nil, err
	}
	now, err := x.store.Now()
	if err != nil {
		return nil, err
	}

	v := &ConsumerView{ProductID: productID}
	if len(r.HarvestLots) > 0 {
		hp := r.HarvestLots[0].Asset.Properties.HarvestLot
		v.GrapeVariety = hp.GrapeVariety
		d := hp.HarvestDate
		v.HarvestDate = &d
	}
	if r.WineBatch != nil {
		v.WineType = r.WineBatch.Asset.Properties.WineBatch.WineType
	}
	if r.PackagedLot != nil {
		b := r.PackagedLot.Asset.Properties.PackagedLot.BottledAt
		v.BottledAt = &b
	}

	for _, t := range r.Transports {
		v.IncidentCount += len(t.Incidents)
	}
	for _, e := range r.Events {
		v.Stages = append(v.Stages, Event{
			Timestamp:     e.Timestamp,
			Stage:         e.Stage,
			Action:        e.Action,
			IncidentCount: e.IncidentCount,
		})
	}
	for _, n := range x.allNodes(r) {
		for _, c := range n.Certificates {
			if c.ValidAt(now) {
				v.Certificates = append(v.Certificates, ConsumerCertificate{
					Type:       c.Type,
					Issuer:     c.Issuer,
					ExpiryDate: c.ExpiryDate,
				})
			}
		}
	}
	return v, nil
}

// Audit is Trace plus the raw modification history of every asset key in the
// chain, including deleted and superseded versions.
func (x *Index) Audit(productID string) (*AuditReport, error) {
	r, err := x.Trace(productID)
	if err != nil {
		return nil, err
	}
	a := &AuditReport{Report: *r, LedgerHistory: map[string][]ledger.Modification{}}
	for _, n := range x.allNodes(r) {
		mods, err := x.store.History(n.Asset.ID)
		if err != nil {
			return nil, err
		}
		a.LedgerHistory[n.Asset.ID] = mods
	}
	return a, nil
}

func (x *Index) node(asset *model.Asset) (*Node, error) {
	n := &Node{Asset: asset}
	for _, certID := range asset.CertificateIDs {
		cert, err := x.store.GetCertificate(certID)
		if err != nil {
			return nil, err
		}
		n.Certificates = append(n.Certificates, cert)
	}
	return n, nil
}

func (x *Index) resolvePackagedLot(r *Report, lotID string) error {
	asset, err := x.store.GetAsset(lotID)
	if err != nil {
		return err
	}
	return x.resolvePackagedLotAsset(r, asset)
}

func (x *Index) resolvePackagedLotAsset(r *Report, asset *model.Asset) error {
	if asset.Type != model.TypePackagedLot {
		return errs.Validationf("asset %s referenced as a packaged lot is a %s", asset.ID, asset.Type)
	}
	n, err := x.node(asset)
	if err != nil {
		return err
	}
	r.PackagedLot = n

	batch, err := x.store.GetAsset(asset.Properties.PackagedLot.WineBatchID)
	if err != nil {
		return err
	}
	return x.resolveWineBatchAsset(r, batch)
}

func (x *Index) resolveWineBatchAsset(r *Report, asset *model.Asset) error {
	if asset.Type != model.TypeWineBatch {
		return errs.Validationf("asset %s referenced as a wine batch is a %s", asset.ID, asset.Type)
	}
	n, err := x.node(asset)
	if err != nil {
		return err
	}
	r.WineBatch = n

	for _, lotID := range asset.Properties.WineBatch.HarvestLotIDs {
		lot, err := x.store.GetAsset(lotID)
		if err != nil {
			return err
		}
		if lot.Type != model.TypeHarvestLot {
			return errs.Validationf("asset %s referenced as a harvest lot is a %s", lot.ID, lot.Type)
		}
		ln, err := x.node(lot)
		if err != nil {
			return err
		}
		r.HarvestLots = append(r.HarvestLots, ln)
	}
	return nil
}

// collectTransports finds transport records whose batch is any asset in the
// chain, one rich query per level to keep selectors index-friendly.
func (x *Index) collectTransports(r *Report) error {
	for _, n := range x.allNodes(r) {
		ts, err := x.store.QueryTransports(ledger.Selector(map[string]interface{}{
			"docType": model.DocTransport,
			"batchId": n.Asset.ID,
		}))
		if err != nil {
			return err
		}
		r.Transports = append(r.Transports, ts...)
	}
	return nil
}

func (x *Index) allNodes(r *Report) []*Node {
	var nodes []*Node
	if r.Unit != nil {
		nodes = append(nodes, r.Unit)
	}
	if r.PackagedLot != nil {
		nodes = append(nodes, r.PackagedLot)
	}
	if r.WineBatch != nil {
		nodes = append(nodes, r.WineBatch)
	}
	nodes = append(nodes, r.HarvestLots...)
	return nodes
}

func stageOf(t model.Type) string {
	switch t {
	case model.TypeHarvestLot, model.TypeParcel, model.TypeInputApplication:
		return StageViticulture
	case model.TypeWineBatch:
		return StageWinery
	case model.TypePackagedLot:
		return StageDistribution
	case model.TypeUnit:
		return StageRetail
	}
	return ""
}

// buildTimeline merges asset histories and transport milestones into one
// chronological list. Ties keep viticulture before winery before transport.
func (x *Index) buildTimeline(r *Report) []Event {
	var events []Event
	for _, n := range x.allNodes(r) {
		stage := stageOf(n.Asset.Type)
		for _, h := range n.Asset.History {
			events = append(events, Event{
				Timestamp: h.Timestamp,
				Stage:     stage,
				Action:    h.Action,
				Actor:     h.Actor,
				Detail:    h.Details["detail"],
			})
		}
	}
	for _, t := range r.Transports {
		events = append(events, Event{
			Timestamp:     t.DepartureTime,
			Stage:         StageTransport,
			Action:        model.ActionInTransit,
			Actor:         t.CarrierID,
			Detail:        t.Origin + " to " + t.Destination,
			IncidentCount: len(t.Incidents),
		})
		if t.ActualArrival != nil {
			events = append(events, Event{
				Timestamp:     *t.ActualArrival,
				Stage:         StageTransport,
				Action:        model.ActionDelivered,
				Actor:         t.CarrierID,
				Detail:        t.Destination,
				IncidentCount: len(t.Incidents),
			})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}
