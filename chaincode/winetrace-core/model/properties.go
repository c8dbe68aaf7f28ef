package model

import (
	"time"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
)

// Properties is a closed variant keyed by the asset Type: exactly one field
// is non-nil and it must match the type. Validation happens at the boundary,
// never trusted from input.
type Properties struct {
	HarvestLot       *HarvestLotProperties       `json:"harvestLot,omitempty"`
	Parcel           *ParcelProperties           `json:"parcel,omitempty"`
	InputApplication *InputApplicationProperties `json:"inputApplication,omitempty"`
	WineBatch        *WineBatchProperties        `json:"wineBatch,omitempty"`
	PackagedLot      *PackagedLotProperties      `json:"packagedLot,omitempty"`
	Unit             *UnitProperties             `json:"unit,omitempty"`
}

// AnalysisResult is one lab or cellar analysis attached to a lot or batch.
type AnalysisResult struct {
	Kind       string            `json:"kind"`
	Date       time.Time         `json:"date"`
	Results    map[string]string `json:"results"`
	RecordedBy string            `json:"recordedBy"`
}

type HarvestLotProperties struct {
	ParcelID     string            `json:"parcelId"`
	HarvestDate  time.Time         `json:"harvestDate"`
	GrapeVariety string            `json:"grapeVariety"`
	QuantityKg   float64           `json:"quantityKg"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Analyses     []AnalysisResult  `json:"analyses,omitempty"`
}

type ParcelProperties struct {
	Location       string   `json:"location"`
	AreaHectares   float64  `json:"areaHectares"`
	SoilType       string   `json:"soilType"`
	Certifications []string `json:"certifications,omitempty"`
}

type InputApplicationProperties struct {
	ParcelID  string            `json:"parcelId"`
	Kind      string            `json:"kind"`
	Name      string            `json:"name"`
	Quantity  float64           `json:"quantity"`
	AppliedAt time.Time         `json:"appliedAt"`
	Details   map[string]string `json:"details,omitempty"`
}

type WineBatchProperties struct {
	HarvestLotIDs []string          `json:"harvestLotIds"`
	WineType      string            `json:"wineType"`
	Method        string            `json:"method"`
	StartedAt     time.Time         `json:"startedAt"`
	Details       map[string]string `json:"details,omitempty"`
	Analyses      []AnalysisResult  `json:"analyses,omitempty"`
	PackagedLotID string            `json:"packagedLotId,omitempty"`
}

// Availability is the retail availability block on a packaged lot.
type Availability struct {
	Units         int       `json:"units"`
	StoreLocation string    `json:"storeLocation"`
	Price         float64   `json:"price"`
	Since         time.Time `json:"since"`
}

type PackagedLotProperties struct {
	WineBatchID  string            `json:"wineBatchId"`
	BottleCount  int               `json:"bottleCount"`
	BottledAt    time.Time         `json:"bottledAt"`
	Details      map[string]string `json:"details,omitempty"`
	Availability *Availability     `json:"availability,omitempty"`
}

type UnitProperties struct {
	PackagedLotID string     `json:"packagedLotId"`
	SerialNumber  string     `json:"serialNumber"`
	IssuedAt      time.Time  `json:"issuedAt"`
	SoldAt        *time.Time `json:"soldAt,omitempty"`
}

func (p Properties) variants() map[Type]bool {
	return map[Type]bool{
		TypeHarvestLot:       p.HarvestLot != nil,
		TypeParcel:           p.Parcel != nil,
		TypeInputApplication: p.InputApplication != nil,
		TypeWineBatch:        p.WineBatch != nil,
		TypePackagedLot:      p.PackagedLot != nil,
		TypeUnit:             p.Unit != nil,
	}
}

func (p Properties) validateFor(id string, t Type) error {
	set := p.variants()
	for variant, present := range set {
		if present && variant != t {
			return errs.Validationf("asset %s of type %s carries %s properties", id, t, variant)
		}
	}
	if !set[t] {
		return errs.Validationf("asset %s of type %s is missing its properties", id, t)
	}
	switch t {
	case TypeHarvestLot:
		if p.HarvestLot.ParcelID == "" {
			return errs.Validationf("harvest lot %s references no parcel", id)
		}
		if p.HarvestLot.QuantityKg <= 0 {
			return errs.Validationf("harvest lot %s has non-positive quantity %.2f", id, p.HarvestLot.QuantityKg)
		}
	case TypeParcel:
		if p.Parcel.AreaHectares <= 0 {
			return errs.Validationf("parcel %s has non-positive area %.2f", id, p.Parcel.AreaHectares)
		}
	case TypeInputApplication:
		if p.InputApplication.ParcelID == "" {
			return errs.Validationf("input application %s references no parcel", id)
		}
		if p.InputApplication.Quantity <= 0 {
			return errs.Validationf("input application %s has non-positive quantity", id)
		}
	case TypeWineBatch:
		if len(p.WineBatch.HarvestLotIDs) == 0 {
			return errs.Validationf("wine batch %s references no harvest lots", id)
		}
	case TypePackagedLot:
		if p.PackagedLot.WineBatchID == "" {
			return errs.Validationf("packaged lot %s references no wine batch", id)
		}
		if p.PackagedLot.BottleCount <= 0 {
			return errs.Validationf("packaged lot %s has non-positive bottle count", id)
		}
	case TypeUnit:
		if p.Unit.PackagedLotID == "" {
			return errs.Validationf("unit %s references no packaged lot", id)
		}
	}
	return nil
}
