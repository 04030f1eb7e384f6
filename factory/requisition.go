package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/requisition-engine/requisition"
	"github.com/warp/requisition-engine/store"
	"github.com/warp/requisition-engine/template"
)

const dateLayout = "2006-01-02"

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RequisitionJSON is the JSON representation of a requisition.
type RequisitionJSON struct {
	ID                     string         `json:"id"`
	ProgramID              string         `json:"programId"`
	FacilityID             string         `json:"facilityId"`
	TemplateID             string         `json:"templateId"`
	Status                 string         `json:"status"`
	Emergency              bool           `json:"emergency"`
	ProcessingPeriod       PeriodJSON     `json:"processingPeriod"`
	StockAdjustmentReasons []ReasonJSON   `json:"stockAdjustmentReasons,omitempty"`
	LineItems              []LineItemJSON `json:"requisitionLineItems"`
}

// PeriodJSON is a processing period. Dates use YYYY-MM-DD.
type PeriodJSON struct {
	ID               string  `json:"id,omitempty"`
	Name             string  `json:"name,omitempty"`
	StartDate        string  `json:"startDate"`
	EndDate          string  `json:"endDate"`
	DurationInMonths float64 `json:"durationInMonths"`
}

// ReasonJSON is a stock adjustment reason.
type ReasonJSON struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ReasonType string `json:"reasonType"`
}

// OrderableJSON is the product of a line item.
type OrderableJSON struct {
	ID                    string                 `json:"id"`
	ProductCode           string                 `json:"productCode,omitempty"`
	FullProductName       string                 `json:"fullProductName,omitempty"`
	DispensingUnit        string                 `json:"dispensingUnit,omitempty"`
	NetContent            int64                  `json:"netContent"`
	PackRoundingThreshold int64                  `json:"packRoundingThreshold"`
	RoundToZero           bool                   `json:"roundToZero"`
	Programs              []ProgramOrderableJSON `json:"programs,omitempty"`
}

// ProgramOrderableJSON is the per-program price of an orderable.
type ProgramOrderableJSON struct {
	ProgramID    string           `json:"programId"`
	PricePerPack *decimal.Decimal `json:"pricePerPack,omitempty"`
}

// AdjustmentJSON is one stock adjustment.
type AdjustmentJSON struct {
	ReasonID string `json:"reasonId"`
	Quantity int64  `json:"quantity"`
}

// LineItemJSON is one requisition line item.
type LineItemJSON struct {
	ID                string           `json:"id"`
	Orderable         OrderableJSON    `json:"orderable"`
	MaxPeriodsOfStock *decimal.Decimal `json:"maxPeriodsOfStock,omitempty"`

	BeginningBalance           *int64 `json:"beginningBalance"`
	TotalReceivedQuantity      *int64 `json:"totalReceivedQuantity"`
	TotalConsumedQuantity      *int64 `json:"totalConsumedQuantity"`
	TotalLossesAndAdjustments  *int64 `json:"totalLossesAndAdjustments"`
	Total                      *int64 `json:"total"`
	StockOnHand                *int64 `json:"stockOnHand"`
	TotalStockoutDays          *int64 `json:"totalStockoutDays"`
	NumberOfNewPatientsAdded   *int64 `json:"numberOfNewPatientsAdded"`
	AdditionalQuantityRequired *int64 `json:"additionalQuantityRequired"`
	AdjustedConsumption        *int64 `json:"adjustedConsumption"`
	AverageConsumption         *int64 `json:"averageConsumption"`
	IdealStockAmount           *int64 `json:"idealStockAmount"`
	MaximumStockQuantity       *int64 `json:"maximumStockQuantity"`
	CalculatedOrderQuantity    *int64 `json:"calculatedOrderQuantity"`
	CalculatedOrderQuantityIsa *int64 `json:"calculatedOrderQuantityIsa"`
	RequestedQuantity          *int64 `json:"requestedQuantity"`
	ApprovedQuantity           *int64 `json:"approvedQuantity"`
	PacksToShip                *int64 `json:"packsToShip"`

	RequestedQuantityExplanation string `json:"requestedQuantityExplanation,omitempty"`
	Remarks                      string `json:"remarks,omitempty"`

	PricePerPack *decimal.Decimal `json:"pricePerPack,omitempty"`
	TotalCost    *decimal.Decimal `json:"totalCost,omitempty"`

	PreviousAdjustedConsumptions []int64          `json:"previousAdjustedConsumptions,omitempty"`
	StockAdjustments             []AdjustmentJSON `json:"stockAdjustments,omitempty"`

	Skipped       bool `json:"skipped"`
	NonFullSupply bool `json:"nonFullSupply"`
}

// =============================================================================
// REQUISITION FACTORY
// =============================================================================

// RequisitionFactory converts JSON requisitions to requisition.Requisition.
type RequisitionFactory struct{}

// NewRequisitionFactory creates a new requisition factory.
func NewRequisitionFactory() *RequisitionFactory {
	return &RequisitionFactory{}
}

// ParseRequisition parses a JSON document into a Requisition shaped by tpl.
func (f *RequisitionFactory) ParseRequisition(data []byte, tpl *template.Template) (*requisition.Requisition, error) {
	var rj RequisitionJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequisition, err)
	}
	return f.FromJSON(rj, tpl)
}

// FromJSON converts RequisitionJSON to a Requisition.
func (f *RequisitionFactory) FromJSON(rj RequisitionJSON, tpl *template.Template) (*requisition.Requisition, error) {
	if rj.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidRequisition)
	}

	status := requisition.Status(rj.Status)
	if status == "" {
		status = requisition.StatusInitiated
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequisition, rj.Status)
	}

	period, err := parsePeriod(rj.ProcessingPeriod)
	if err != nil {
		return nil, err
	}

	req := &requisition.Requisition{
		ID:         rj.ID,
		ProgramID:  rj.ProgramID,
		FacilityID: rj.FacilityID,
		Status:     status,
		Emergency:  rj.Emergency,
		Period:     period,
		Template:   tpl,
	}

	for _, r := range rj.StockAdjustmentReasons {
		req.StockAdjustmentReasons = append(req.StockAdjustmentReasons, requisition.Reason{
			ID:         r.ID,
			Name:       r.Name,
			ReasonType: requisition.ReasonType(r.ReasonType),
		})
	}

	seen := make(map[string]bool, len(rj.LineItems))
	for _, lj := range rj.LineItems {
		if lj.ID == "" {
			return nil, fmt.Errorf("%w: line item id is required", ErrInvalidRequisition)
		}
		if seen[lj.ID] {
			return nil, fmt.Errorf("%w: duplicate line item %q", ErrInvalidRequisition, lj.ID)
		}
		seen[lj.ID] = true
		req.LineItems = append(req.LineItems, parseLineItem(lj))
	}
	return req, nil
}

// ToJSON converts a Requisition to RequisitionJSON.
func (f *RequisitionFactory) ToJSON(r *requisition.Requisition) RequisitionJSON {
	rj := RequisitionJSON{
		ID:         r.ID,
		ProgramID:  r.ProgramID,
		FacilityID: r.FacilityID,
		Status:     string(r.Status),
		Emergency:  r.Emergency,
		ProcessingPeriod: PeriodJSON{
			ID:               r.Period.ID,
			Name:             r.Period.Name,
			StartDate:        formatDate(r.Period.StartDate),
			EndDate:          formatDate(r.Period.EndDate),
			DurationInMonths: r.Period.DurationInMonths,
		},
		LineItems: make([]LineItemJSON, 0, len(r.LineItems)),
	}
	if r.Template != nil {
		rj.TemplateID = r.Template.ID
	}
	for _, reason := range r.StockAdjustmentReasons {
		rj.StockAdjustmentReasons = append(rj.StockAdjustmentReasons, ReasonJSON{
			ID:         reason.ID,
			Name:       reason.Name,
			ReasonType: string(reason.ReasonType),
		})
	}
	for _, li := range r.LineItems {
		rj.LineItems = append(rj.LineItems, lineItemToJSON(li))
	}
	return rj
}

// MarshalRequisition encodes a Requisition as JSON.
func (f *RequisitionFactory) MarshalRequisition(r *requisition.Requisition) ([]byte, error) {
	return json.Marshal(f.ToJSON(r))
}

// =============================================================================
// STORE RECORDS
// =============================================================================

// ToRecord encodes a Requisition as a store record. Stale is cleared:
// a requisition is stored right after it was recalculated.
func (f *RequisitionFactory) ToRecord(r *requisition.Requisition) (store.RequisitionRecord, error) {
	data, err := f.MarshalRequisition(r)
	if err != nil {
		return store.RequisitionRecord{}, err
	}
	rec := store.RequisitionRecord{
		ID:         r.ID,
		ProgramID:  r.ProgramID,
		FacilityID: r.FacilityID,
		Status:     string(r.Status),
		Emergency:  r.Emergency,
		DataJSON:   string(data),
	}
	if r.Template != nil {
		rec.TemplateID = r.Template.ID
	}
	return rec, nil
}

// FromRecord decodes a stored requisition.
func (f *RequisitionFactory) FromRecord(rec store.RequisitionRecord, tpl *template.Template) (*requisition.Requisition, error) {
	return f.ParseRequisition([]byte(rec.DataJSON), tpl)
}

// ToTemplateRecord encodes a Template as a store record.
func (f *TemplateFactory) ToTemplateRecord(t *template.Template) (store.TemplateRecord, error) {
	data, err := f.MarshalTemplate(t)
	if err != nil {
		return store.TemplateRecord{}, err
	}
	return store.TemplateRecord{
		ID:         t.ID,
		ProgramID:  t.ProgramID,
		Name:       t.Name,
		ConfigJSON: string(data),
	}, nil
}

// FromTemplateRecord decodes a stored template.
func (f *TemplateFactory) FromTemplateRecord(rec store.TemplateRecord) (*template.Template, error) {
	return f.ParseTemplate([]byte(rec.ConfigJSON))
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parsePeriod(pj PeriodJSON) (requisition.ProcessingPeriod, error) {
	p := requisition.ProcessingPeriod{
		ID:               pj.ID,
		Name:             pj.Name,
		DurationInMonths: pj.DurationInMonths,
	}
	if pj.DurationInMonths < 0 {
		return p, fmt.Errorf("%w: negative period duration", ErrInvalidRequisition)
	}
	var err error
	if p.StartDate, err = parseDate(pj.StartDate); err != nil {
		return p, fmt.Errorf("%w: invalid period start: %v", ErrInvalidRequisition, err)
	}
	if p.EndDate, err = parseDate(pj.EndDate); err != nil {
		return p, fmt.Errorf("%w: invalid period end: %v", ErrInvalidRequisition, err)
	}
	if !p.StartDate.IsZero() && !p.EndDate.IsZero() && p.EndDate.Before(p.StartDate) {
		return p, fmt.Errorf("%w: period ends before it starts", ErrInvalidRequisition)
	}
	return p, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseLineItem(lj LineItemJSON) *requisition.LineItem {
	li := &requisition.LineItem{
		ID: lj.ID,
		Orderable: requisition.Orderable{
			ID:                    lj.Orderable.ID,
			ProductCode:           lj.Orderable.ProductCode,
			FullProductName:       lj.Orderable.FullProductName,
			DispensingUnit:        lj.Orderable.DispensingUnit,
			NetContent:            lj.Orderable.NetContent,
			PackRoundingThreshold: lj.Orderable.PackRoundingThreshold,
			RoundToZero:           lj.Orderable.RoundToZero,
		},

		BeginningBalance:           lj.BeginningBalance,
		TotalReceivedQuantity:      lj.TotalReceivedQuantity,
		TotalConsumedQuantity:      lj.TotalConsumedQuantity,
		TotalLossesAndAdjustments:  lj.TotalLossesAndAdjustments,
		Total:                      lj.Total,
		StockOnHand:                lj.StockOnHand,
		TotalStockoutDays:          lj.TotalStockoutDays,
		NumberOfNewPatientsAdded:   lj.NumberOfNewPatientsAdded,
		AdditionalQuantityRequired: lj.AdditionalQuantityRequired,
		AdjustedConsumption:        lj.AdjustedConsumption,
		AverageConsumption:         lj.AverageConsumption,
		IdealStockAmount:           lj.IdealStockAmount,
		MaximumStockQuantity:       lj.MaximumStockQuantity,
		CalculatedOrderQuantity:    lj.CalculatedOrderQuantity,
		CalculatedOrderQuantityIsa: lj.CalculatedOrderQuantityIsa,
		RequestedQuantity:          lj.RequestedQuantity,
		ApprovedQuantity:           lj.ApprovedQuantity,
		PacksToShip:                lj.PacksToShip,

		RequestedQuantityExplanation: lj.RequestedQuantityExplanation,
		Remarks:                      lj.Remarks,
		PricePerPack:                 lj.PricePerPack,
		TotalCost:                    lj.TotalCost,

		PreviousAdjustedConsumptions: lj.PreviousAdjustedConsumptions,
		Skipped:                      lj.Skipped,
		NonFullSupply:                lj.NonFullSupply,
	}
	if lj.MaxPeriodsOfStock != nil {
		li.ApprovedProduct.MaxPeriodsOfStock = *lj.MaxPeriodsOfStock
	}
	for _, p := range lj.Orderable.Programs {
		li.Orderable.Programs = append(li.Orderable.Programs, requisition.ProgramOrderable{
			ProgramID:    p.ProgramID,
			PricePerPack: p.PricePerPack,
		})
	}
	for _, a := range lj.StockAdjustments {
		li.StockAdjustments = append(li.StockAdjustments, requisition.StockAdjustment{
			ReasonID: a.ReasonID,
			Quantity: a.Quantity,
		})
	}
	return li
}

// LineItemToJSON converts one line item.
func (f *RequisitionFactory) LineItemToJSON(li *requisition.LineItem) LineItemJSON {
	return lineItemToJSON(li)
}

func lineItemToJSON(li *requisition.LineItem) LineItemJSON {
	lj := LineItemJSON{
		ID: li.ID,
		Orderable: OrderableJSON{
			ID:                    li.Orderable.ID,
			ProductCode:           li.Orderable.ProductCode,
			FullProductName:       li.Orderable.FullProductName,
			DispensingUnit:        li.Orderable.DispensingUnit,
			NetContent:            li.Orderable.NetContent,
			PackRoundingThreshold: li.Orderable.PackRoundingThreshold,
			RoundToZero:           li.Orderable.RoundToZero,
		},

		BeginningBalance:           li.BeginningBalance,
		TotalReceivedQuantity:      li.TotalReceivedQuantity,
		TotalConsumedQuantity:      li.TotalConsumedQuantity,
		TotalLossesAndAdjustments:  li.TotalLossesAndAdjustments,
		Total:                      li.Total,
		StockOnHand:                li.StockOnHand,
		TotalStockoutDays:          li.TotalStockoutDays,
		NumberOfNewPatientsAdded:   li.NumberOfNewPatientsAdded,
		AdditionalQuantityRequired: li.AdditionalQuantityRequired,
		AdjustedConsumption:        li.AdjustedConsumption,
		AverageConsumption:         li.AverageConsumption,
		IdealStockAmount:           li.IdealStockAmount,
		MaximumStockQuantity:       li.MaximumStockQuantity,
		CalculatedOrderQuantity:    li.CalculatedOrderQuantity,
		CalculatedOrderQuantityIsa: li.CalculatedOrderQuantityIsa,
		RequestedQuantity:          li.RequestedQuantity,
		ApprovedQuantity:           li.ApprovedQuantity,
		PacksToShip:                li.PacksToShip,

		RequestedQuantityExplanation: li.RequestedQuantityExplanation,
		Remarks:                      li.Remarks,
		PricePerPack:                 li.PricePerPack,
		TotalCost:                    li.TotalCost,

		PreviousAdjustedConsumptions: li.PreviousAdjustedConsumptions,
		Skipped:                      li.Skipped,
		NonFullSupply:                li.NonFullSupply,
	}
	if !li.ApprovedProduct.MaxPeriodsOfStock.IsZero() {
		mps := li.ApprovedProduct.MaxPeriodsOfStock
		lj.MaxPeriodsOfStock = &mps
	}
	for _, p := range li.Orderable.Programs {
		lj.Orderable.Programs = append(lj.Orderable.Programs, ProgramOrderableJSON{
			ProgramID:    p.ProgramID,
			PricePerPack: p.PricePerPack,
		})
	}
	for _, a := range li.StockAdjustments {
		lj.StockAdjustments = append(lj.StockAdjustments, AdjustmentJSON{
			ReasonID: a.ReasonID,
			Quantity: a.Quantity,
		})
	}
	return lj
}
