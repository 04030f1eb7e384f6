/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	templates and requisitions. Each scenario demonstrates one part of the
	engine: the calculation cascade, stock-based mode, emergency orders,
	or a template the validator rejects.

AVAILABLE SCENARIOS:

	essential-meds:  Full template, three products, SOH calculated
	stock-based:     Stock-based mode, ISA order quantity, adjustments
	emergency:       Emergency requisition with requested quantities
	cyclic-template: TCQ and SOH both calculated, the validator reports the cycle

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Build the template from the catalog and adjust its columns
 3. Parse requisitions from JSON via the factory
 4. Recalculate and save each requisition

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "stock-based"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Template handlers
  - factory/requisition.go: Requisition JSON schema
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/requisition-engine/catalog"
	"github.com/warp/requisition-engine/template"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "essential-meds",
		Name:        "Essential Medicines",
		Description: "Full template with stock on hand calculated from the period's movements",
		Category:    "calculation",
	},
	{
		ID:          "stock-based",
		Name:        "Stock-Based Facility",
		Description: "Stock on hand from stock cards, ISA order quantity and loss adjustments",
		Category:    "calculation",
	},
	{
		ID:          "emergency",
		Name:        "Emergency Order",
		Description: "Emergency requisition with requested quantities and explanations",
		Category:    "workflow",
	},
	{
		ID:          "cyclic-template",
		Name:        "Cyclic Template",
		Description: "Consumed quantity and stock on hand both calculated; validation reports the cycle",
		Category:    "validation",
	},
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "essential-meds":
		load = h.loadEssentialMedsScenario
	case "stock-based":
		load = h.loadStockBasedScenario
	case "emergency":
		load = h.loadEmergencyScenario
	case "cyclic-template":
		load = h.loadCyclicTemplateScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID
	h.Logger.Info("scenario loaded", "scenario", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadEssentialMedsScenario(ctx context.Context) error {
	tpl := essentialMedsTemplate("tpl-essential-meds")
	return h.saveScenario(ctx, tpl, essentialMedsRequisition)
}

func (h *Handler) loadStockBasedScenario(ctx context.Context) error {
	tpl := template.NewDefault("tpl-stock-based", "prog-family-planning",
		template.WithName("Family Planning (stock based)"),
		template.WithPeriodsToAverage(3),
		template.WithFacilityTypes("health-center"))
	tpl.SetPopulateStockOnHandFromStockCards(true)
	return h.saveScenario(ctx, tpl, stockBasedRequisition)
}

func (h *Handler) loadEmergencyScenario(ctx context.Context) error {
	tpl := essentialMedsTemplate("tpl-essential-meds")
	return h.saveScenario(ctx, tpl, essentialMedsRequisition, emergencyRequisition)
}

func (h *Handler) loadCyclicTemplateScenario(ctx context.Context) error {
	tpl := template.NewDefault("tpl-cyclic", "prog-essential-meds",
		template.WithName("Cyclic Template"),
		template.WithPeriodsToAverage(3))
	for _, name := range []catalog.Name{catalog.TotalConsumedQuantity, catalog.StockOnHand} {
		if col, ok := tpl.Column(name); ok {
			col.Source = catalog.SourceCalculated
		}
	}
	return h.saveScenario(ctx, tpl, cyclicRequisition)
}

// essentialMedsTemplate is the full catalog with stock on hand calculated
// and the stock-based order quantity hidden.
func essentialMedsTemplate(id string) *template.Template {
	tpl := template.NewDefault(id, "prog-essential-meds",
		template.WithName("Essential Meds"),
		template.WithPeriodsToAverage(3),
		template.WithFacilityTypes("health-center", "district-hospital"))
	if col, ok := tpl.Column(catalog.StockOnHand); ok {
		col.Source = catalog.SourceCalculated
	}
	if col, ok := tpl.Column(catalog.CalculatedOrderQuantityIsa); ok {
		col.IsDisplayed = false
	}
	return tpl
}

// saveScenario stores tpl and every requisition document, recalculated.
func (h *Handler) saveScenario(ctx context.Context, tpl *template.Template, docs ...string) error {
	if _, err := h.saveTemplate(ctx, tpl); err != nil {
		return fmt.Errorf("save template %s: %w", tpl.ID, err)
	}
	for _, doc := range docs {
		req, err := h.RequisitionFactory.ParseRequisition([]byte(doc), tpl)
		if err != nil {
			return err
		}
		h.Calculator.RecalculateAll(req)
		if err := h.Service.SaveRequisition(ctx, req); err != nil {
			return fmt.Errorf("save requisition %s: %w", req.ID, err)
		}
	}
	return nil
}

// =============================================================================
// SCENARIO DATA
// =============================================================================

const essentialMedsRequisition = `{
  "id": "req-essential-meds-jan",
  "programId": "prog-essential-meds",
  "facilityId": "fac-comfort-health",
  "status": "INITIATED",
  "processingPeriod": {"id": "2026-01", "name": "Jan 2026", "startDate": "2026-01-01", "endDate": "2026-01-31", "durationInMonths": 1},
  "requisitionLineItems": [
    {
      "id": "li-amoxicillin",
      "orderable": {"id": "amoxicillin-250", "productCode": "C100", "fullProductName": "Amoxicillin 250mg", "dispensingUnit": "tablet", "netContent": 100, "packRoundingThreshold": 50,
        "programs": [{"programId": "prog-essential-meds", "pricePerPack": "4.50"}]},
      "maxPeriodsOfStock": "3",
      "beginningBalance": 200, "totalReceivedQuantity": 500, "totalConsumedQuantity": 450,
      "totalLossesAndAdjustments": 0, "totalStockoutDays": 0,
      "previousAdjustedConsumptions": [400, 420]
    },
    {
      "id": "li-paracetamol",
      "orderable": {"id": "paracetamol-500", "productCode": "C101", "fullProductName": "Paracetamol 500mg", "dispensingUnit": "tablet", "netContent": 1000, "packRoundingThreshold": 100,
        "programs": [{"programId": "prog-essential-meds", "pricePerPack": "12.00"}]},
      "maxPeriodsOfStock": "2",
      "beginningBalance": 1500, "totalReceivedQuantity": 0, "totalConsumedQuantity": 1200,
      "totalLossesAndAdjustments": -50, "totalStockoutDays": 6,
      "previousAdjustedConsumptions": [1100]
    },
    {
      "id": "li-ors",
      "orderable": {"id": "ors-sachet", "productCode": "C102", "fullProductName": "Oral Rehydration Salts", "dispensingUnit": "sachet", "netContent": 50, "packRoundingThreshold": 10,
        "programs": [{"programId": "prog-essential-meds", "pricePerPack": "7.25"}]},
      "maxPeriodsOfStock": "3",
      "beginningBalance": 80, "totalReceivedQuantity": 100, "totalConsumedQuantity": 90,
      "totalLossesAndAdjustments": 0, "totalStockoutDays": 0
    }
  ]
}`

const stockBasedRequisition = `{
  "id": "req-stock-based-jan",
  "programId": "prog-family-planning",
  "facilityId": "fac-balaka",
  "status": "INITIATED",
  "processingPeriod": {"id": "2026-01", "name": "Jan 2026", "startDate": "2026-01-01", "endDate": "2026-01-31", "durationInMonths": 1},
  "stockAdjustmentReasons": [
    {"id": "reason-transfer-in", "name": "Transfer In", "reasonType": "CREDIT"},
    {"id": "reason-damaged", "name": "Damaged", "reasonType": "DEBIT"},
    {"id": "reason-expired", "name": "Expired", "reasonType": "DEBIT"}
  ],
  "requisitionLineItems": [
    {
      "id": "li-condoms",
      "orderable": {"id": "male-condom", "productCode": "FP01", "fullProductName": "Male Condom", "dispensingUnit": "each", "netContent": 144, "packRoundingThreshold": 72,
        "programs": [{"programId": "prog-family-planning", "pricePerPack": "9.60"}]},
      "maxPeriodsOfStock": "3",
      "beginningBalance": 1000, "totalReceivedQuantity": 288, "totalConsumedQuantity": 600,
      "totalLossesAndAdjustments": -20, "stockOnHand": 668, "totalStockoutDays": 0,
      "idealStockAmount": 2000,
      "stockAdjustments": [{"reasonId": "reason-damaged", "quantity": 12}, {"reasonId": "reason-expired", "quantity": 8}]
    },
    {
      "id": "li-depo",
      "orderable": {"id": "depo-provera", "productCode": "FP02", "fullProductName": "Depo-Provera", "dispensingUnit": "vial", "netContent": 25, "packRoundingThreshold": 5,
        "programs": [{"programId": "prog-family-planning", "pricePerPack": "21.00"}]},
      "maxPeriodsOfStock": "2",
      "beginningBalance": 40, "totalReceivedQuantity": 50, "totalConsumedQuantity": 35,
      "totalLossesAndAdjustments": 5, "stockOnHand": 60, "totalStockoutDays": 0,
      "idealStockAmount": 120,
      "stockAdjustments": [{"reasonId": "reason-transfer-in", "quantity": 5}]
    }
  ]
}`

const emergencyRequisition = `{
  "id": "req-essential-meds-jan-emergency",
  "programId": "prog-essential-meds",
  "facilityId": "fac-comfort-health",
  "status": "INITIATED",
  "emergency": true,
  "processingPeriod": {"id": "2026-01", "name": "Jan 2026", "startDate": "2026-01-01", "endDate": "2026-01-31", "durationInMonths": 1},
  "requisitionLineItems": [
    {
      "id": "li-emergency-ors",
      "orderable": {"id": "ors-sachet", "productCode": "C102", "fullProductName": "Oral Rehydration Salts", "dispensingUnit": "sachet", "netContent": 50, "packRoundingThreshold": 10,
        "programs": [{"programId": "prog-essential-meds", "pricePerPack": "7.25"}]},
      "maxPeriodsOfStock": "3",
      "beginningBalance": 10, "totalReceivedQuantity": 0, "totalConsumedQuantity": 10,
      "totalLossesAndAdjustments": 0, "totalStockoutDays": 12,
      "requestedQuantity": 500,
      "requestedQuantityExplanation": "Cholera outbreak in catchment area"
    }
  ]
}`

const cyclicRequisition = `{
  "id": "req-cyclic-jan",
  "programId": "prog-essential-meds",
  "facilityId": "fac-comfort-health",
  "status": "INITIATED",
  "processingPeriod": {"id": "2026-01", "name": "Jan 2026", "startDate": "2026-01-01", "endDate": "2026-01-31", "durationInMonths": 1},
  "requisitionLineItems": [
    {
      "id": "li-cyclic-amoxicillin",
      "orderable": {"id": "amoxicillin-250", "productCode": "C100", "fullProductName": "Amoxicillin 250mg", "dispensingUnit": "tablet", "netContent": 100, "packRoundingThreshold": 50},
      "beginningBalance": 200, "totalReceivedQuantity": 500, "totalLossesAndAdjustments": 0
    }
  ]
}`
