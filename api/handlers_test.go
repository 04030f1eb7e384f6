/*
handlers_test.go - HTTP tests for template and requisition handlers

Tests for:
- Template CRUD, column add/remove/move, stock-based toggle
- Circular dependency and validation endpoints
- Requisition create, line item edit cascade, workflow transitions
- Stale propagation from template edits to requisitions
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/requisition-engine/catalog"
	"github.com/warp/requisition-engine/requisition"
	"github.com/warp/requisition-engine/store"
	"github.com/warp/requisition-engine/template"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	h := NewHandler(store.NewMemory(), requisition.DefaultConfig(), template.DefaultRules())
	return h, NewRouter(h, RouterOptions{})
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seedStockTemplate stores a four-column template where stock on hand is
// calculated from beginning balance, receipts and consumption.
func seedStockTemplate(t *testing.T, h *Handler) *template.Template {
	t.Helper()
	names := []catalog.Name{
		catalog.BeginningBalance,
		catalog.TotalReceivedQuantity,
		catalog.TotalConsumedQuantity,
		catalog.StockOnHand,
	}
	cols := make([]*template.Column, len(names))
	for i, n := range names {
		cols[i] = template.NewColumn(catalog.MustLookup(n), i)
	}
	cols[3].Source = catalog.SourceCalculated
	tpl := template.New("tpl-stock", "prog-1", cols, template.WithName("Stock"))
	_, err := h.saveTemplate(context.Background(), tpl)
	require.NoError(t, err)
	return tpl
}

func createRequisition(t *testing.T, router http.Handler, bb, trq, tcq int64) RequisitionDTO {
	t.Helper()
	body := map[string]any{
		"templateId": "tpl-stock",
		"programId":  "prog-1",
		"facilityId": "fac-1",
		"processingPeriod": map[string]any{
			"startDate":        "2026-01-01",
			"endDate":          "2026-01-31",
			"durationInMonths": 1,
		},
		"requisitionLineItems": []map[string]any{{
			"orderable":             map[string]any{"id": "amoxicillin", "netContent": 10},
			"beginningBalance":      bb,
			"totalReceivedQuantity": trq,
			"totalConsumedQuantity": tcq,
		}},
	}
	rec := doJSON(t, router, http.MethodPost, "/api/requisitions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[RequisitionDTO](t, rec)
}

// =============================================================================
// CATALOG & TEMPLATES
// =============================================================================

func TestListColumns(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/columns", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	cols := decodeBody[[]ColumnDefinitionDTO](t, rec)
	assert.Len(t, cols, len(catalog.All()))
}

func TestCreateTemplate_Default(t *testing.T) {
	// GIVEN: An empty store
	_, router := newTestServer(t)

	// WHEN: A template is created without columns
	rec := doJSON(t, router, http.MethodPost, "/api/templates", map[string]any{
		"id": "tpl-1", "programId": "prog-1", "name": "Essential Meds",
	})

	// THEN: It holds every catalog column
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dto := decodeBody[TemplateDTO](t, rec)
	assert.Equal(t, "tpl-1", dto.ID)
	assert.Equal(t, 1, dto.Version)
	assert.Len(t, dto.ColumnsMap, len(catalog.All()))

	list := decodeBody[[]TemplateSummaryDTO](t, doJSON(t, router, http.MethodGet, "/api/templates", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "Essential Meds", list[0].Name)
}

func TestCreateTemplate_Rejections(t *testing.T) {
	_, router := newTestServer(t)
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/api/templates",
		map[string]any{"id": "tpl-1", "programId": "prog-1", "name": "T"}).Code)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"malformed body", "{", http.StatusBadRequest},
		{"missing program", map[string]any{"id": "tpl-2", "name": "T"}, http.StatusBadRequest},
		{"duplicate id", map[string]any{"id": "tpl-1", "programId": "prog-1", "name": "T"}, http.StatusConflict},
		{"unknown column", map[string]any{
			"id": "tpl-3", "programId": "prog-1", "name": "T",
			"columnsMap": map[string]any{"bogus": map[string]any{"name": "bogus", "source": "USER_INPUT"}},
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/templates", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestGetTemplate_NotFound(t *testing.T) {
	_, router := newTestServer(t)
	rec := doJSON(t, router, http.MethodGet, "/api/templates/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddRemoveColumn(t *testing.T) {
	// GIVEN: A default template
	_, router := newTestServer(t)
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/api/templates",
		map[string]any{"id": "tpl-1", "programId": "prog-1", "name": "T"}).Code)

	// WHEN: remarks is removed
	rec := doJSON(t, router, http.MethodDelete, "/api/templates/tpl-1/columns/remarks", nil)

	// THEN: The column is gone and a second removal is a 404
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto := decodeBody[TemplateDTO](t, rec)
	assert.NotContains(t, dto.ColumnsMap, "remarks")
	assert.Equal(t, 2, dto.Version)
	assert.Equal(t, http.StatusNotFound,
		doJSON(t, router, http.MethodDelete, "/api/templates/tpl-1/columns/remarks", nil).Code)

	// WHEN: It is added back
	rec = doJSON(t, router, http.MethodPost, "/api/templates/tpl-1/columns", map[string]string{"name": "remarks"})

	// THEN: It is appended after the last column
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto = decodeBody[TemplateDTO](t, rec)
	require.Contains(t, dto.ColumnsMap, "remarks")
	assert.Equal(t, len(catalog.All())-1, dto.ColumnsMap["remarks"].DisplayOrder)

	assert.Equal(t, http.StatusConflict,
		doJSON(t, router, http.MethodPost, "/api/templates/tpl-1/columns", map[string]string{"name": "remarks"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		doJSON(t, router, http.MethodPost, "/api/templates/tpl-1/columns", map[string]string{"name": "bogus"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		doJSON(t, router, http.MethodPost, "/api/templates/tpl-1/columns", map[string]string{}).Code)
}

func TestMoveColumn(t *testing.T) {
	// GIVEN: A default template; skipped, productCode and productName are pinned at 0-2
	_, router := newTestServer(t)
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/api/templates",
		map[string]any{"id": "tpl-1", "programId": "prog-1", "name": "T"}).Code)

	move := func(name string, target int) *httptest.ResponseRecorder {
		return doJSON(t, router, http.MethodPost, "/api/templates/tpl-1/columns/"+name+"/move",
			map[string]int{"targetIndex": target})
	}

	// WHEN: beginningBalance moves above dispensingUnit
	rec := move("beginningBalance", 3)

	// THEN: The two swap places
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto := decodeBody[TemplateDTO](t, rec)
	assert.Equal(t, 3, dto.ColumnsMap["beginningBalance"].DisplayOrder)
	assert.Equal(t, 4, dto.ColumnsMap["dispensingUnit"].DisplayOrder)

	// Crossing a pinned column and moving a pinned column are conflicts
	assert.Equal(t, http.StatusConflict, move("beginningBalance", 2).Code)
	assert.Equal(t, http.StatusConflict, move("productName", 5).Code)
	assert.Equal(t, http.StatusNotFound, move("bogus", 1).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodPost,
		"/api/templates/tpl-1/columns/remarks/move", map[string]any{}).Code)
}

func TestToggleStockBasedMode(t *testing.T) {
	_, router := newTestServer(t)
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/api/templates",
		map[string]any{"id": "tpl-1", "programId": "prog-1", "name": "T"}).Code)

	rec := doJSON(t, router, http.MethodPost, "/api/templates/tpl-1/stock-based-mode", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[TemplateDTO](t, rec).PopulateStockOnHandFromStockCards)
}

func TestCircularDependencies(t *testing.T) {
	// GIVEN: A template where consumption and stock on hand are both calculated
	h, router := newTestServer(t)
	tpl := template.NewDefault("tpl-cyclic", "prog-1", template.WithPeriodsToAverage(3))
	for _, name := range []catalog.Name{catalog.TotalConsumedQuantity, catalog.StockOnHand} {
		col, ok := tpl.Column(name)
		require.True(t, ok)
		col.Source = catalog.SourceCalculated
	}
	_, err := h.saveTemplate(context.Background(), tpl)
	require.NoError(t, err)

	// WHEN: The cycle through stockOnHand is requested
	rec := doJSON(t, router, http.MethodGet, "/api/templates/tpl-cyclic/columns/stockOnHand/circular", nil)

	// THEN: totalConsumedQuantity closes it
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeBody[CircularDependencyDTO](t, rec)
	assert.Equal(t, catalog.StockOnHand, dto.Column)
	assert.Contains(t, dto.Violators, catalog.TotalConsumedQuantity)

	// AND: The template is invalid
	validation := decodeBody[TemplateValidationDTO](t,
		doJSON(t, router, http.MethodGet, "/api/templates/tpl-cyclic/validation", nil))
	assert.False(t, validation.Valid)
	assert.NotEmpty(t, validation.Errors)

	assert.Equal(t, http.StatusNotFound,
		doJSON(t, router, http.MethodGet, "/api/templates/tpl-cyclic/columns/bogus/circular", nil).Code)
}

func TestDeleteTemplate(t *testing.T) {
	// GIVEN: A template used by one requisition
	h, router := newTestServer(t)
	seedStockTemplate(t, h)
	req := createRequisition(t, router, 20, 10, 5)

	// THEN: It cannot be deleted while used
	assert.Equal(t, http.StatusConflict, doJSON(t, router, http.MethodDelete, "/api/templates/tpl-stock", nil).Code)

	// WHEN: The requisition is deleted
	require.Equal(t, http.StatusNoContent,
		doJSON(t, router, http.MethodDelete, "/api/requisitions/"+req.ID, nil).Code)

	// THEN: The template can be deleted
	assert.Equal(t, http.StatusNoContent, doJSON(t, router, http.MethodDelete, "/api/templates/tpl-stock", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodDelete, "/api/templates/tpl-stock", nil).Code)
}

// =============================================================================
// REQUISITIONS
// =============================================================================

func TestCreateRequisition(t *testing.T) {
	// GIVEN: The stock template
	h, router := newTestServer(t)
	seedStockTemplate(t, h)

	// WHEN: A requisition is created with BB 20, received 10, consumed 5
	dto := createRequisition(t, router, 20, 10, 5)

	// THEN: It is INITIATED with generated IDs and stock on hand calculated
	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, string(requisition.StatusInitiated), dto.Status)
	require.Len(t, dto.LineItems, 1)
	assert.NotEmpty(t, dto.LineItems[0].ID)
	require.NotNil(t, dto.LineItems[0].StockOnHand)
	assert.Equal(t, int64(25), *dto.LineItems[0].StockOnHand)
	assert.Empty(t, dto.Errors)
}

func TestCreateRequisition_Rejections(t *testing.T) {
	h, router := newTestServer(t)
	seedStockTemplate(t, h)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing template", map[string]any{"programId": "prog-1"}, http.StatusBadRequest},
		{"unknown template", map[string]any{"templateId": "nope"}, http.StatusBadRequest},
		{"bad period", map[string]any{
			"templateId":       "tpl-stock",
			"processingPeriod": map[string]any{"startDate": "2026-02-01", "endDate": "2026-01-01"},
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/requisitions", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestUpdateLineItem_Cascade(t *testing.T) {
	// GIVEN: A requisition with stock on hand 25
	h, router := newTestServer(t)
	seedStockTemplate(t, h)
	req := createRequisition(t, router, 20, 10, 5)
	path := "/api/requisitions/" + req.ID + "/line-items/" + req.LineItems[0].ID

	// WHEN: Received quantity becomes 30
	rec := doJSON(t, router, http.MethodPut, path, map[string]any{
		"values": map[string]any{"totalReceivedQuantity": 30},
	})

	// THEN: Stock on hand is rewritten to 45
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[LineItemResponse](t, rec)
	assert.Equal(t, []catalog.Name{catalog.StockOnHand}, resp.Updated)
	require.NotNil(t, resp.LineItem.StockOnHand)
	assert.Equal(t, int64(45), *resp.LineItem.StockOnHand)
	assert.Empty(t, resp.Errors)

	// AND: The edit is stored
	stored := decodeBody[RequisitionDTO](t, doJSON(t, router, http.MethodGet, "/api/requisitions/"+req.ID, nil))
	assert.Equal(t, int64(45), *stored.LineItems[0].StockOnHand)
}

func TestUpdateLineItem_ValidationErrors(t *testing.T) {
	// GIVEN: A requisition with stock on hand 25
	h, router := newTestServer(t)
	seedStockTemplate(t, h)
	req := createRequisition(t, router, 20, 10, 5)
	path := "/api/requisitions/" + req.ID + "/line-items/" + req.LineItems[0].ID

	// WHEN: Consumption exceeds available stock
	rec := doJSON(t, router, http.MethodPut, path, map[string]any{
		"values": map[string]any{"totalConsumedQuantity": 100},
	})

	// THEN: The edit is kept and stock on hand is reported negative
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[LineItemResponse](t, rec)
	assert.Equal(t, int64(-70), *resp.LineItem.StockOnHand)
	assert.Contains(t, resp.Errors, string(catalog.StockOnHand))
}

func TestUpdateLineItem_Rejections(t *testing.T) {
	h, router := newTestServer(t)
	seedStockTemplate(t, h)
	req := createRequisition(t, router, 20, 10, 5)
	path := "/api/requisitions/" + req.ID + "/line-items/" + req.LineItems[0].ID

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"calculated column", path, map[string]any{"values": map[string]any{"stockOnHand": 1}}, http.StatusBadRequest},
		{"column not in template", path, map[string]any{"values": map[string]any{"approvedQuantity": 1}}, http.StatusBadRequest},
		{"unknown adjustment reason", path, map[string]any{
			"stockAdjustments": []map[string]any{{"reasonId": "nope", "quantity": 1}},
		}, http.StatusBadRequest},
		{"unknown line item", "/api/requisitions/" + req.ID + "/line-items/nope", map[string]any{}, http.StatusNotFound},
		{"unknown requisition", "/api/requisitions/nope/line-items/nope", map[string]any{}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestTransitions(t *testing.T) {
	// GIVEN: A valid requisition
	h, router := newTestServer(t)
	seedStockTemplate(t, h)
	req := createRequisition(t, router, 20, 10, 5)
	base := "/api/requisitions/" + req.ID

	// WHEN: It is submitted, authorized and approved
	for _, step := range []struct{ action, status string }{
		{"submit", "SUBMITTED"},
		{"authorize", "AUTHORIZED"},
		{"approve", "APPROVED"},
	} {
		rec := doJSON(t, router, http.MethodPost, base+"/"+step.action, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, step.status, decodeBody[RequisitionDTO](t, rec).Status)
	}

	// THEN: Further steps and edits are conflicts
	assert.Equal(t, http.StatusConflict, doJSON(t, router, http.MethodPost, base+"/submit", nil).Code)
	assert.Equal(t, http.StatusConflict, doJSON(t, router, http.MethodPut,
		base+"/line-items/"+req.LineItems[0].ID, map[string]any{"values": map[string]any{"beginningBalance": 1}}).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodPost, base+"/frobnicate", nil).Code)
}

func TestSubmit_RefusedWithLineItemErrors(t *testing.T) {
	// GIVEN: A requisition whose stock on hand is negative
	h, router := newTestServer(t)
	seedStockTemplate(t, h)
	req := createRequisition(t, router, 20, 10, 100)

	// WHEN: It is submitted
	rec := doJSON(t, router, http.MethodPost, "/api/requisitions/"+req.ID+"/submit", nil)

	// THEN: It is refused with the failing line item in the details
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var resp struct {
		Details map[string]map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Details, req.LineItems[0].ID)

	stored := decodeBody[RequisitionDTO](t, doJSON(t, router, http.MethodGet, "/api/requisitions/"+req.ID, nil))
	assert.Equal(t, "INITIATED", stored.Status)
}

func TestValidateRequisition(t *testing.T) {
	h, router := newTestServer(t)
	seedStockTemplate(t, h)
	good := createRequisition(t, router, 20, 10, 5)
	bad := createRequisition(t, router, 20, 10, 100)

	ok := decodeBody[RequisitionValidationDTO](t,
		doJSON(t, router, http.MethodGet, "/api/requisitions/"+good.ID+"/validation", nil))
	assert.True(t, ok.Valid)
	assert.Empty(t, ok.Errors)

	failing := decodeBody[RequisitionValidationDTO](t,
		doJSON(t, router, http.MethodGet, "/api/requisitions/"+bad.ID+"/validation", nil))
	assert.False(t, failing.Valid)
	require.Contains(t, failing.Errors, bad.LineItems[0].ID)
	assert.Contains(t, failing.Errors[bad.LineItems[0].ID], string(catalog.StockOnHand))

	assert.Equal(t, http.StatusNotFound,
		doJSON(t, router, http.MethodGet, "/api/requisitions/nope/validation", nil).Code)
}

// =============================================================================
// STALE PROPAGATION
// =============================================================================

func TestTemplateEdit_MarksRequisitionsStale(t *testing.T) {
	// GIVEN: A requisition on the stock template
	h, router := newTestServer(t)
	seedStockTemplate(t, h)
	req := createRequisition(t, router, 20, 10, 5)

	// WHEN: The template changes
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost,
		"/api/templates/tpl-stock/columns/stockOnHand/move", map[string]int{"targetIndex": 0}).Code)

	// THEN: The requisition is stale
	list := decodeBody[[]RequisitionSummaryDTO](t, doJSON(t, router, http.MethodGet, "/api/requisitions?templateId=tpl-stock", nil))
	require.Len(t, list, 1)
	assert.True(t, list[0].Stale)

	// WHEN: A manual sweep runs
	rec := doJSON(t, router, http.MethodPost, "/api/recalculation/process", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"recalculated":1}`, rec.Body.String())

	// THEN: It is fresh and the run is logged
	list = decodeBody[[]RequisitionSummaryDTO](t, doJSON(t, router, http.MethodGet, "/api/requisitions", nil))
	assert.False(t, list[0].Stale)
	runs := decodeBody[[]RecalculationRunDTO](t, doJSON(t, router, http.MethodGet, "/api/recalculation/runs?status=completed", nil))
	require.Len(t, runs, 1)
	assert.Equal(t, req.ID, runs[0].RequisitionID)
	assert.Equal(t, "tpl-stock", runs[0].TemplateID)
}

func TestRecalculateRequisition(t *testing.T) {
	h, router := newTestServer(t)
	seedStockTemplate(t, h)
	req := createRequisition(t, router, 20, 10, 5)

	rec := doJSON(t, router, http.MethodPost, "/api/requisitions/"+req.ID+"/recalculate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := decodeBody[RecalculationRunDTO](t, rec)
	assert.Equal(t, store.RunCompleted, run.Status)
	assert.Equal(t, 1, run.LineItems)

	assert.Equal(t, http.StatusNotFound,
		doJSON(t, router, http.MethodPost, "/api/requisitions/nope/recalculate", nil).Code)
}

func TestHealthz(t *testing.T) {
	_, router := newTestServer(t)
	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
