/*
scenarios_test.go - Tests for demo scenario loading

Every scenario must load on an empty store and leave data the rest of the
API can read back.
*/
package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/requisition-engine/catalog"
)

func loadScenario(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	_, router := newTestServer(t)

	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			loadScenario(t, router, s.ID)

			current := decodeBody[ScenarioDTO](t, doJSON(t, router, http.MethodGet, "/api/scenarios/current", nil))
			assert.Equal(t, s.ID, current.ID)

			list := decodeBody[[]RequisitionSummaryDTO](t, doJSON(t, router, http.MethodGet, "/api/requisitions", nil))
			require.NotEmpty(t, list)
			for _, r := range list {
				rec := doJSON(t, router, http.MethodGet, "/api/requisitions/"+r.ID, nil)
				assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestScenario_EssentialMeds(t *testing.T) {
	// GIVEN: The essential medicines scenario
	_, router := newTestServer(t)
	loadScenario(t, router, "essential-meds")

	// WHEN: The requisition is read
	rec := doJSON(t, router, http.MethodGet, "/api/requisitions/req-essential-meds-jan", nil)

	// THEN: Stock on hand is BB 200 + received 500 - consumed 450
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeBody[RequisitionDTO](t, rec)
	require.Len(t, dto.LineItems, 3)
	amox := dto.LineItems[0]
	assert.Equal(t, "li-amoxicillin", amox.ID)
	require.NotNil(t, amox.StockOnHand)
	assert.Equal(t, int64(250), *amox.StockOnHand)
	require.NotNil(t, amox.Total)
	assert.Equal(t, int64(700), *amox.Total)
}

func TestScenario_Emergency(t *testing.T) {
	_, router := newTestServer(t)
	loadScenario(t, router, "emergency")

	list := decodeBody[[]RequisitionSummaryDTO](t, doJSON(t, router, http.MethodGet, "/api/requisitions", nil))
	require.Len(t, list, 2)

	dto := decodeBody[RequisitionDTO](t,
		doJSON(t, router, http.MethodGet, "/api/requisitions/req-essential-meds-jan-emergency", nil))
	assert.True(t, dto.Emergency)
}

func TestScenario_CyclicTemplate(t *testing.T) {
	_, router := newTestServer(t)
	loadScenario(t, router, "cyclic-template")

	dto := decodeBody[CircularDependencyDTO](t,
		doJSON(t, router, http.MethodGet, "/api/templates/tpl-cyclic/columns/totalConsumedQuantity/circular", nil))
	assert.Contains(t, dto.Violators, catalog.StockOnHand)

	tpl := decodeBody[TemplateDTO](t, doJSON(t, router, http.MethodGet, "/api/templates/tpl-cyclic", nil))
	assert.False(t, tpl.Valid)
}

func TestScenario_LoadReplacesPrevious(t *testing.T) {
	// GIVEN: The emergency scenario with two requisitions
	_, router := newTestServer(t)
	loadScenario(t, router, "emergency")

	// WHEN: The stock-based scenario is loaded
	loadScenario(t, router, "stock-based")

	// THEN: Only its data remains
	list := decodeBody[[]TemplateSummaryDTO](t, doJSON(t, router, http.MethodGet, "/api/templates", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "tpl-stock-based", list[0].ID)
}

func TestScenario_UnknownAndReset(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	loadScenario(t, router, "essential-meds")
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, "/api/scenarios/reset", nil).Code)

	list := decodeBody[[]RequisitionSummaryDTO](t, doJSON(t, router, http.MethodGet, "/api/requisitions", nil))
	assert.Empty(t, list)
	assert.Equal(t, "null\n", doJSON(t, router, http.MethodGet, "/api/scenarios/current", nil).Body.String())
}
