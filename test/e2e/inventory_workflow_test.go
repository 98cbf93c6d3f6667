//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/binwise/binwise-be/internal/adapters/db"
	redis_a "github.com/binwise/binwise-be/internal/adapters/redis_adapter"
	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/services"
	"github.com/binwise/binwise-be/internal/handlers"
	"github.com/binwise/binwise-be/internal/handlers/middleware"
	"github.com/binwise/binwise-be/internal/workers"
	"github.com/binwise/binwise-be/test/helpers"
)

// capturingNotifier records published notifications so tests can assert on
// the automation and discrepancy activity stream.
type capturingNotifier struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
}

func (n *capturingNotifier) PublishNotification(_ context.Context, event domain.NotificationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *capturingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

func (n *capturingNotifier) byActivityType(activityType string) []domain.NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()

	var matched []domain.NotificationEvent
	for _, event := range n.events {
		if event.ActivityType == activityType {
			matched = append(matched, event)
		}
	}
	return matched
}

// syncEventBus evaluates automation rules inline instead of queueing
// through asynq, so rule outcomes are visible as soon as the HTTP call
// returns.
type syncEventBus struct {
	automation *services.AutomationService
}

func (b *syncEventBus) PublishStockChange(ctx context.Context, event domain.StockChangeEvent) error {
	_, err := b.automation.Evaluate(ctx, event)
	return err
}

type InventoryE2ESuite struct {
	suite.Suite
	testDB    *helpers.TestDB
	testRedis *helpers.TestRedis

	server  *httptest.Server
	client  *http.Client
	baseURL string

	notifier      *capturingNotifier
	importService *services.ImportService
}

func (s *InventoryE2ESuite) SetupSuite() {
	s.testDB = helpers.SetupTestDB(s.T())
	s.testRedis = helpers.SetupTestRedis(s.T())

	s.server = s.startTestServer()
	s.client = &http.Client{Timeout: 10 * time.Second}
	s.baseURL = s.server.URL + "/api/v1"
}

func (s *InventoryE2ESuite) TearDownSuite() {
	s.server.Close()
}

func (s *InventoryE2ESuite) SetupTest() {
	helpers.TruncateAllTables(s.T(), s.testDB.PgxPool)
	s.testRedis.Server.FlushAll()
	s.notifier.reset()
}

func (s *InventoryE2ESuite) startTestServer() *httptest.Server {
	slogger := helpers.TestLogger()
	cache := redis_a.NewCache(s.testRedis.Client, time.Minute, slogger)

	inventoryRepo := db.NewInventoryRepository(s.testDB.Database, slogger)
	discrepancyRepo := db.NewDiscrepancyRepository(s.testDB.Database, slogger)
	ruleRepo := db.NewRuleRepository(s.testDB.Database, slogger)
	locationRepo := db.NewLocationRepository(s.testDB.Database, slogger)
	movementRepo := db.NewMovementRepository(s.testDB.Database, slogger)
	importJobRepo := db.NewImportJobRepository(s.testDB.Database, slogger)

	s.notifier = &capturingNotifier{}
	automation := services.NewAutomationService(ruleRepo, s.notifier, slogger)
	bus := &syncEventBus{automation: automation}

	ledger := services.NewStockLedger(inventoryRepo, bus, cache, 5*time.Second, slogger)
	inventoryService := services.NewInventoryService(ledger, inventoryRepo, movementRepo, cache, slogger)
	discrepancyService := services.NewDiscrepancyService(ledger, discrepancyRepo, movementRepo, s.notifier, slogger)
	s.importService = services.NewImportService(ledger, inventoryRepo, locationRepo, importJobRepo, movementRepo, s.notifier, slogger)

	inventoryHandler := handlers.NewInventoryHandler(inventoryService, slogger)
	discrepancyHandler := handlers.NewDiscrepancyHandler(discrepancyService, slogger)
	ruleHandler := handlers.NewRuleHandler(ruleRepo, slogger)
	dashboardHandler := handlers.NewDashboardHandler(inventoryService, slogger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/inventory", inventoryHandler.ListItems)
	mux.HandleFunc("POST /api/v1/inventory", inventoryHandler.CreateItem)
	mux.HandleFunc("GET /api/v1/inventory/{id}", inventoryHandler.GetItem)
	mux.HandleFunc("GET /api/v1/inventory/{id}/movements", inventoryHandler.GetMovements)
	mux.HandleFunc("POST /api/v1/discrepancies/report-count", discrepancyHandler.ReportCount)
	mux.HandleFunc("GET /api/v1/discrepancies", discrepancyHandler.List)
	mux.HandleFunc("POST /api/v1/discrepancies/{id}/resolve", discrepancyHandler.Resolve)
	mux.HandleFunc("GET /api/v1/rules", ruleHandler.ListRules)
	mux.HandleFunc("POST /api/v1/rules", ruleHandler.CreateRule)
	mux.HandleFunc("GET /api/v1/rules/{id}", ruleHandler.GetRule)
	mux.HandleFunc("GET /api/v1/dashboard", dashboardHandler.GetDashboard)

	var handler http.Handler = mux
	handler = middleware.Organization(handler)
	handler = middleware.RequestID(handler)

	return httptest.NewServer(handler)
}

func (s *InventoryE2ESuite) TestCycleCountWorkflow() {
	orgID := uuid.New()

	created := s.createItem(orgID, handlers.CreateItemRequest{
		SKU:                "CAB-750-001",
		Name:               "Cabernet Sauvignon 750ml",
		Category:           "red",
		PickingBinQuantity: 12,
		OverstockQuantity:  48,
		ReorderLevel:       10,
		Location:           "Warehouse A",
		PickingBinLocation: "Bin A-01",
	})
	itemID := created["id"].(string)

	// A count that matches the system quantity records nothing.
	resp := s.makeRequest(http.MethodPost, "/discrepancies/report-count", orgID, map[string]interface{}{
		"item_id":          itemID,
		"location_type":    "picking_bin",
		"counted_quantity": 12,
		"reported_by":      "alice",
	})
	s.Equal(http.StatusOK, resp.StatusCode)

	var matchResult services.ReportCountResult
	s.decodeResponse(resp, &matchResult)
	s.False(matchResult.Created)

	// A mismatch records a discrepancy and corrects the ledger.
	resp = s.makeRequest(http.MethodPost, "/discrepancies/report-count", orgID, map[string]interface{}{
		"item_id":          itemID,
		"location_type":    "picking_bin",
		"counted_quantity": 9,
		"reported_by":      "alice",
	})
	s.Equal(http.StatusCreated, resp.StatusCode)

	var mismatchResult services.ReportCountResult
	s.decodeResponse(resp, &mismatchResult)
	s.True(mismatchResult.Created)
	s.Require().NotNil(mismatchResult.Discrepancy)
	s.Equal(-3, mismatchResult.Discrepancy.Difference)

	// The ledger now reflects the counted quantity.
	resp = s.makeRequest(http.MethodGet, "/inventory/"+itemID, orgID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var item map[string]interface{}
	s.decodeResponse(resp, &item)
	s.Equal(float64(9), item["picking_bin_quantity"])
	s.Equal(float64(48), item["overstock_quantity"])
	s.Equal(float64(57), item["total_quantity"])

	// The correction left an audit trail.
	resp = s.makeRequest(http.MethodGet, "/inventory/"+itemID+"/movements", orgID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var movements map[string]interface{}
	s.decodeResponse(resp, &movements)
	s.NotEmpty(movements["movements"])

	// Resolve the recorded discrepancy; resolving twice is a no-op.
	resp = s.makeRequest(http.MethodGet, "/discrepancies?status=pending", orgID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var listing map[string]interface{}
	s.decodeResponse(resp, &listing)
	s.Equal(float64(1), listing["total_count"])

	records := listing["discrepancies"].([]interface{})
	discrepancyID := records[0].(map[string]interface{})["id"].(string)

	resp = s.makeRequest(http.MethodPost, "/discrepancies/"+discrepancyID+"/resolve", orgID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.makeRequest(http.MethodPost, "/discrepancies/"+discrepancyID+"/resolve", orgID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.makeRequest(http.MethodGet, "/discrepancies?status=resolved", orgID, nil)
	s.decodeResponse(resp, &listing)
	s.Equal(float64(1), listing["total_count"])
}

func (s *InventoryE2ESuite) TestAutomationRuleFiresOnStockDrop() {
	orgID := uuid.New()

	resp := s.makeRequest(http.MethodPost, "/rules", orgID, map[string]interface{}{
		"name":         "Low stock alert",
		"trigger_type": "ON_STOCK_LEVEL_CHANGE",
		"condition": map[string]interface{}{
			"field":    "quantity",
			"operator": "lt",
			"value":    10,
		},
		"action": map[string]interface{}{
			"type":    "SEND_NOTIFICATION",
			"message": "{itemName} ({sku}) is low: {quantity} left at {location}",
		},
	})
	s.Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	created := s.createItem(orgID, handlers.CreateItemRequest{
		SKU:                "CHD-750-002",
		Name:               "Chardonnay 750ml",
		Category:           "white",
		PickingBinQuantity: 8,
		OverstockQuantity:  4,
		ReorderLevel:       5,
		Location:           "Warehouse A",
	})
	itemID := created["id"].(string)

	// Counting the overstock to zero drops the total below the threshold.
	resp = s.makeRequest(http.MethodPost, "/discrepancies/report-count", orgID, map[string]interface{}{
		"item_id":          itemID,
		"location_type":    "overstock",
		"counted_quantity": 0,
		"reported_by":      "bob",
	})
	s.Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	triggered := s.notifier.byActivityType(domain.ActivityAutomationTriggered)
	s.Require().Len(triggered, 1)
	s.Contains(triggered[0].Description, "Chardonnay 750ml (CHD-750-002) is low: 8 left at Warehouse A")

	reported := s.notifier.byActivityType(domain.ActivityDiscrepancyReported)
	s.Len(reported, 1)
}

func (s *InventoryE2ESuite) TestBulkImportReconciliation() {
	ctx := context.Background()
	orgID := uuid.New()

	csv := "sku,name,category,picking_bin_quantity,overstock_quantity,location\n" +
		"IMP-750-001,Syrah 750ml,red,6,18,Cellar North\n" +
		"IMP-750-002,Grenache 750ml,red,4,12,Cellar North\n"

	lines, err := workers.ParseImportLines("stock.csv", []byte(csv))
	s.Require().NoError(err)
	s.Require().Len(lines, 2)

	// The unknown location parks the job at the confirmation gate.
	job, err := s.importService.Prepare(ctx, uuid.Nil, orgID, "stock.csv", "e2e", lines, domain.PolicySkip)
	s.Require().NoError(err)
	s.Equal(domain.ImportAwaitingConfirmation, job.Status)
	s.Require().NotNil(job.Plan)
	s.Equal([]string{"Cellar North"}, job.Plan.NewLocations)

	status, err := s.importService.Status(ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(domain.ImportAwaitingConfirmation, status.Status)

	confirmed, err := s.importService.Confirm(ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(domain.ImportProcessing, confirmed.Status)

	result, err := s.importService.Commit(ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(2, result.InsertedCount)
	s.Empty(result.Errors)

	resp := s.makeRequest(http.MethodGet, "/inventory", orgID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var listing map[string]interface{}
	s.decodeResponse(resp, &listing)
	s.Equal(float64(2), listing["total_count"])

	// Re-importing the same file under add_to_stock doubles quantities,
	// and the location is now known so no gate applies.
	again, err := s.importService.Prepare(ctx, uuid.Nil, orgID, "stock.csv", "e2e", lines, domain.PolicyAddToStock)
	s.Require().NoError(err)
	s.Equal(domain.ImportProcessing, again.Status)

	result, err = s.importService.Commit(ctx, again.ID)
	s.Require().NoError(err)
	s.Equal(2, result.UpdatedCount)

	resp = s.makeRequest(http.MethodGet, "/inventory?search=IMP-750-001", orgID, nil)
	s.decodeResponse(resp, &listing)
	items := listing["items"].([]interface{})
	s.Require().Len(items, 1)

	itemID := items[0].(map[string]interface{})["id"].(string)
	resp = s.makeRequest(http.MethodGet, "/inventory/"+itemID, orgID, nil)

	var item map[string]interface{}
	s.decodeResponse(resp, &item)
	s.Equal(float64(48), item["total_quantity"])
}

func (s *InventoryE2ESuite) TestDashboardSummary() {
	orgID := uuid.New()

	s.createItem(orgID, handlers.CreateItemRequest{
		SKU: "DSH-750-001", Name: "Pinot Noir 750ml",
		PickingBinQuantity: 20, OverstockQuantity: 40, ReorderLevel: 10,
	})
	s.createItem(orgID, handlers.CreateItemRequest{
		SKU: "DSH-750-002", Name: "Riesling 750ml",
		PickingBinQuantity: 1, OverstockQuantity: 2, ReorderLevel: 10,
	})

	resp := s.makeRequest(http.MethodGet, "/dashboard", orgID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var summary services.DashboardSummary
	s.decodeResponse(resp, &summary)
	s.Equal(int64(2), summary.TotalItems)
	s.Equal(int64(1), summary.LowStockItems)
}

func (s *InventoryE2ESuite) TestConcurrentCreates() {
	orgID := uuid.New()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(idx int) {
			defer func() { done <- true }()

			resp := s.makeRequest(http.MethodPost, "/inventory", orgID, handlers.CreateItemRequest{
				SKU:                fmt.Sprintf("CNC-750-%03d", idx),
				Name:               fmt.Sprintf("Concurrent Wine %d", idx),
				PickingBinQuantity: idx,
				OverstockQuantity:  idx * 2,
			})
			s.Equal(http.StatusCreated, resp.StatusCode)
			resp.Body.Close()
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	resp := s.makeRequest(http.MethodGet, "/inventory", orgID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var listing map[string]interface{}
	s.decodeResponse(resp, &listing)
	s.Equal(float64(10), listing["total_count"])
}

// Helper methods

func (s *InventoryE2ESuite) createItem(orgID uuid.UUID, req handlers.CreateItemRequest) map[string]interface{} {
	resp := s.makeRequest(http.MethodPost, "/inventory", orgID, req)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var created map[string]interface{}
	s.decodeResponse(resp, &created)
	s.Require().NotEmpty(created["id"])
	return created
}

func (s *InventoryE2ESuite) makeRequest(method, path string, orgID uuid.UUID, body interface{}) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		s.Require().NoError(err)
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reqBody)
	s.Require().NoError(err)
	req.Header.Set("X-Organization-ID", orgID.String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *InventoryE2ESuite) decodeResponse(resp *http.Response, v interface{}) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(v))
}

func TestInventoryE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e tests in short mode")
	}
	suite.Run(t, new(InventoryE2ESuite))
}
