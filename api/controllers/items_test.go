package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dontforget-backend/internal/items"
	"github.com/angelmondragon/dontforget-backend/pkg/logger"
)

type memoryPort struct {
	items []items.Item
}

func (p *memoryPort) Load(ctx context.Context) ([]items.Item, error) {
	return p.items, nil
}

func (p *memoryPort) Save(ctx context.Context, list []items.Item) error {
	p.items = list
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func newTestStore(t *testing.T) *items.Store {
	t.Helper()
	store, err := items.NewStore(items.StoreParams{
		Port:   &memoryPort{},
		Logger: testLogger(),
		Now:    fixedNow,
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func seedItem(t *testing.T, store *items.Store, title string) items.Item {
	t.Helper()
	created, err := store.Add(context.Background(), items.Item{Title: title})
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return created
}

func withItemID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("itemId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestCreateItemSuccess(t *testing.T) {
	store := newTestStore(t)
	handler := CreateItem(store, testLogger(), fixedNow)

	body := []byte(`{"title":"return library book"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}

	var dto items.ItemDTO
	decodeData(t, resp, &dto)
	if dto.Title != "return library book" {
		t.Fatalf("unexpected title: %q", dto.Title)
	}
	if !dto.IsActive {
		t.Fatal("expected new item to be active")
	}
}

func TestCreateItemRejectsEmptyTitle(t *testing.T) {
	store := newTestStore(t)
	handler := CreateItem(store, testLogger(), fixedNow)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", bytes.NewReader([]byte(`{"title":""}`)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCreateItemRejectsUnknownFields(t *testing.T) {
	store := newTestStore(t)
	handler := CreateItem(store, testLogger(), fixedNow)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", bytes.NewReader([]byte(`{"title":"x","bogus":1}`)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGetItemNotFound(t *testing.T) {
	store := newTestStore(t)
	handler := GetItem(store, testLogger(), fixedNow)

	req := withItemID(httptest.NewRequest(http.MethodGet, "/api/v1/items/x", nil), "1b671a64-40d5-491e-99b0-da01ff1f3341")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestGetItemInvalidID(t *testing.T) {
	store := newTestStore(t)
	handler := GetItem(store, testLogger(), fixedNow)

	req := withItemID(httptest.NewRequest(http.MethodGet, "/api/v1/items/nope", nil), "nope")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListItemsFilterAndPagination(t *testing.T) {
	store := newTestStore(t)
	for _, title := range []string{"one", "two", "three"} {
		seedItem(t, store, title)
	}

	handler := ListItems(store, testLogger(), fixedNow)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items?filter=active&limit=2", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var page items.ItemsPageDTO
	decodeData(t, resp, &page)
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items got %d", len(page.Items))
	}
	if page.NextCursor == nil {
		t.Fatal("expected next cursor for remaining page")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/items?filter=active&limit=2&cursor="+*page.NextCursor, nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	var rest items.ItemsPageDTO
	decodeData(t, resp, &rest)
	if len(rest.Items) != 1 {
		t.Fatalf("expected 1 remaining item got %d", len(rest.Items))
	}
	if rest.NextCursor != nil {
		t.Fatal("expected no cursor on final page")
	}

	seen := map[string]bool{}
	for _, dto := range append(page.Items, rest.Items...) {
		seen[dto.Title] = true
	}
	for _, title := range []string{"one", "two", "three"} {
		if !seen[title] {
			t.Fatalf("missing item %q across pages", title)
		}
	}
}

func TestListItemsUnknownFilter(t *testing.T) {
	store := newTestStore(t)
	handler := ListItems(store, testLogger(), fixedNow)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items?filter=wat", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestUpdateItemRoundTrip(t *testing.T) {
	store := newTestStore(t)
	created := seedItem(t, store, "old title")

	handler := UpdateItem(store, testLogger(), fixedNow)
	body := []byte(`{"title":"new title","is_completed":true}`)
	req := withItemID(httptest.NewRequest(http.MethodPut, "/api/v1/items/x", bytes.NewReader(body)), created.ID.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var dto items.ItemDTO
	decodeData(t, resp, &dto)
	if dto.Title != "new title" || !dto.IsCompleted {
		t.Fatalf("update not applied: %+v", dto)
	}
	if !dto.CreatedAt.Equal(created.CreatedAt) {
		t.Fatal("update must preserve created_at")
	}
}

func TestDeleteItemIdempotent(t *testing.T) {
	store := newTestStore(t)
	created := seedItem(t, store, "go away")

	handler := DeleteItem(store, testLogger())
	for i := 0; i < 2; i++ {
		req := withItemID(httptest.NewRequest(http.MethodDelete, "/api/v1/items/x", nil), created.ID.String())
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("delete attempt %d: expected 200 got %d", i+1, resp.Code)
		}
	}
}

func TestMarkItemUsedZeroesBalance(t *testing.T) {
	store := newTestStore(t)
	balance := decimal.NewFromInt(25)
	created, err := store.Add(context.Background(), items.Item{Title: "gift card", Balance: &balance})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	handler := MarkItemUsed(store, testLogger(), fixedNow)
	req := withItemID(httptest.NewRequest(http.MethodPost, "/api/v1/items/x/used", nil), created.ID.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var dto items.ItemDTO
	decodeData(t, resp, &dto)
	if !dto.IsCompleted {
		t.Fatal("expected item completed")
	}
	if dto.Balance == nil || !dto.Balance.IsZero() {
		t.Fatalf("expected zero balance got %v", dto.Balance)
	}
}

func TestUpdateItemBalanceRejectsNegative(t *testing.T) {
	store := newTestStore(t)
	balance := decimal.NewFromInt(10)
	created, err := store.Add(context.Background(), items.Item{Title: "voucher", Balance: &balance})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	handler := UpdateItemBalance(store, testLogger(), fixedNow)
	body := []byte(`{"balance":"-3"}`)
	req := withItemID(httptest.NewRequest(http.MethodPost, "/api/v1/items/x/balance", bytes.NewReader(body)), created.ID.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestUpdateItemBalanceZeroCompletes(t *testing.T) {
	store := newTestStore(t)
	balance := decimal.NewFromInt(10)
	created, err := store.Add(context.Background(), items.Item{Title: "voucher", Balance: &balance})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	handler := UpdateItemBalance(store, testLogger(), fixedNow)
	body := []byte(`{"balance":"0"}`)
	req := withItemID(httptest.NewRequest(http.MethodPost, "/api/v1/items/x/balance", bytes.NewReader(body)), created.ID.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var dto items.ItemDTO
	decodeData(t, resp, &dto)
	if !dto.IsCompleted {
		t.Fatal("expected zero balance to complete the item")
	}
}

func TestNearbyItemsValidatesCoordinates(t *testing.T) {
	store := newTestStore(t)
	handler := NearbyItems(store, testLogger(), fixedNow)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/nearby?lat=91&lng=0", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/items/nearby?lat=10", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing lng got %d", resp.Code)
	}
}

func TestNearbyItemsReturnsMatches(t *testing.T) {
	store := newTestStore(t)
	body := []byte(`{
		"title":"pick up package",
		"location":{"name":"Post office","latitude":37.7749,"longitude":-122.4194,"radius_meters":150}
	}`)
	create := CreateItem(store, testLogger(), fixedNow)
	resp := httptest.NewRecorder()
	create.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/items", bytes.NewReader(body)))
	if resp.Code != http.StatusCreated {
		t.Fatalf("seed create failed: %d %s", resp.Code, resp.Body.String())
	}

	handler := NearbyItems(store, testLogger(), fixedNow)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/nearby?lat=37.7749&lng=-122.4194", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var payload struct {
		Items []items.ItemDTO `json:"items"`
	}
	decodeData(t, resp, &payload)
	if len(payload.Items) != 1 {
		t.Fatalf("expected 1 nearby item got %d", len(payload.Items))
	}
	if payload.Items[0].Title != "pick up package" {
		t.Fatalf("unexpected item: %q", payload.Items[0].Title)
	}
}

func TestItemsSummaryCounts(t *testing.T) {
	store := newTestStore(t)
	seedItem(t, store, "active one")
	balance := decimal.NewFromInt(40)
	if _, err := store.Add(context.Background(), items.Item{Title: "card", Balance: &balance}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	done := seedItem(t, store, "done")
	if _, err := store.MarkUsed(context.Background(), done.ID); err != nil {
		t.Fatalf("mark used: %v", err)
	}

	handler := ItemsSummary(store, testLogger())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/summary", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var summary items.SummaryDTO
	decodeData(t, resp, &summary)
	if summary.Total != 3 || summary.Active != 2 || summary.Completed != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if !summary.TotalBalance.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected total balance: %s", summary.TotalBalance)
	}
}
