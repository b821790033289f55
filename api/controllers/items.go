package controllers

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/dontforget-backend/api/responses"
	"github.com/angelmondragon/dontforget-backend/api/validators"
	"github.com/angelmondragon/dontforget-backend/internal/items"
	pkgerrors "github.com/angelmondragon/dontforget-backend/pkg/errors"
	"github.com/angelmondragon/dontforget-backend/pkg/geo"
	"github.com/angelmondragon/dontforget-backend/pkg/logger"
	"github.com/angelmondragon/dontforget-backend/pkg/pagination"
)

// ListItems returns a cursor-paginated item listing, optionally filtered.
func ListItems(store *items.Store, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filtered, err := filteredItems(store, r.URL.Query().Get("filter"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}
		if limitStr := strings.TrimSpace(r.URL.Query().Get("limit")); limitStr != "" {
			value, convErr := strconv.Atoi(limitStr)
			if convErr != nil || value <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			params.Limit = value
		}

		page, err := paginateItems(filtered, params, now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// CreateItem validates and adds a new item.
func CreateItem(store *items.Store, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload items.CreateItemDTO
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := store.Add(r.Context(), payload.ToItem())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, items.FromItem(created, now()))
	}
}

// GetItem fetches a single item by id.
func GetItem(store *items.Store, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := store.Get(id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items.FromItem(item, now()))
	}
}

// UpdateItem replaces the mutable fields of an item.
func UpdateItem(store *items.Store, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload items.UpdateItemDTO
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		existing, err := store.Get(id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := store.Update(r.Context(), payload.ApplyTo(existing))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items.FromItem(updated, now()))
	}
}

// DeleteItem removes an item. Deleting an unknown id succeeds quietly.
func DeleteItem(store *items.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := store.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// MarkItemUsed completes an item and zeroes any remaining balance.
func MarkItemUsed(store *items.Store, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := store.MarkUsed(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items.FromItem(updated, now()))
	}
}

// UpdateItemBalance sets the remaining balance on a voucher item.
func UpdateItemBalance(store *items.Store, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload items.UpdateBalanceDTO
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := store.UpdateBalance(r.Context(), id, *payload.Balance)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items.FromItem(updated, now()))
	}
}

// NearbyItems lists active located items whose fence contains the given point.
func NearbyItems(store *items.Store, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lat, err := coordinateParam(r, "lat", -90, 90)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lng, err := coordinateParam(r, "lng", -180, 180)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		nearby := store.ItemsNear(geo.Coordinate{Lat: lat, Lng: lng})
		ts := now()
		dtos := make([]items.ItemDTO, 0, len(nearby))
		for _, item := range nearby {
			dtos = append(dtos, items.FromItem(item, ts))
		}
		responses.WriteSuccess(w, map[string]any{"items": dtos})
	}
}

// ItemsSummary aggregates collection counts and the outstanding balance.
func ItemsSummary(store *items.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary := items.SummaryDTO{
			Total:        len(store.All()),
			Active:       len(store.Active()),
			Completed:    len(store.Completed()),
			ExpiringSoon: len(store.ExpiringSoon()),
			WithLocation: len(store.WithLocation()),
			TotalBalance: store.TotalBalance(),
		}
		responses.WriteSuccess(w, summary)
	}
}

func filteredItems(store *items.Store, filter string) ([]items.Item, error) {
	switch strings.TrimSpace(filter) {
	case "":
		return store.All(), nil
	case "active":
		return store.Active(), nil
	case "completed":
		return store.Completed(), nil
	case "expiring-soon":
		return store.ExpiringSoon(), nil
	case "with-location":
		return store.WithLocation(), nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown filter").
		WithDetails(map[string]string{"filter": "must be one of active, completed, expiring-soon, with-location"})
}

// paginateItems orders by newest first and pages on a created_at|id cursor.
func paginateItems(list []items.Item, params pagination.Params, now time.Time) (items.ItemsPageDTO, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return items.ItemsPageDTO{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	sorted := make([]items.Item, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() > sorted[j].ID.String()
	})

	start := 0
	if cursor != nil {
		for i, item := range sorted {
			if item.CreatedAt.Equal(cursor.CreatedAt) && item.ID == cursor.ID {
				start = i + 1
				break
			}
			if item.CreatedAt.Before(cursor.CreatedAt) {
				start = i
				break
			}
		}
	}

	end := start + limit
	if end > len(sorted) {
		end = len(sorted)
	}

	page := items.ItemsPageDTO{Items: make([]items.ItemDTO, 0, end-start)}
	for _, item := range sorted[start:end] {
		page.Items = append(page.Items, items.FromItem(item, now))
	}
	if end < len(sorted) && end > start {
		last := sorted[end-1]
		next := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		page.NextCursor = &next
	}
	return page, nil
}

func itemIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "itemId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id")
	}
	return id, nil
}

func coordinateParam(r *http.Request, name string, min, max float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, name+" is out of range")
	}
	return value, nil
}
