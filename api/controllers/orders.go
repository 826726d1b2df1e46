package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/leminhvu/packtrace-backend/api/responses"
	"github.com/leminhvu/packtrace-backend/api/validators"
	"github.com/leminhvu/packtrace-backend/internal/orders"
	pkgerrors "github.com/leminhvu/packtrace-backend/pkg/errors"
	"github.com/leminhvu/packtrace-backend/pkg/logger"
	"github.com/leminhvu/packtrace-backend/pkg/pagination"
)

type orderStore interface {
	List() []orders.Order
	Search(query string) []orders.Order
	FilterByDate(start, end string) []orders.Order
	Delete(ctx context.Context, id int64) error
	Stats() orders.Stats
}

func queryOrders(store orderStore, r *http.Request) ([]orders.Order, error) {
	from, err := validators.ParseQueryDate(r, "from")
	if err != nil {
		return nil, err
	}
	to, err := validators.ParseQueryDate(r, "to")
	if err != nil {
		return nil, err
	}
	if from != "" || to != "" {
		return store.FilterByDate(from, to), nil
	}
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		return store.Search(q), nil
	}
	return store.List(), nil
}

// paginate slices an id-descending order list at the cursor position.
func paginate(list []orders.Order, limit int, cursor *pagination.Cursor) (page []orders.Order, next string) {
	start := 0
	if cursor != nil {
		for i, o := range list {
			if o.ID < cursor.ID {
				start = i
				break
			}
			start = len(list)
		}
	}
	limit = pagination.NormalizeLimit(limit)
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	page = list[start:end]
	if end < len(list) && len(page) > 0 {
		next = pagination.EncodeCursor(pagination.Cursor{ID: page[len(page)-1].ID})
	}
	return page, next
}

// OrderList returns order history, optionally filtered by free-text search or
// a date range, paged newest first.
func OrderList(store orderStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order store unavailable"))
			return
		}
		list, err := queryOrders(store, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}

		page, next := paginate(list, limit, cursor)
		responses.WriteSuccess(w, map[string]any{
			"orders":      page,
			"count":       len(page),
			"next_cursor": next,
		})
	}
}

// OrderStats returns aggregate totals over the full history.
func OrderStats(store orderStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order store unavailable"))
			return
		}
		responses.WriteSuccess(w, store.Stats())
	}
}

// OrderExport streams the filtered history as delimited text.
func OrderExport(store orderStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order store unavailable"))
			return
		}
		list, err := queryOrders(store, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="orders.csv"`)
		w.WriteHeader(http.StatusOK)
		w.Write(orders.Export(list))
	}
}

// OrderDelete removes a single order by id.
func OrderDelete(store orderStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order store unavailable"))
			return
		}
		raw := chi.URLParam(r, "orderId")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id must be numeric"))
			return
		}
		if err := store.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": id})
	}
}
