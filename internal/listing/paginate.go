package listing

import (
	"strings"

	"github.com/noah-isme/sma-console/internal/models"
)

// paginate slices a fully fetched set into one page. page is clamped into
// [1, lastPage] so a page emptied by a delete falls back to its predecessor.
func paginate(rows []models.Row, page, size int) models.PageResult {
	if size <= 0 {
		size = 10
	}
	total := len(rows)
	lastPage := (total + size - 1) / size
	if lastPage < 1 {
		lastPage = 1
	}
	if page > lastPage {
		page = lastPage
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}

	active := 0
	for _, row := range rows {
		if row.IsActive() {
			active++
		}
	}

	res := models.PageResult{
		Rows:          append([]models.Row(nil), rows[start:end]...),
		Total:         total,
		ActiveCount:   active,
		InactiveCount: total - active,
		CurrentPage:   page,
		LastPage:      lastPage,
	}
	if total > 0 {
		res.RangeFrom = start + 1
		res.RangeTo = end
	}
	return res
}

// filterLocal narrows a bare-array response by the committed query. Backends
// that already applied the query return rows that pass unchanged; fields a
// row does not carry are not used to exclude it.
func filterLocal(rows []models.Row, q models.ListQuery, def models.EntityDefinition) []models.Row {
	search := strings.ToLower(strings.TrimSpace(q.TextSearch))
	keys := q.FilterKeys()
	if search == "" && len(keys) == 0 {
		return rows
	}

	out := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		if search != "" && !matchesSearch(row, search, def) {
			continue
		}
		if !matchesFilters(row, q.Filters, keys) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func matchesSearch(row models.Row, term string, def models.EntityDefinition) bool {
	fields := []string{def.DisplayField, "name", "email", "phone"}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(row.Value(f)), term) {
			return true
		}
	}
	return false
}

func matchesFilters(row models.Row, filters map[string]string, keys []string) bool {
	for _, key := range keys {
		want := filters[key]
		if _, ok := row[key]; !ok {
			continue
		}
		if key == models.FilterStatus {
			switch strings.ToLower(want) {
			case "active", "1", "true":
				if !row.IsActive() {
					return false
				}
				continue
			case "inactive", "0", "false":
				if row.IsActive() {
					return false
				}
				continue
			}
		}
		if !strings.EqualFold(row.Value(key), want) {
			return false
		}
	}
	return true
}

func emptyResult() models.PageResult {
	return models.PageResult{Rows: []models.Row{}, CurrentPage: 1, LastPage: 1}
}
