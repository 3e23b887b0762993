package upstream

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/noah-isme/sma-console/internal/models"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
)

// pagedEnvelope is the server-paginated listing schema.
type pagedEnvelope struct {
	Data        *[]models.Row `json:"data"`
	Total       *int          `json:"total"`
	Active      *int          `json:"active"`
	Inactive    *int          `json:"inactive"`
	CurrentPage *int          `json:"current_page"`
	LastPage    *int          `json:"last_page"`
	From        *int          `json:"from"`
	To          *int          `json:"to"`
}

// ListPaged fetches one server-side page of a paged endpoint.
func (c *Client) ListPaged(ctx context.Context, def models.EntityDefinition, q models.ListQuery) (models.PageResult, error) {
	if def.Shape != models.ShapePaged {
		return models.PageResult{}, appErrors.Clone(appErrors.ErrInternal, "endpoint "+def.Endpoint+" is not server-paginated")
	}
	params := listParams(q)
	params.Set("page", strconv.Itoa(maxInt(q.Page, 1)))

	var env pagedEnvelope
	if _, err := c.do(ctx, request{entity: def.Name, operation: "list", method: http.MethodGet, path: "/api/" + def.Endpoint, query: params}, &env); err != nil {
		return models.PageResult{}, err
	}
	return env.normalise()
}

// ListAll fetches the whole filtered set of a bare-array endpoint.
func (c *Client) ListAll(ctx context.Context, def models.EntityDefinition, q models.ListQuery) ([]models.Row, error) {
	if def.Shape != models.ShapeArray {
		return nil, appErrors.Clone(appErrors.ErrInternal, "endpoint "+def.Endpoint+" is not a bare array")
	}
	var rows []models.Row
	raw, err := c.do(ctx, request{entity: def.Name, operation: "list", method: http.MethodGet, path: "/api/" + def.Endpoint, query: listParams(q)}, &rows)
	if err != nil {
		return nil, err
	}
	if rows == nil && !bytes.Equal(bytes.TrimSpace(raw), []byte("[]")) {
		return nil, appErrors.Clone(appErrors.ErrMalformedResponse, "expected an array from "+def.Endpoint)
	}
	if rows == nil {
		rows = []models.Row{}
	}
	return rows, nil
}

// Delete removes one row, using the verb the backend exposes for the entity.
func (c *Client) Delete(ctx context.Context, def models.EntityDefinition, id string) error {
	req := request{entity: def.Name, operation: "delete", method: http.MethodDelete, path: "/api/" + def.Endpoint + "/" + url.PathEscape(id)}
	if def.DeleteStyle == models.DeleteLegacyPost {
		req.method = http.MethodPost
		req.path = "/api/delete-" + def.Singular + "/" + url.PathEscape(id)
	}
	raw, err := c.do(ctx, req, nil)
	if err != nil {
		return err
	}
	return deleteAcknowledged(raw)
}

// deleteAcknowledged accepts an empty body, {status: 200} or {success: true}.
func deleteAcknowledged(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	var ack struct {
		Status  *int   `json:"status"`
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := decodeJSON(raw, &ack); err != nil {
		return appErrors.Wrap(err, appErrors.ErrMalformedResponse.Code, appErrors.ErrMalformedResponse.Status, appErrors.ErrMalformedResponse.Message)
	}
	switch {
	case ack.Success != nil && !*ack.Success:
		return appErrors.Clone(appErrors.ErrUpstream, firstNonEmpty(ack.Message, "delete was rejected"))
	case ack.Status != nil && *ack.Status != http.StatusOK:
		return appErrors.Clone(appErrors.ErrUpstream, firstNonEmpty(ack.Message, "delete was rejected"))
	}
	return nil
}

// DetectShape classifies a raw listing payload.
func DetectShape(raw []byte) (models.ResponseShape, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", appErrors.Clone(appErrors.ErrMalformedResponse, "empty listing response")
	}
	switch trimmed[0] {
	case '[':
		var rows []models.Row
		if err := decodeJSON(trimmed, &rows); err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrMalformedResponse.Code, appErrors.ErrMalformedResponse.Status, "invalid array listing")
		}
		return models.ShapeArray, nil
	case '{':
		var env pagedEnvelope
		if err := decodeJSON(trimmed, &env); err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrMalformedResponse.Code, appErrors.ErrMalformedResponse.Status, "invalid paged listing")
		}
		if _, err := env.normalise(); err != nil {
			return "", err
		}
		return models.ShapePaged, nil
	default:
		return "", appErrors.Clone(appErrors.ErrMalformedResponse, "listing response is neither an object nor an array")
	}
}

// FetchRaw returns the undecoded first page of a listing endpoint.
func (c *Client) FetchRaw(ctx context.Context, def models.EntityDefinition) ([]byte, error) {
	return c.do(ctx, request{entity: def.Name, operation: "probe", method: http.MethodGet, path: "/api/" + def.Endpoint}, nil)
}

func (e pagedEnvelope) normalise() (models.PageResult, error) {
	if e.Data == nil || e.Total == nil || e.CurrentPage == nil || e.LastPage == nil {
		return models.PageResult{}, appErrors.Clone(appErrors.ErrMalformedResponse, "paged listing is missing data, total, current_page or last_page")
	}
	res := models.PageResult{
		Rows:          *e.Data,
		Total:         *e.Total,
		ActiveCount:   deref(e.Active),
		InactiveCount: deref(e.Inactive),
		CurrentPage:   *e.CurrentPage,
		LastPage:      *e.LastPage,
		RangeFrom:     deref(e.From),
		RangeTo:       deref(e.To),
	}
	if res.Rows == nil {
		res.Rows = []models.Row{}
	}
	// an empty result set reports last_page 0 or 1 depending on the endpoint
	if res.LastPage < 1 {
		res.LastPage = 1
	}
	if res.CurrentPage < 1 {
		res.CurrentPage = 1
	}
	// a page requested past the end comes back empty with current_page > last_page
	pastEnd := res.CurrentPage > res.LastPage && len(res.Rows) == 0
	if res.Total < 0 || res.ActiveCount < 0 || res.InactiveCount < 0 ||
		res.CurrentPage > res.LastPage && !pastEnd ||
		res.RangeFrom < 0 || res.RangeFrom > res.RangeTo || res.RangeTo > res.Total {
		return models.PageResult{}, appErrors.Clone(appErrors.ErrMalformedResponse, "paged listing violates its pagination bounds")
	}
	return res, nil
}

func listParams(q models.ListQuery) url.Values {
	params := url.Values{}
	if q.TextSearch != "" {
		params.Set("search", q.TextSearch)
	}
	for _, key := range q.FilterKeys() {
		params.Set(key, q.Filters[key])
	}
	return params
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
