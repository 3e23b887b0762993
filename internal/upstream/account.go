package upstream

import (
	"context"
	"net/http"
	"net/url"

	"github.com/noah-isme/sma-console/internal/models"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
)

// CurrentUser asks the backend who the bearer token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*models.CurrentUser, error) {
	var row models.Row
	if _, err := c.doJSON(ctx, "me", http.MethodGet, "/api/me", nil, nil, &row); err != nil {
		return nil, err
	}
	// some deployments wrap the profile in {data: {...}}
	if nested, ok := row["data"].(map[string]interface{}); ok {
		row = models.Row(nested)
	}
	user := &models.CurrentUser{
		UserID:   row.Value("id"),
		Role:     models.UserRole(row.Value("role")),
		Email:    row.Value("email"),
		FullName: firstNonEmpty(row.Value("name"), row.Value("full_name")),
		SchoolID: row.Value("school_id"),
	}
	if user.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrMalformedResponse, "profile response has no id")
	}
	return user, nil
}

// SearchParents returns parents whose name matches term.
func (c *Client) SearchParents(ctx context.Context, term string) ([]models.Row, error) {
	var rows []models.Row
	params := url.Values{}
	params.Set("search", term)
	if _, err := c.doJSON(ctx, "parent_lookup", http.MethodGet, "/api/parents", params, nil, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Row{}
	}
	return rows, nil
}

// SubmitAdmission posts a completed admission and returns the created record.
func (c *Client) SubmitAdmission(ctx context.Context, payload interface{}) (models.Row, error) {
	var created models.Row
	if _, err := c.doJSON(ctx, "admission_submit", http.MethodPost, "/api/admissions", nil, payload, &created); err != nil {
		return nil, err
	}
	return created, nil
}
