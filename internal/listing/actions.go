package listing

import (
	"strconv"

	"github.com/noah-isme/sma-console/internal/models"
	"github.com/noah-isme/sma-console/internal/obfuscate"
)

// RowActions are the per-row affordances of a listing.
type RowActions struct {
	EditPath   string `json:"edit_path"`
	DeletePath string `json:"delete_path"`
}

// RowView is one rendered row.
type RowView struct {
	Key     string     `json:"key"`
	Label   string     `json:"label"`
	Active  bool       `json:"active"`
	Data    models.Row `json:"data"`
	Actions RowActions `json:"actions"`
}

// SchemeFor returns the obfuscation scheme of an entity.
func SchemeFor(def models.EntityDefinition) (obfuscate.Scheme, bool) {
	if !def.Obfuscated() {
		return obfuscate.Scheme{}, false
	}
	return obfuscate.Scheme{Prefix: def.IDPrefix, Suffix: def.IDSuffix}, true
}

// RouteToken renders the id used in user-visible edit routes.
func RouteToken(def models.EntityDefinition, id string) string {
	scheme, ok := SchemeFor(def)
	if !ok {
		return id
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return id
	}
	return scheme.Encode(n)
}

// ResolveToken turns a route token back into a row id. Entities without a
// scheme take raw numeric ids.
func ResolveToken(def models.EntityDefinition, token string) (string, bool) {
	if scheme, ok := SchemeFor(def); ok {
		id, ok := scheme.Decode(token)
		if !ok {
			return "", false
		}
		return strconv.FormatInt(id, 10), true
	}
	n, err := strconv.ParseInt(token, 10, 64)
	if err != nil || n <= 0 {
		return "", false
	}
	return token, true
}

func buildRowView(def models.EntityDefinition, row models.Row) RowView {
	key := row.Value(def.RowKey)
	return RowView{
		Key:    key,
		Label:  row.Value(def.DisplayField),
		Active: row.IsActive(),
		Data:   row,
		Actions: RowActions{
			EditPath:   "/" + def.Name + "/edit/" + RouteToken(def, key),
			DeletePath: "/" + def.Name + "/rows/" + key + "/delete",
		},
	}
}
