// Package listing implements the generic list screen: a committed query, a
// filter drawer, a delete confirmation modal and the fetch state machine that
// ties them to an upstream listing endpoint.
package listing

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-console/internal/models"
	"github.com/noah-isme/sma-console/internal/notice"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
)

// Status is the fetch state of a controller.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

const (
	// DeletedNotice is shown after a successful delete.
	DeletedNotice = "Deleted Successfully"
	// EmptyMessage is rendered when a loaded listing has no rows.
	EmptyMessage = "No data found"
)

// Source fetches and deletes rows for an entity.
type Source interface {
	ListPaged(ctx context.Context, def models.EntityDefinition, q models.ListQuery) (models.PageResult, error)
	ListAll(ctx context.Context, def models.EntityDefinition, q models.ListQuery) ([]models.Row, error)
	Delete(ctx context.Context, def models.EntityDefinition, id string) error
}

// Observer receives controller events worth counting.
type Observer interface {
	ObserveStaleResponse(entity string)
	ObserveDelete(entity string, ok bool)
}

// DeletionRecorder is told about every settled delete.
type DeletionRecorder interface {
	RecordDeletion(def models.EntityDefinition, req models.DeletionRequest, err error)
}

// Options configures a Controller. Defaults are the filters a reset returns
// to; their keys are re-applied whenever a commit leaves them blank.
type Options struct {
	Definition models.EntityDefinition
	Source     Source
	PageSize   int
	Defaults   map[string]string
	Notices    *notice.Board
	Observer   Observer
	Recorder   DeletionRecorder
	Logger     *zap.Logger
}

// Snapshot is everything a renderer needs to draw the screen.
type Snapshot struct {
	Entity       string            `json:"entity"`
	Label        string            `json:"label"`
	Status       Status            `json:"status"`
	Error        string            `json:"error,omitempty"`
	EmptyMessage string            `json:"empty_message,omitempty"`
	Query        models.ListQuery  `json:"query"`
	SearchInput  string            `json:"search_input"`
	FilterKeys   []string          `json:"filter_keys"`
	Drawer       DrawerState       `json:"filter_drawer"`
	Modal        ModalState        `json:"delete_modal"`
	Deleting     bool              `json:"deleting"`
	Rows         []RowView         `json:"rows"`
	Pagination   models.Pagination `json:"pagination"`
	Total        int               `json:"total"`
	Active       int               `json:"active"`
	Inactive     int               `json:"inactive"`
	Notice       *models.Notice    `json:"notice,omitempty"`
}

// Controller drives one list screen. Every method is safe for concurrent
// use; network calls happen outside the lock and a response is applied only
// if no newer fetch was started in the meantime.
type Controller struct {
	def      models.EntityDefinition
	src      Source
	defaults map[string]string
	notices  *notice.Board
	observer Observer
	recorder DeletionRecorder
	logger   *zap.Logger

	mu          sync.Mutex
	query       models.ListQuery
	searchInput string
	drawer      Drawer
	modal       Modal
	status      Status
	lastErr     string
	result      models.PageResult
	all         []models.Row
	seq         uint64
	deleting    bool
}

// NewController creates an idle controller on page 1 with the default filters.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notices := opts.Notices
	if notices == nil {
		notices = notice.NewBoard(notice.DefaultTTL)
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	defaults := models.CloneFilters(opts.Defaults)

	return &Controller{
		def:      opts.Definition,
		src:      opts.Source,
		defaults: defaults,
		notices:  notices,
		observer: opts.Observer,
		recorder: opts.Recorder,
		logger:   logger.With(zap.String("entity", opts.Definition.Name)),
		query: models.ListQuery{
			Page:     1,
			PageSize: pageSize,
			Filters:  models.CloneFilters(defaults),
		},
		status: StatusIdle,
		result: emptyResult(),
	}
}

// Definition returns the entity this controller lists.
func (c *Controller) Definition() models.EntityDefinition {
	return c.def
}

// Load performs the first fetch. Later calls are no-ops.
func (c *Controller) Load(ctx context.Context) {
	c.mu.Lock()
	idle := c.status == StatusIdle
	c.mu.Unlock()
	if idle {
		c.fetch(ctx)
	}
}

// Refresh re-runs the committed query.
func (c *Controller) Refresh(ctx context.Context) {
	c.fetch(ctx)
}

// SetSearchInput edits the search box without fetching.
func (c *Controller) SetSearchInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchInput = text
}

// CommitSearch makes the search box the applied search, resets to page 1 and
// fetches once.
func (c *Controller) CommitSearch(ctx context.Context) {
	c.mu.Lock()
	c.query.TextSearch = strings.TrimSpace(c.searchInput)
	c.query.Page = 1
	c.mu.Unlock()
	c.fetch(ctx)
}

// OpenFilters shows the drawer seeded with the live filters.
func (c *Controller) OpenFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drawer.Open(c.query.Filters)
}

// SetFilter edits one draft filter. The drawer opens if it was closed.
func (c *Controller) SetFilter(key, value string) error {
	if !c.def.AllowsFilter(key) {
		return appErrors.WithFields(appErrors.ErrValidation, map[string]string{key: "unsupported filter"})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.drawer.IsOpen() {
		c.drawer.Open(c.query.Filters)
	}
	c.drawer.Set(key, strings.TrimSpace(value))
	return nil
}

// ApplyFilters commits the draft, closes the drawer, resets to page 1 and fetches.
func (c *Controller) ApplyFilters(ctx context.Context) {
	c.mu.Lock()
	var draft map[string]string
	if c.drawer.IsOpen() {
		draft = c.drawer.Apply()
	} else {
		draft = models.CloneFilters(c.query.Filters)
	}
	for k, v := range c.defaults {
		if draft[k] == "" {
			draft[k] = v
		}
	}
	c.query.Filters = draft
	c.query.Page = 1
	c.mu.Unlock()
	c.fetch(ctx)
}

// CloseFilters discards the draft without fetching.
func (c *Controller) CloseFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drawer.Close()
}

// ResetFilters returns filters and search to their defaults and fetches page 1.
func (c *Controller) ResetFilters(ctx context.Context) {
	c.mu.Lock()
	c.drawer.Reset()
	c.query.Filters = models.CloneFilters(c.defaults)
	c.query.TextSearch = ""
	c.searchInput = ""
	c.query.Page = 1
	c.mu.Unlock()
	c.fetch(ctx)
}

// GoToPage moves to page n. Out-of-range pages are ignored.
func (c *Controller) GoToPage(ctx context.Context, n int) {
	c.mu.Lock()
	if n < 1 || n > c.result.LastPage {
		c.mu.Unlock()
		return
	}
	c.query.Page = n
	if c.def.Shape == models.ShapeArray && c.status == StatusLoaded {
		// the whole set is already here
		c.result = paginate(c.all, n, c.query.PageSize)
		c.query.Page = c.result.CurrentPage
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.fetch(ctx)
}

// RequestDelete opens the confirmation modal for a row on the current page.
func (c *Controller) RequestDelete(rowID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleting {
		return appErrors.ErrBusy
	}
	for _, row := range c.result.Rows {
		if row.Value(c.def.RowKey) == rowID {
			c.modal.Open(models.DeletionRequest{TargetID: rowID, TargetDisplayName: row.Value(c.def.DisplayField)})
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound, "row is not on the current page")
}

// CancelDelete closes the modal without side effects.
func (c *Controller) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modal.Close()
}

// ConfirmDelete deletes the pending row. Without a pending request it fails
// with ErrNoPendingDeletion and makes no call. Either way the modal closes
// once the backend answers; a rejected delete leaves the row in place and
// shows a failure notice.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	req, ok := c.modal.Pending()
	if !ok {
		c.mu.Unlock()
		return appErrors.ErrNoPendingDeletion
	}
	if c.deleting {
		c.mu.Unlock()
		return appErrors.ErrBusy
	}
	c.deleting = true
	c.mu.Unlock()

	err := c.src.Delete(ctx, c.def, req.TargetID)
	if c.recorder != nil {
		c.recorder.RecordDeletion(c.def, req, err)
	}
	if c.observer != nil {
		c.observer.ObserveDelete(c.def.Name, err == nil)
	}

	c.mu.Lock()
	c.deleting = false
	c.modal.Close()
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("delete rejected", zap.String("id", req.TargetID), zap.Error(err))
		c.notices.Show(deleteFailedText(req, err), models.NoticeFailure)
		return err
	}

	c.notices.Show(DeletedNotice, models.NoticeDestructive)
	if c.def.Shape == models.ShapeArray && c.status == StatusLoaded {
		c.all = removeRow(c.all, c.def.RowKey, req.TargetID)
		c.result = paginate(c.all, c.query.Page, c.query.PageSize)
		c.query.Page = c.result.CurrentPage
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.fetch(ctx)
	c.stepBackIfEmpty(ctx)
	return nil
}

// Snapshot returns the render state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := make([]RowView, 0, len(c.result.Rows))
	for _, row := range c.result.Rows {
		rows = append(rows, buildRowView(c.def, row))
	}

	snap := Snapshot{
		Entity:      c.def.Name,
		Label:       c.def.Label,
		Status:      c.status,
		Error:       c.lastErr,
		Query:       c.query.Clone(),
		SearchInput: c.searchInput,
		FilterKeys:  append([]string(nil), c.def.FilterKeys...),
		Drawer:      c.drawer.State(),
		Modal:       c.modal.State(),
		Deleting:    c.deleting,
		Rows:        rows,
		Pagination:  c.paginationLocked(),
		Total:       c.result.Total,
		Active:      c.result.ActiveCount,
		Inactive:    c.result.InactiveCount,
	}
	if c.status == StatusLoaded && len(rows) == 0 {
		snap.EmptyMessage = EmptyMessage
	}
	if n, ok := c.notices.Current(); ok {
		snap.Notice = &n
	}
	return snap
}

// Rows returns every row matching the committed query, fetching all pages
// for server-paged entities. Used by exports.
func (c *Controller) Rows(ctx context.Context) ([]models.Row, error) {
	c.mu.Lock()
	q := c.query.Clone()
	c.mu.Unlock()

	if c.def.Shape == models.ShapeArray {
		rows, err := c.src.ListAll(ctx, c.def, q)
		if err != nil {
			return nil, err
		}
		return filterLocal(rows, q, c.def), nil
	}

	var out []models.Row
	for page := 1; ; page++ {
		q.Page = page
		res, err := c.src.ListPaged(ctx, c.def, q)
		if err != nil {
			return nil, err
		}
		out = append(out, res.Rows...)
		if page >= res.LastPage || len(res.Rows) == 0 {
			return out, nil
		}
	}
}

func (c *Controller) fetch(ctx context.Context) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	q := c.query.Clone()
	c.status = StatusLoading
	c.mu.Unlock()

	var (
		res  models.PageResult
		rows []models.Row
		err  error
	)
	if c.def.Shape == models.ShapeArray {
		rows, err = c.src.ListAll(ctx, c.def, q)
	} else {
		res, err = c.src.ListPaged(ctx, c.def, q)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		if c.observer != nil {
			c.observer.ObserveStaleResponse(c.def.Name)
		}
		c.logger.Debug("discarded stale listing response", zap.Uint64("seq", seq), zap.Uint64("latest", c.seq))
		return
	}
	if err != nil {
		c.status = StatusFailed
		c.lastErr = appErrors.FromError(err).Message
		c.result = emptyResult()
		c.all = nil
		c.logger.Warn("listing fetch failed", zap.Int("page", q.Page), zap.Error(err))
		return
	}

	c.status = StatusLoaded
	c.lastErr = ""
	if c.def.Shape == models.ShapeArray {
		c.all = filterLocal(rows, q, c.def)
		c.result = paginate(c.all, q.Page, q.PageSize)
	} else {
		c.result = res
	}
	c.query.Page = c.result.CurrentPage
}

// stepBackIfEmpty moves a server-paged listing back one page when a delete
// emptied the last page. The backend may answer the emptied page with
// current_page past last_page.
func (c *Controller) stepBackIfEmpty(ctx context.Context) {
	c.mu.Lock()
	page := c.query.Page
	empty := c.status == StatusLoaded && len(c.result.Rows) == 0 && page > 1 &&
		(c.result.Total > 0 || page > c.result.LastPage)
	prev := page - 1
	if prev > c.result.LastPage {
		prev = c.result.LastPage
	}
	if empty {
		c.query.Page = prev
	}
	c.mu.Unlock()
	if !empty {
		return
	}
	c.fetch(ctx)
}

func (c *Controller) paginationLocked() models.Pagination {
	r := c.result
	return models.Pagination{
		Page:       r.CurrentPage,
		PageSize:   c.query.PageSize,
		TotalCount: r.Total,
		LastPage:   r.LastPage,
		From:       r.RangeFrom,
		To:         r.RangeTo,
		HasPrev:    r.CurrentPage > 1,
		HasNext:    r.CurrentPage < r.LastPage,
	}
}

func removeRow(rows []models.Row, key, id string) []models.Row {
	out := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		if row.Value(key) == id {
			continue
		}
		out = append(out, row)
	}
	return out
}

func deleteFailedText(req models.DeletionRequest, err error) string {
	msg := appErrors.FromError(err).Message
	if req.TargetDisplayName == "" {
		return "Failed to delete: " + msg
	}
	return "Failed to delete " + req.TargetDisplayName + ": " + msg
}
