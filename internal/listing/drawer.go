package listing

import "github.com/noah-isme/sma-console/internal/models"

// DrawerState is the render state of the filter drawer.
type DrawerState struct {
	Open  bool              `json:"open"`
	Draft map[string]string `json:"draft"`
}

// Drawer holds an uncommitted copy of the filters. Opening or closing it never
// fetches; only the owning controller's Apply and Reset do.
type Drawer struct {
	open  bool
	draft map[string]string
}

// Open shows the drawer seeded with initial.
func (d *Drawer) Open(initial map[string]string) {
	d.open = true
	d.draft = models.CloneFilters(initial)
}

// IsOpen reports whether the drawer is showing.
func (d *Drawer) IsOpen() bool { return d.open }

// Set edits one draft field. An empty value removes the key.
func (d *Drawer) Set(key, value string) {
	if d.draft == nil {
		d.draft = make(map[string]string)
	}
	if value == "" {
		delete(d.draft, key)
		return
	}
	d.draft[key] = value
}

// Apply closes the drawer and hands back the draft for commit.
func (d *Drawer) Apply() map[string]string {
	draft := models.CloneFilters(d.draft)
	d.open = false
	d.draft = nil
	return draft
}

// Reset clears the draft and closes the drawer.
func (d *Drawer) Reset() {
	d.open = false
	d.draft = nil
}

// Close discards the draft. Backdrop clicks and Escape land here too.
func (d *Drawer) Close() {
	d.Reset()
}

// State returns a copy safe to hand to a renderer.
func (d *Drawer) State() DrawerState {
	return DrawerState{Open: d.open, Draft: models.CloneFilters(d.draft)}
}
