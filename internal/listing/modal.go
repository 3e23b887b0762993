package listing

import "github.com/noah-isme/sma-console/internal/models"

// ModalState is the render state of the delete confirmation modal.
type ModalState struct {
	Open        bool   `json:"open"`
	TargetID    string `json:"target_id,omitempty"`
	TargetLabel string `json:"target_label,omitempty"`
}

// Modal gates destructive actions. It only records intent; the controller
// performs the delete.
type Modal struct {
	pending *models.DeletionRequest
}

// Open stores req and shows the modal.
func (m *Modal) Open(req models.DeletionRequest) {
	m.pending = &req
}

// Pending returns the request awaiting confirmation.
func (m *Modal) Pending() (models.DeletionRequest, bool) {
	if m.pending == nil {
		return models.DeletionRequest{}, false
	}
	return *m.pending, true
}

// Close hides the modal and drops the request.
func (m *Modal) Close() {
	m.pending = nil
}

// State returns the render state.
func (m *Modal) State() ModalState {
	if m.pending == nil {
		return ModalState{}
	}
	return ModalState{Open: true, TargetID: m.pending.TargetID, TargetLabel: m.pending.TargetDisplayName}
}
