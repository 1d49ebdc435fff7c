package types

// Mode is the editor's display state.
type Mode int

// Editor modes. ModeView is the initial state.
const (
	ModeView Mode = iota
	ModeEdit
)

// String returns "view" or "edit".
func (m Mode) String() string {
	switch m {
	case ModeView:
		return "view"
	case ModeEdit:
		return "edit"
	default:
		return "unknown"
	}
}
