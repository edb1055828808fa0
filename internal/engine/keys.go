package engine

// KeySet is read-only once built; states share it freely.
type KeySet map[Key]bool

// DefaultUnsupportedKeys are ignored by Apply. Backspace is always supported.
var DefaultUnsupportedKeys = KeySet{
	// Modifiers
	"Shift": true, "Control": true, "Alt": true, "AltGraph": true, "Meta": true,
	"CapsLock": true, "NumLock": true, "ScrollLock": true, "Fn": true, "FnLock": true,
	"Hyper": true, "Super": true, "Symbol": true, "SymbolLock": true, "OS": true,
	// Navigation
	"ArrowUp": true, "ArrowDown": true, "ArrowLeft": true, "ArrowRight": true,
	"Home": true, "End": true, "PageUp": true, "PageDown": true,
	// Editing other than Backspace
	"Delete": true, "Insert": true, "Tab": true, "Enter": true, "Clear": true,
	"Copy": true, "Cut": true, "Paste": true, "Undo": true, "Redo": true,
	// UI
	"Escape": true, "ContextMenu": true, "Pause": true, "PrintScreen": true,
	"Help": true, "Find": true, "Select": true,
	// Function keys
	"F1": true, "F2": true, "F3": true, "F4": true, "F5": true, "F6": true,
	"F7": true, "F8": true, "F9": true, "F10": true, "F11": true, "F12": true,
	// Media
	"AudioVolumeUp": true, "AudioVolumeDown": true, "AudioVolumeMute": true,
	"MediaPlayPause": true, "MediaTrackNext": true, "MediaTrackPrevious": true, "MediaStop": true,
	// IME / composition
	"Dead": true, "Process": true, "Unidentified": true, "Compose": true,
	"Convert": true, "NonConvert": true, "KanaMode": true, "HangulMode": true,
}

func NewKeySet(keys ...Key) KeySet {
	ks := make(KeySet, len(keys))
	for _, k := range keys {
		if k == KeyBackspace {
			continue
		}
		ks[k] = true
	}
	return ks
}

// Supports reports whether Apply should act on k.
func (ks KeySet) Supports(k Key) bool {
	switch k {
	case "":
		return false
	case KeyBackspace:
		return true
	}
	return !ks[k]
}
