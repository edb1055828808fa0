package engine

func NewState(passage string, unsupported KeySet) State {
	return State{
		Passage:     []rune(passage),
		Letters:     []Letter{},
		Cursor:      0,
		Unsupported: unsupported,
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// ApplyAll folds a key sequence, skipping keys Apply rejects.
func ApplyAll(s State, keys []KeyEvent) ([]Event, State) {
	var all []Event
	for _, k := range keys {
		events, next, err := Apply(s, k)
		if err != nil {
			continue
		}
		all = append(all, events...)
		s = next
	}
	return all, s
}

func CorrectCount(s State) int {
	n := 0
	for _, l := range s.Letters {
		if l.Typed == l.Expected {
			n++
		}
	}
	return n
}
