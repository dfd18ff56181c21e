package history

// DefaultMaxSize bounds the stack when the caller does not choose a
// capacity.
const DefaultMaxSize = 50

// State summarizes the stack for the UI.
type State struct {
	CanUndo     bool `json:"can_undo"`
	CanRedo     bool `json:"can_redo"`
	HistorySize int  `json:"history_size"`
}

// Store is a bounded undo/redo stack over recorded actions. The cursor
// sits on the most recently applied action; pushing after undos drops
// the redo branch. Store is not safe for concurrent use; the editor
// service serializes all access. History is never persisted.
type Store struct {
	actions []Action
	current int
	maxSize int
}

// NewStore returns an empty stack holding at most maxSize actions.
// Non-positive maxSize falls back to DefaultMaxSize.
func NewStore(maxSize int) *Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Store{current: -1, maxSize: maxSize}
}

// Push records an action as the new cursor position. Any undone
// actions beyond the cursor are discarded first; when the stack
// overflows its capacity the oldest action is evicted.
func (s *Store) Push(a Action) {
	s.actions = append(s.actions[:s.current+1], a)
	s.current++

	if len(s.actions) > s.maxSize {
		s.actions = s.actions[1:]
		s.current--
	}
}

// Undo steps the cursor back and returns the action now under it, or
// (nil, false) when the cursor is already at the bottom.
func (s *Store) Undo() (Action, bool) {
	if s.current <= 0 {
		return nil, false
	}
	s.current--
	return s.actions[s.current], true
}

// Redo steps the cursor forward and returns the action now under it,
// or (nil, false) when there is nothing to redo.
func (s *Store) Redo() (Action, bool) {
	if s.current >= len(s.actions)-1 {
		return nil, false
	}
	s.current++
	return s.actions[s.current], true
}

func (s *Store) CanUndo() bool {
	return s.current > 0
}

func (s *Store) CanRedo() bool {
	return s.current < len(s.actions)-1
}

// Clear empties the stack.
func (s *Store) Clear() {
	s.actions = nil
	s.current = -1
}

// Size returns the number of recorded actions.
func (s *Store) Size() int {
	return len(s.actions)
}

func (s *Store) GetState() State {
	return State{
		CanUndo:     s.CanUndo(),
		CanRedo:     s.CanRedo(),
		HistorySize: len(s.actions),
	}
}
