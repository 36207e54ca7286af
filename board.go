package flowbus

// BoardStreamType is the wire stream-type tag for Board flows.
const BoardStreamType = "flowbus.board.v0"

// BoardState is a Board flow's snapshot: an arbitrary string->string map.
type BoardState map[string]string

// BoardEventKind discriminates a Board flow's two event variants.
type BoardEventKind string

const (
	// BoardEventAssign sets Key to Value.
	BoardEventAssign BoardEventKind = "assign"
	// BoardEventRemove deletes Key.
	BoardEventRemove BoardEventKind = "remove"
)

// BoardEvent is a Board flow's event: Assign(key, value) or Remove(key).
type BoardEvent struct {
	Kind  BoardEventKind `json:"kind"`
	Key   string         `json:"key"`
	Value string         `json:"value,omitempty"`
}

type boardKind struct{}

func (boardKind) StreamType() string { return BoardStreamType }

func (boardKind) Apply(state any, evt TimedEvent) any {
	s := state.(BoardState)
	e := evt.Event.(BoardEvent)

	next := make(BoardState, len(s)+1)
	for k, v := range s {
		next[k] = v
	}
	switch e.Kind {
	case BoardEventAssign:
		next[e.Key] = e.Value
	case BoardEventRemove:
		delete(next, e.Key)
	}
	return next
}

// Board is a tracer specialized for the Board flow kind.
type Board struct {
	*Tracer
}

// NewBoard registers a Board flow at path, starting empty.
func NewBoard(path Path) (*Board, error) {
	t, err := NewTracer(path, BoardStreamType, boardKind{}, BoardState{}, ModePush)
	if err != nil {
		return nil, err
	}
	return &Board{Tracer: t}, nil
}

// Assign sets key to value.
func (b *Board) Assign(key, value string) {
	b.Send(BoardEvent{Kind: BoardEventAssign, Key: key, Value: value})
}

// Remove deletes key, if present.
func (b *Board) Remove(key string) {
	b.Send(BoardEvent{Kind: BoardEventRemove, Key: key})
}
