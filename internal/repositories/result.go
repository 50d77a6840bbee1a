package repositories

// ResultKind tells the UI whether a fetch produced data, legitimately nothing, or failed.
type ResultKind int

const (
	ResultOK ResultKind = iota
	ResultEmpty
	ResultTransportError
)

func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultEmpty:
		return "empty"
	default:
		return "transport_error"
	}
}

// Result is the outcome of a list fetch. Items is always safe to merge, even on error.
type Result[T any] struct {
	Items []T
	Kind  ResultKind
	Err   error
}

func okOrEmpty[T any](items []T) Result[T] {
	if len(items) == 0 {
		return Result[T]{Kind: ResultEmpty}
	}
	return Result[T]{Items: items, Kind: ResultOK}
}

func failed[T any](err error) Result[T] {
	return Result[T]{Kind: ResultTransportError, Err: err}
}
