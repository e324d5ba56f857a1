package event

// ProgressBytes reports stream bytes accounted for by a verification pass.
type ProgressBytes struct {
	Bytes int64
}

func NewProgressBytes(bytes int64) *ProgressBytes {
	return &ProgressBytes{Bytes: bytes}
}
