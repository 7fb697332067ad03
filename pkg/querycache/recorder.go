package querycache

import "sync"

// Op is one recorded cache operation.
type Op struct {
	Kind  string // "invalidate", "set", "remove"
	Key   Key
	Value any
}

// Recorder is a Cache that records every operation and can be told to
// fail. Intended for tests that assert on the exact cache-action sequence.
type Recorder struct {
	mu  sync.Mutex
	ops []Op

	// Err, when set, is returned by every operation.
	Err error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Compile-time interface check to ensure proper implementation.
var _ Cache = (*Recorder)(nil)

// Invalidate implements Cache.
func (r *Recorder) Invalidate(prefix Key) error {
	return r.record(Op{Kind: "invalidate", Key: append(Key(nil), prefix...)})
}

// SetQueryData implements Cache.
func (r *Recorder) SetQueryData(key Key, value any) error {
	return r.record(Op{Kind: "set", Key: append(Key(nil), key...), Value: value})
}

// RemoveQueries implements Cache.
func (r *Recorder) RemoveQueries(key Key) error {
	return r.record(Op{Kind: "remove", Key: append(Key(nil), key...)})
}

func (r *Recorder) record(op Op) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.ops = append(r.ops, op)
	return nil
}

// Ops returns every recorded operation in order.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// OpsOf returns the recorded operations of one kind, in order.
func (r *Recorder) OpsOf(kind string) []Op {
	var out []Op
	for _, op := range r.Ops() {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}

// Reset drops all recorded operations.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}
