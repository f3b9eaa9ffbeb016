package crdt

// Register is a last-writer-wins register: a value paired with the EventID
// of the write that produced it. The higher EventID wins; ties cannot occur
// between distinct ops because patch shas differ.
type Register struct {
	Value interface{}
	Event EventID
}

// Set applies a write to the register and reports whether it won. A register
// with a zero Event is empty and always loses to a real write.
func (r *Register) Set(ev EventID, value interface{}) bool {
	if !r.Event.IsZero() && !r.Event.Less(ev) {
		return false
	}
	r.Value = value
	r.Event = ev
	return true
}

// Merge folds other into r keeping the higher EventID.
func (r *Register) Merge(other Register) {
	if other.Event.IsZero() {
		return
	}
	r.Set(other.Event, other.Value)
}
