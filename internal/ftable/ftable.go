// Package ftable implements the fiber table: dense integer-indexed storage
// of live fibers with generation counters, giving stable fiber identifiers
// while allowing slot reuse. Grounded on the teacher's own "unique" request
// ID idiom (connection.go keyed cancelFuncs and freelist-recycled messages
// by a uint64 identity instead of a pointer), generalized here to a
// slot+generation pair so a stale handle can be told apart from a reused
// slot without an extra indirection table.
package ftable

import "fmt"

// ID identifies a fiber by its slot in the table and a generation counter
// bumped every time that slot is recycled. Two fibers that reuse the same
// slot always have different IDs.
type ID struct {
	Slot uint32
	Gen  uint32
}

// NoID is a sentinel used as "no parent" for the root fiber. It is
// deliberately not the zero value: slot 0 is a perfectly ordinary, real
// slot (the first Insert returns it), so a zero-valued sentinel would
// collide with the first fiber ever created. NoID instead uses the
// maximum slot/generation, which Insert can never produce.
var NoID = ID{Slot: ^uint32(0), Gen: ^uint32(0)}

// genMask keeps Pack's generation field within the 24 bits Unpack (and the
// reactor's op-kind byte below it) actually reserve for it. A slot would
// need to be recycled more than 1<<24 times before this truncates, far
// beyond what a single fiber table instance sees in one Runtime's lifetime,
// but Pack must enforce the bound itself rather than rely on callers never
// reaching it: a truncated-on-the-way-out generation that was never
// truncated on the way in would corrupt the slot bits above it instead of
// just colliding two generations, silently breaking the stale-handle check.
const genMask = 1<<24 - 1

// Pack encodes ID into the 64-bit cookie layout the reactor stamps into an
// SQE's user_data (spec.md §4.4: "cookies encode (slot, generation,
// op-kind)"): 32 bits of slot, 24 bits of generation, 8 bits the reactor
// folds in an op-kind tag that ftable itself does not interpret.
func (id ID) Pack() uint64 {
	return uint64(id.Slot)<<32 | (uint64(id.Gen)&genMask)<<8
}

// Unpack recovers an ID from the slot/generation bits of a cookie produced
// by Pack (ignoring the low op-kind byte).
func Unpack(cookie uint64) ID {
	return ID{Slot: uint32(cookie >> 32), Gen: uint32(cookie>>8) & genMask}
}

func (id ID) String() string {
	return fmt.Sprintf("fiber(%d.%d)", id.Slot, id.Gen)
}

type slot[T any] struct {
	gen    uint32
	occupied bool
	value  T
}

// Table is a dense, generation-checked store of live values of type T,
// indexed by ID. It is not safe for concurrent use — callers own the
// single-threaded discipline (consistent with the runtime's atomic-free,
// one-goroutine-at-a-time design).
type Table[T any] struct {
	slots []slot[T]
	free  []uint32 // recycled slot indices, LIFO
	live  int
}

// New creates an empty table.
func New[T any]() *Table[T] {
	return &Table[T]{}
}

// Insert allocates a slot (reusing a released one when available), stores
// value there, and returns its ID.
func (t *Table[T]) Insert(value T) ID {
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		s := &t.slots[idx]
		s.occupied = true
		s.value = value
		t.live++
		return ID{Slot: idx, Gen: s.gen}
	}

	idx := uint32(len(t.slots))
	t.slots = append(t.slots, slot[T]{gen: 0, occupied: true, value: value})
	t.live++
	return ID{Slot: idx, Gen: 0}
}

// Get returns the value stored at id and whether id is still live (matches
// the slot's current generation and is occupied).
func (t *Table[T]) Get(id ID) (T, bool) {
	var zero T
	if int(id.Slot) >= len(t.slots) {
		return zero, false
	}
	s := &t.slots[id.Slot]
	if !s.occupied || s.gen != id.Gen {
		return zero, false
	}
	return s.value, true
}

// Set overwrites the value stored at id, returning false without effect if
// id is stale.
func (t *Table[T]) Set(id ID, value T) bool {
	if int(id.Slot) >= len(t.slots) {
		return false
	}
	s := &t.slots[id.Slot]
	if !s.occupied || s.gen != id.Gen {
		return false
	}
	s.value = value
	return true
}

// Remove releases id's slot, bumping its generation so any outstanding weak
// reference by the old ID reports "gone" (spec.md §3: "dereferencing after
// generation mismatch yields 'fiber gone'"). Returns false without effect
// if id was already stale.
func (t *Table[T]) Remove(id ID) bool {
	if int(id.Slot) >= len(t.slots) {
		return false
	}
	s := &t.slots[id.Slot]
	if !s.occupied || s.gen != id.Gen {
		return false
	}
	var zero T
	s.value = zero
	s.occupied = false
	s.gen++
	t.free = append(t.free, id.Slot)
	t.live--
	return true
}

// Len returns the number of currently live entries.
func (t *Table[T]) Len() int {
	return t.live
}

// ForEach calls fn once for every currently live entry, in slot order. fn
// must not Insert or Remove from the table.
func (t *Table[T]) ForEach(fn func(ID, T)) {
	for idx := range t.slots {
		s := &t.slots[idx]
		if s.occupied {
			fn(ID{Slot: uint32(idx), Gen: s.gen}, s.value)
		}
	}
}
