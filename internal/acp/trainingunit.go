package acp

// trainingUnitEntry remembers the last (physical, structural) address pair
// observed for a trigger PC (spec.md §3 "TrainingUnit"), grounded on isb.h's
// TrainingUnitEntry.
type trainingUnitEntry struct {
	addr uint64
	str  uint64
}

// TrainingUnit holds one trainingUnitEntry per trigger PC, grounded on
// isb.h's TUCache (`map<uint64_t, TrainingUnitEntry*>`). Unlike IndexTable
// this is not capacity-bounded in the source and is expected to hold one
// entry per distinct PC observed, a small, naturally bounded key space.
type TrainingUnit struct {
	entries map[uint64]*trainingUnitEntry
}

// NewTrainingUnit builds an empty training unit.
func NewTrainingUnit() *TrainingUnit {
	return &TrainingUnit{entries: make(map[uint64]*trainingUnitEntry)}
}

// Observe records an access under pc to nextAddr, returning the prior
// (lastAddr, lastStr) pair and whether training should proceed: false when
// this is the very first access under pc, or a repeat of the last address
// (isb.cc's access_training_unit "A=B" short-circuit, supplemented per
// SPEC_FULL.md §3.1 "access-training-unit reuse skip").
func (u *TrainingUnit) Observe(pc, nextAddr uint64) (lastAddr, lastStr uint64, train bool) {
	e, existed := u.entries[pc]
	if !existed {
		e = &trainingUnitEntry{}
		u.entries[pc] = e
	}
	lastAddr, lastStr = e.addr, e.str
	if lastAddr == nextAddr {
		return lastAddr, lastStr, false
	}
	return lastAddr, lastStr, existed
}

// Update overwrites pc's remembered (addr, str) pair after training.
func (u *TrainingUnit) Update(pc, addr, str uint64) {
	u.entries[pc] = &trainingUnitEntry{addr: addr, str: str}
}
