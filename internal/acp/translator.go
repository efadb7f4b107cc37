package acp

// psEntry is one physical->structural binding with a saturating confidence
// counter (spec.md §3 "StructuralTranslator"), grounded on isb.h's PS_Entry.
type psEntry struct {
	structural uint64
	confidence int
}

// spEntry is the inverse structural->physical binding (isb.h's SP_Entry).
type spEntry struct {
	phys uint64
}

// Translator is the bidirectional physical<->structural address map of
// spec.md §4.8, grounded on isb.h's OffChipInfo. Confidence saturates at 3
// (isb.h's PS_Entry::increase_confidence/lower_confidence).
type Translator struct {
	ps map[uint64]*psEntry
	sp map[uint64]*spEntry
}

// NewTranslator builds an empty translator.
func NewTranslator() *Translator {
	return &Translator{ps: make(map[uint64]*psEntry), sp: make(map[uint64]*spEntry)}
}

// Structural returns phys's structural address, if bound.
func (t *Translator) Structural(phys uint64) (uint64, bool) {
	e, ok := t.ps[phys]
	if !ok {
		return 0, false
	}
	return e.structural, true
}

// Physical returns str's physical address, if bound.
func (t *Translator) Physical(str uint64) (uint64, bool) {
	e, ok := t.sp[str]
	if !ok {
		return 0, false
	}
	return e.phys, true
}

// Update binds phys<->str, replacing any prior binding for either side's own
// key (isb.h's OffChipInfo::update: always sets confidence to 3 on a fresh
// or overwritten PS_Entry).
func (t *Translator) Update(phys, str uint64) {
	t.ps[phys] = &psEntry{structural: str, confidence: 3}
	t.sp[str] = &spEntry{phys: phys}
}

// Invalidate removes both directions of a phys<->str binding (spec.md §4.9
// "Structural-address invalidation always removes both directions").
func (t *Translator) Invalidate(phys, str uint64) {
	delete(t.ps, phys)
	delete(t.sp, str)
}

// IncreaseConfidence bumps phys's confidence counter, saturating at 3.
func (t *Translator) IncreaseConfidence(phys uint64) int {
	e := t.ps[phys]
	if e.confidence < 3 {
		e.confidence++
	}
	return e.confidence
}

// LowerConfidence decrements phys's confidence counter, floored at 0.
func (t *Translator) LowerConfidence(phys uint64) int {
	e := t.ps[phys]
	if e.confidence > 0 {
		e.confidence--
	}
	return e.confidence
}
