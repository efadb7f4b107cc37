// Package metrics exposes the per-table statistics both original cores
// printed via `dump_stats()`/`cout <<` (rb.cc, isb.cc) as Prometheus
// counters, consumed by cmd/prefetchsim's --metrics-addr flag
// (SPEC_FULL.md §3.1, §2.2).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// MLSP carries rb.cc's region coalescing/splitting counters
// (count_eu_check, count_region_expand, count_su_check,
// count_region_shrink — "eu"/"su" name the expand-up/split-up checks
// rb.cc performs before committing a level-up or level-down).
type MLSP struct {
	RegionExpandChecked prometheus.Counter
	RegionExpanded      prometheus.Counter
	RegionShrinkChecked prometheus.Counter
	RegionShrunk        prometheus.Counter
}

// NewMLSP registers a fresh MLSP counter set under reg, tagging each with
// the engine instance's name (e.g. "rb", "rb_l1") so multiple engines don't
// collide in one registry.
func NewMLSP(reg prometheus.Registerer, engine string) *MLSP {
	mk := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "llcprefetch",
			Subsystem:   "mlsp",
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels{"engine": engine},
		})
		if reg != nil {
			reg.MustRegister(c)
		}
		return c
	}
	return &MLSP{
		RegionExpandChecked: mk("region_expand_checked_total", "times a sibling region was checked for level-up eligibility"),
		RegionExpanded:      mk("region_expanded_total", "times a level-up merge was committed"),
		RegionShrinkChecked: mk("region_shrink_checked_total", "times a retiring region was checked for level-down eligibility"),
		RegionShrunk:        mk("region_shrunk_total", "times a level-down split was committed"),
	}
}

// ACP carries isb.cc's training/prediction counters (exceed_stream_alloc,
// stream_divergence_count, total_access, predictions, no_prediction,
// stream_end, no_translation, reuse).
type ACP struct {
	TotalAccess           prometheus.Counter
	Predictions           prometheus.Counter
	NoPrediction          prometheus.Counter
	StreamEnd             prometheus.Counter
	NoTranslation          prometheus.Counter
	Reuse                 prometheus.Counter
	ExceedStreamAlloc     prometheus.Counter
	StreamDivergenceCount prometheus.Counter
}

// NewACP registers a fresh ACP counter set under reg, tagging each with the
// selected strategy's name (e.g. "domino", "isb").
func NewACP(reg prometheus.Registerer, strategy string) *ACP {
	mk := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "llcprefetch",
			Subsystem:   "acp",
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels{"strategy": strategy},
		})
		if reg != nil {
			reg.MustRegister(c)
		}
		return c
	}
	return &ACP{
		TotalAccess:           mk("total_access_total", "loads observed by the ACP core"),
		Predictions:           mk("predictions_total", "non-empty predictions emitted"),
		NoPrediction:          mk("no_prediction_total", "accesses that yielded no prediction"),
		StreamEnd:             mk("stream_end_total", "active streams retired at end of run of hits"),
		NoTranslation:         mk("no_translation_total", "structural lookups with no assigned structural address"),
		Reuse:                 mk("reuse_total", "repeated (pc, addr) pairs skipped by the training unit"),
		ExceedStreamAlloc:     mk("exceed_stream_alloc_total", "structural address allocations that exceeded the configured budget"),
		StreamDivergenceCount: mk("stream_divergence_total", "structural bindings invalidated due to stream divergence"),
	}
}
