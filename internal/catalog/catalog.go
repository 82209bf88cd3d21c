// Package catalog is the canonical source of truth for the workflow step
// kinds the system knows about: their static attributes and the adjacency
// rules that constrain which kind may precede or follow which.
package catalog

import (
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// KindId is the stable small integer identifying a step kind across the
// catalog. It is persisted and never reused once assigned.
type KindId int

const (
	KindDownloadFile KindId = iota
	KindPreflight
	KindImpose
	KindAnalyzer
	KindColorSetup
	KindRasterization
	KindLoader
	KindCutting
	KindLaminating
	KindMetrics
)

// MinCores and MaxCores bound the legal num_cores configuration for
// Rasterization. num_cores == 0 is deliberately out of range: a step that
// can't use any core is a configuration error, not a zero-cost no-op.
const (
	MinCores = 1
	MaxCores = 10
)

// Step is a step instance: a kind plus, for parameterized kinds, its
// configuration. Two Steps are equal for adjacency-matching purposes iff
// their Kind matches; NumCores is ignored for that comparison.
type Step struct {
	Kind     KindId
	NumCores int // only meaningful when Kind == KindRasterization
}

// SameKind reports whether two steps are equal for adjacency-matching
// purposes: their kind matches, regardless of configuration.
func SameKind(a, b Step) bool {
	return a.Kind == b.Kind
}

// Attributes holds the static, per-kind metadata the catalog carries.
type Attributes struct {
	ID          KindId
	Title       string
	SetupTime   uint32
	TimePerPage uint32
	NoPrevValid bool // may be a source (no predecessor required)
	NoNextValid bool // may be a sink (no successor required)
}

type kindEntry struct {
	attrs     Attributes
	validPrev []KindId
	validNext []KindId
}

// catalogTable is the authoritative static catalog (spec.md §4.1).
var catalogTable = map[KindId]kindEntry{
	KindDownloadFile: {
		attrs:     Attributes{ID: KindDownloadFile, Title: "Download File", SetupTime: 0, TimePerPage: 1, NoPrevValid: true},
		validPrev: nil,
		validNext: []KindId{KindPreflight},
	},
	KindPreflight: {
		attrs:     Attributes{ID: KindPreflight, Title: "Preflight", SetupTime: 10, TimePerPage: 20},
		validPrev: []KindId{KindDownloadFile},
		validNext: []KindId{KindImpose},
	},
	KindImpose: {
		attrs:     Attributes{ID: KindImpose, Title: "Impose", SetupTime: 0, TimePerPage: 5},
		validPrev: []KindId{KindPreflight},
		validNext: []KindId{KindAnalyzer},
	},
	KindAnalyzer: {
		attrs:     Attributes{ID: KindAnalyzer, Title: "Analyzer", SetupTime: 0, TimePerPage: 5},
		validPrev: []KindId{KindImpose},
		validNext: []KindId{KindColorSetup},
	},
	KindColorSetup: {
		attrs:     Attributes{ID: KindColorSetup, Title: "Color Setup", SetupTime: 2, TimePerPage: 1},
		validPrev: []KindId{KindAnalyzer},
		validNext: []KindId{KindRasterization},
	},
	KindRasterization: {
		attrs:     Attributes{ID: KindRasterization, Title: "Rasterization", SetupTime: 50, TimePerPage: 15},
		validPrev: []KindId{KindColorSetup},
		validNext: []KindId{KindLoader},
	},
	KindLoader: {
		attrs:     Attributes{ID: KindLoader, Title: "Loader", SetupTime: 100, TimePerPage: 1, NoNextValid: true},
		validPrev: []KindId{KindRasterization},
		validNext: []KindId{KindCutting, KindLaminating, KindMetrics},
	},
	KindCutting: {
		attrs:     Attributes{ID: KindCutting, Title: "Cutting", SetupTime: 10, TimePerPage: 2, NoNextValid: true},
		validPrev: []KindId{KindLoader, KindMetrics},
		validNext: []KindId{KindLaminating, KindMetrics},
	},
	KindLaminating: {
		attrs:     Attributes{ID: KindLaminating, Title: "Laminating", SetupTime: 10, TimePerPage: 5, NoNextValid: true},
		validPrev: []KindId{KindLoader, KindCutting, KindMetrics},
		validNext: []KindId{KindMetrics},
	},
	KindMetrics: {
		attrs:     Attributes{ID: KindMetrics, Title: "Metrics", SetupTime: 2, TimePerPage: 1, NoNextValid: true},
		validPrev: []KindId{KindLoader, KindCutting, KindLaminating},
		validNext: []KindId{KindCutting, KindLaminating},
	},
}

// AllKinds returns every kind id in the catalog, in ascending order.
func AllKinds() []KindId {
	return []KindId{
		KindDownloadFile, KindPreflight, KindImpose, KindAnalyzer, KindColorSetup,
		KindRasterization, KindLoader, KindCutting, KindLaminating, KindMetrics,
	}
}

// UnknownKindId is returned whenever a KindId outside the catalog is used.
type UnknownKindId struct {
	ID KindId
}

func (e *UnknownKindId) Error() string {
	return fmt.Sprintf("catalog: unknown kind id %d", e.ID)
}

// InvalidStep is returned by Deserialize when a Record can't be turned into
// a valid Step: missing required fields, unexpected fields, or an unknown id.
type InvalidStep struct {
	Reason string
}

func (e *InvalidStep) Error() string {
	return fmt.Sprintf("catalog: invalid step: %s", e.Reason)
}

// KindOf returns the kind of a step. Constant time.
func KindOf(s Step) KindId {
	return s.Kind
}

// AttributesOf returns the static attributes for a kind.
func AttributesOf(kind KindId) (Attributes, error) {
	entry, ok := catalogTable[kind]
	if !ok {
		return Attributes{}, &UnknownKindId{ID: kind}
	}
	return entry.attrs, nil
}

// coreCountProgram is the declarative legal-range rule for Rasterization's
// parameter, compiled once at package init and run per candidate value —
// the same compile-once/run-many shape the teacher uses to evaluate
// conditional-edge predicates in its DAG executor.
var coreCountProgram = func() *vm.Program {
	program, err := expr.Compile("num_cores >= min && num_cores <= max", expr.AsBool())
	if err != nil {
		panic(fmt.Sprintf("catalog: failed to compile core-count range rule: %v", err))
	}
	return program
}()

// coresInRange reports whether numCores is a legal Rasterization core count.
func coresInRange(numCores int) bool {
	result, err := expr.Run(coreCountProgram, map[string]any{
		"num_cores": numCores,
		"min":       MinCores,
		"max":       MaxCores,
	})
	if err != nil {
		return false
	}
	ok, _ := result.(bool)
	return ok
}

// OutOfRangeParameter is returned when a parameterized variant's
// configuration falls outside its documented legal range.
type OutOfRangeParameter struct {
	Kind     KindId
	Field    string
	Value    int
	Min, Max int
}

func (e *OutOfRangeParameter) Error() string {
	return fmt.Sprintf("catalog: %s=%d out of range [%d,%d] for kind %d", e.Field, e.Value, e.Min, e.Max, e.Kind)
}

// ValidateParameter checks that a step's configuration is within its
// documented legal range (V3). Nullary kinds always pass.
func ValidateParameter(s Step) error {
	if _, ok := catalogTable[s.Kind]; !ok {
		return &UnknownKindId{ID: s.Kind}
	}
	if s.Kind != KindRasterization {
		return nil
	}
	if !coresInRange(s.NumCores) {
		slog.Default().Warn("catalog: step parameter out of range",
			"kind", s.Kind, "field", "num_cores", "value", s.NumCores, "min", MinCores, "max", MaxCores)
		return &OutOfRangeParameter{Kind: s.Kind, Field: "num_cores", Value: s.NumCores, Min: MinCores, Max: MaxCores}
	}
	return nil
}

// ValidNext returns the set of kinds that may directly follow the given
// kind, expanded so that membership can be tested by kind equality alone.
func ValidNext(kind KindId) (map[KindId]bool, error) {
	entry, ok := catalogTable[kind]
	if !ok {
		return nil, &UnknownKindId{ID: kind}
	}
	return expandKinds(entry.validNext), nil
}

// ValidPrev returns the set of kinds that may directly precede the given
// kind, expanded the same way as ValidNext.
func ValidPrev(kind KindId) (map[KindId]bool, error) {
	entry, ok := catalogTable[kind]
	if !ok {
		return nil, &UnknownKindId{ID: kind}
	}
	return expandKinds(entry.validPrev), nil
}

// expandKinds turns a rule-set (kinds) into a membership set. Rasterization
// is parameterized but adjacency only ever depends on the kind, not the
// parameter value, so no per-core-count expansion is actually needed here —
// membership testing is already pure kind equality. The set is still built
// fresh per call so callers may treat it as independently owned.
func expandKinds(kinds []KindId) map[KindId]bool {
	set := make(map[KindId]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}

// Record is the wire shape produced by Serialize and consumed by
// Deserialize: spec.md §4.1's {id, title, setup_time, time_per_page} plus,
// for Rasterization, num_cores.
type Record struct {
	ID          KindId `json:"id"`
	Title       string `json:"title"`
	SetupTime   uint32 `json:"setup_time"`
	TimePerPage uint32 `json:"time_per_page"`
	NumCores    *int   `json:"num_cores,omitempty"`
}

// Serialize emits a step's attributes Record, including its parameter when
// the kind carries one.
func Serialize(s Step) (Record, error) {
	attrs, err := AttributesOf(s.Kind)
	if err != nil {
		return Record{}, err
	}
	rec := Record{ID: attrs.ID, Title: attrs.Title, SetupTime: attrs.SetupTime, TimePerPage: attrs.TimePerPage}
	if s.Kind == KindRasterization {
		n := s.NumCores
		rec.NumCores = &n
	}
	return rec, nil
}

// Deserialize reads a Record back into a Step, failing with InvalidStep if
// required fields are missing, unknown fields are present for a nullary
// kind, or the id is unknown.
func Deserialize(rec Record) (Step, error) {
	if _, ok := catalogTable[rec.ID]; !ok {
		slog.Default().Warn("catalog: deserialize rejected unknown kind id", "id", rec.ID)
		return Step{}, &InvalidStep{Reason: fmt.Sprintf("unknown kind id %d", rec.ID)}
	}
	if rec.ID == KindRasterization {
		if rec.NumCores == nil {
			slog.Default().Warn("catalog: deserialize rejected rasterization step missing num_cores", "id", rec.ID)
			return Step{}, &InvalidStep{Reason: "rasterization requires num_cores"}
		}
		return Step{Kind: rec.ID, NumCores: *rec.NumCores}, nil
	}
	if rec.NumCores != nil {
		slog.Default().Warn("catalog: deserialize rejected num_cores on nullary kind", "id", rec.ID)
		return Step{}, &InvalidStep{Reason: fmt.Sprintf("kind %d does not accept num_cores", rec.ID)}
	}
	return Step{Kind: rec.ID}, nil
}
