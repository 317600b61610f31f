package snapshot

import (
	"time"
)

// Level is a validation rule's severity.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Rule is one structural validation check (spec.md §4.4).
type Rule struct {
	Name      string
	Predicate func(*Snapshot) bool
	Message   string
	Level     Level
}

// CustomValidator is a caller-supplied check that always yields warnings,
// never errors, per spec.md §4.4 ("custom validators... yield warnings
// only").
type CustomValidator func(*Snapshot) (ok bool, message string)

// ValidationResult is the outcome of running a Validator over a Snapshot.
type ValidationResult struct {
	IsValid      bool
	Errors       []string
	Warnings     []string
	Info         []string
	RulesChecked int
	Duration     time.Duration
}

// Validator evaluates a rule table, in order, against a Snapshot.
type Validator struct {
	rules      []Rule
	customs    []CustomValidator
}

// NewValidator builds a Validator with the given rules appended after the
// defaults.
func NewValidator(extra ...Rule) *Validator {
	v := &Validator{rules: append([]Rule{}, DefaultRules()...)}
	v.rules = append(v.rules, extra...)
	return v
}

// AddCustomValidator registers a custom validator, which only ever produces
// warnings.
func (v *Validator) AddCustomValidator(cv CustomValidator) {
	v.customs = append(v.customs, cv)
}

// DefaultRules returns the built-in rule table (spec.md §4.4).
func DefaultRules() []Rule {
	now := func() time.Time { return time.Now() }
	return []Rule{
		{Name: "has-id", Level: LevelError, Message: "snapshot is missing an id",
			Predicate: func(s *Snapshot) bool { return s.ID != "" }},
		{Name: "has-timestamp", Level: LevelError, Message: "snapshot metadata.timestamp is not set",
			Predicate: func(s *Snapshot) bool { return !s.Metadata.Timestamp.IsZero() }},
		{Name: "has-state-object", Level: LevelError, Message: "snapshot state is nil",
			Predicate: func(s *Snapshot) bool { return s.State != nil }},
		{Name: "non-empty-state", Level: LevelWarning, Message: "snapshot state is empty",
			Predicate: func(s *Snapshot) bool { return len(s.State) > 0 }},
		{Name: "entries-have-shape", Level: LevelError, Message: "a state entry is missing value/variant/name",
			Predicate: func(s *Snapshot) bool {
				for _, e := range s.State {
					if e.Name == "" || e.Variant == "" || e.Value.Kind == "" {
						return false
					}
				}
				return true
			}},
		{Name: "entries-have-valid-variant", Level: LevelError, Message: "a state entry has an unrecognized variant",
			Predicate: func(s *Snapshot) bool {
				for _, e := range s.State {
					switch e.Variant {
					case "primitive", "writable", "computed", "date", "regexp", "map", "set":
					default:
						return false
					}
				}
				return true
			}},
		{Name: "timestamp-in-range", Level: LevelWarning, Message: "snapshot timestamp is outside [now-1y, now]",
			Predicate: func(s *Snapshot) bool {
				n := now()
				return !s.Metadata.Timestamp.Before(n.AddDate(-1, 0, 0)) && !s.Metadata.Timestamp.After(n)
			}},
		{Name: "atom-count-matches", Level: LevelError, Message: "metadata.atomCount does not equal len(state)",
			Predicate: func(s *Snapshot) bool { return s.Metadata.AtomCount == len(s.State) }},
	}
}

// Validate runs every rule and custom validator against snap.
func (v *Validator) Validate(snap *Snapshot) ValidationResult {
	start := time.Now()
	res := ValidationResult{IsValid: true}

	for _, r := range v.rules {
		res.RulesChecked++
		if r.Predicate(snap) {
			continue
		}
		switch r.Level {
		case LevelError:
			res.IsValid = false
			res.Errors = append(res.Errors, r.Message)
		case LevelWarning:
			res.Warnings = append(res.Warnings, r.Message)
		default:
			res.Info = append(res.Info, r.Message)
		}
	}

	for _, cv := range v.customs {
		res.RulesChecked++
		if ok, msg := cv(snap); !ok {
			res.Warnings = append(res.Warnings, msg)
		}
	}

	res.Duration = time.Since(start)
	return res
}
