// Package estimate implements the adaptive duration estimator: feature
// normalization, an online linear regression model, and the confidence gate
// that decides whether a prediction is exposed to callers.
package estimate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Category identifies one of the fixed task categories.
type Category int

const (
	CategoryPersonalErrands Category = iota
	CategoryHealthAndFitness
	CategorySocial
	CategoryLearning
	CategoryHouseChore
	CategorySchoolWork
	CategoryWorkRelated
	CategoryOther

	// NumCategories is the size of the category one-hot block.
	NumCategories = 8
)

var categoryNames = [NumCategories]string{
	"Personal Errands",
	"Health and Fitness",
	"Social",
	"Learning",
	"House Chore",
	"School Work",
	"Work Related",
	"Other",
}

// Feature defaults applied when raw input cannot be parsed.
const (
	DefaultHourOfDay = 12
	DefaultDayOfWeek = 0
	DefaultSubtasks  = 1
)

var categoryFolder = cases.Fold()

var categoryIndex = func() map[string]Category {
	m := make(map[string]Category, NumCategories)
	for i, name := range categoryNames {
		m[categoryFolder.String(name)] = Category(i)
	}
	return m
}()

// String returns the display name of the category.
func (c Category) String() string {
	if c < 0 || int(c) >= NumCategories {
		return categoryNames[CategoryOther]
	}
	return categoryNames[c]
}

// Categories returns the display names of all categories in id order.
func Categories() []string {
	out := make([]string, NumCategories)
	copy(out, categoryNames[:])
	return out
}

// ParseCategory maps a category name (case-insensitive) or numeric id to a
// Category. Anything unrecognized maps to CategoryOther.
func ParseCategory(v any) Category {
	switch val := v.(type) {
	case Category:
		if val >= 0 && int(val) < NumCategories {
			return val
		}
		return CategoryOther
	case string:
		s := strings.TrimSpace(val)
		if c, ok := categoryIndex[categoryFolder.String(s)]; ok {
			return c
		}
		if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < NumCategories {
			return Category(n)
		}
		return CategoryOther
	default:
		if n, ok := toInt(v); ok && n >= 0 && n < NumCategories {
			return Category(n)
		}
		return CategoryOther
	}
}

// FeatureVector is the fixed-schema encoding of a task's context.
// Every field is always in range.
type FeatureVector struct {
	CategoryID        Category `json:"category_id" yaml:"category_id"`
	HourOfDay         int      `json:"hour_of_day" yaml:"hour_of_day"`
	DayOfWeek         int      `json:"day_of_week" yaml:"day_of_week"` // 0 = Monday
	EstimatedSubtasks int      `json:"estimated_subtasks" yaml:"estimated_subtasks"`
	IsVague           bool     `json:"is_vague" yaml:"is_vague"`
	HasDependencies   bool     `json:"has_dependencies" yaml:"has_dependencies"`
}

// Raw input keys understood by Normalize.
const (
	KeyCategory          = "category"
	KeyHourOfDay         = "hour_of_day"
	KeyDayOfWeek         = "day_of_week"
	KeyEstimatedSubtasks = "estimated_subtasks"
	KeyIsVague           = "is_vague"
	KeyHasDependencies   = "has_dependencies"
)

// Normalize converts loosely-typed input into a FeatureVector. It never
// fails: malformed or missing values are coerced to safe defaults.
func Normalize(raw map[string]any) FeatureVector {
	fv := FeatureVector{
		CategoryID:        ParseCategory(raw[KeyCategory]),
		HourOfDay:         DefaultHourOfDay,
		DayOfWeek:         DefaultDayOfWeek,
		EstimatedSubtasks: DefaultSubtasks,
		IsVague:           parseBool(raw[KeyIsVague]),
		HasDependencies:   parseBool(raw[KeyHasDependencies]),
	}
	if n, ok := toInt(raw[KeyHourOfDay]); ok {
		fv.HourOfDay = clampInt(n, 0, 23)
	}
	if n, ok := toInt(raw[KeyDayOfWeek]); ok {
		fv.DayOfWeek = clampInt(n, 0, 6)
	}
	if n, ok := toInt(raw[KeyEstimatedSubtasks]); ok && n >= 1 {
		fv.EstimatedSubtasks = n
	}
	return fv
}

// Sanitize re-applies the range invariants to a vector built by hand.
func (fv FeatureVector) Sanitize() FeatureVector {
	return Normalize(fv.Raw())
}

// Raw returns the vector in the loosely-typed form accepted by Normalize.
func (fv FeatureVector) Raw() map[string]any {
	return map[string]any{
		KeyCategory:          int(fv.CategoryID),
		KeyHourOfDay:         fv.HourOfDay,
		KeyDayOfWeek:         fv.DayOfWeek,
		KeyEstimatedSubtasks: fv.EstimatedSubtasks,
		KeyIsVague:           fv.IsVague,
		KeyHasDependencies:   fv.HasDependencies,
	}
}

// numFeatures is the width of the design matrix: the category one-hot block
// followed by hour, day, subtasks, vague, dependencies.
const numFeatures = NumCategories + 5

func (fv FeatureVector) encode() []float64 {
	x := make([]float64, numFeatures)
	x[int(fv.CategoryID)] = 1
	x[NumCategories] = float64(fv.HourOfDay)
	x[NumCategories+1] = float64(fv.DayOfWeek)
	x[NumCategories+2] = float64(fv.EstimatedSubtasks)
	if fv.IsVague {
		x[NumCategories+3] = 1
	}
	if fv.HasDependencies {
		x[NumCategories+4] = 1
	}
	return x
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case int:
		return val, true
	case int8:
		return int(val), true
	case int16:
		return int(val), true
	case int32:
		return int(val), true
	case int64:
		return int(val), true
	case uint:
		return int(val), true
	case uint8:
		return int(val), true
	case uint16:
		return int(val), true
	case uint32:
		return int(val), true
	case uint64:
		return int(val), true
	case float32:
		return floatToInt(float64(val))
	case float64:
		return floatToInt(val)
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return int(n), true
		}
		if f, err := val.Float64(); err == nil {
			return floatToInt(f)
		}
		return 0, false
	case string:
		s := strings.TrimSpace(val)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt(f)
		}
		return 0, false
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// Keep far-out values representable; callers clamp afterwards.
	if f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if f < math.MinInt32 {
		return math.MinInt32, true
	}
	return int(f), true
}

func parseBool(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "true", "yes", "y":
			return true
		}
		return false
	case float32:
		return val != 0 && !math.IsNaN(float64(val))
	case float64:
		return val != 0 && !math.IsNaN(val)
	case json.Number:
		f, err := val.Float64()
		return err == nil && f != 0 && !math.IsNaN(f)
	default:
		n, ok := toInt(v)
		return ok && n != 0
	}
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
