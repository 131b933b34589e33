package model

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so errors match the wire and snapshot formats.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	v.RegisterValidation("utf8", func(fl validator.FieldLevel) bool {
		return utf8.ValidString(fl.Field().String())
	})
	return v
}

// Storable timestamps are those that fit in int64 nanoseconds since the
// Unix epoch, roughly the years 1678 to 2262.
var (
	MinTime = time.Unix(0, math.MinInt64).UTC()
	MaxTime = time.Unix(0, math.MaxInt64).UTC()
)

// ValidateTime rejects a non-zero t outside [MinTime, MaxTime]. The zero
// time is accepted; storage replaces it with the creation instant.
func ValidateTime(field string, t time.Time) error {
	if t.IsZero() {
		return nil
	}
	if t.Before(MinTime) || t.After(MaxTime) {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be between %s and %s, got %s",
			MinTime.Format(time.RFC3339), MaxTime.Format(time.RFC3339), t.UTC().Format(time.RFC3339Nano))}
	}
	return nil
}

// ValidateNode checks the node invariants. The id and timestamp are not
// required; storage assigns them.
func ValidateNode(n Node) error {
	if err := validate.Struct(n); err != nil {
		return translate(err)
	}
	for _, k := range slices.Sorted(maps.Keys(n.Signals)) {
		if !utf8.ValidString(k) || !utf8.ValidString(n.Signals[k]) {
			return &ValidationError{Field: "signals", Reason: fmt.Sprintf("signal %q must be valid UTF-8", k)}
		}
	}
	return ValidateTime("created_at", n.CreatedAt)
}

// ValidateEdge checks the edge invariants.
func ValidateEdge(e Edge) error {
	if err := validate.Struct(e); err != nil {
		return translate(err)
	}
	if math.IsInf(e.Weight, 0) {
		return &ValidationError{Field: "weight", Reason: "must be finite"}
	}
	return ValidateTime("created_at", e.CreatedAt)
}

// ValidateConfidence checks a standalone confidence value.
func ValidateConfidence(score float64) error {
	if err := validate.Var(score, "gte=0,lte=1"); err != nil {
		return &ValidationError{Field: "confidence_score", Reason: fmt.Sprintf("must be between 0.0 and 1.0, got %v", score)}
	}
	return nil
}

// translate turns the first validator failure into a *ValidationError.
func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Field: "?", Reason: err.Error()}
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "utf8":
		return "must be valid UTF-8"
	case "gte":
		if fe.Field() == "confidence_score" {
			return fmt.Sprintf("must be between 0.0 and 1.0, got %v", fe.Value())
		}
		return fmt.Sprintf("must be >= %s, got %v", fe.Param(), fe.Value())
	case "lte":
		if fe.Field() == "confidence_score" {
			return fmt.Sprintf("must be between 0.0 and 1.0, got %v", fe.Value())
		}
		return fmt.Sprintf("must be <= %s, got %v", fe.Param(), fe.Value())
	default:
		return "is invalid"
	}
}
