package handler

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// errMalformedNumber marks a query parameter that is present but not a number.
var errMalformedNumber = errors.New("malformed number")

// queryFloat parses an optional float query parameter. Absent parameters are nil.
func queryFloat(q url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, errMalformedNumber)
	}
	return &v, nil
}

// queryFloats parses several optional float parameters, stopping at the first bad one.
func queryFloats(q url.Values, names ...string) ([]*float64, string, bool) {
	out := make([]*float64, len(names))
	for i, name := range names {
		v, err := queryFloat(q, name)
		if err != nil {
			return nil, name + " must be a number", false
		}
		out[i] = v
	}
	return out, "", true
}

// validationMessage turns the first validation failure into a caller-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}

	fe := verrs[0]
	name := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "latitude":
		return name + " must be between -90 and 90"
	case "longitude":
		return name + " must be between -180 and 180"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return name + " is invalid"
	}
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
