// Package validate provides struct-tag validation for request and payment
// input.
//
// Supported rules (comma-separated in the `validate` tag):
//
//	required            field must not be zero/empty (whitespace counts as empty)
//	nullable            if empty, skip all remaining rules for this field
//	email               valid email address
//	integer             whole number
//	digits              digits only
//	card_number         13 to 19 digits once spaces are removed
//	min=N               string: min char length | number: min value
//	max=N               string: max char length | number: max value
//	gt=N                number > N
//	between=min,max     number or string length between min and max (inclusive)
//	in=a,b,c            value must be one of the listed items
//
// Rules run in tag order and stop at the first failure of each field.
// Fields are checked in declaration order, which is what First reports.
//
//	type CardDetails struct {
//	    Number string `json:"cardNumber"  validate:"required,card_number"`
//	    Month  string `json:"expiryMonth" validate:"required,integer,between=1,12"`
//	}
package validate

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// FieldError is one failed field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string { return e.Message }

// Struct validates all exported fields of v that carry a `validate` tag.
// Returns a map of fieldName → error message; empty map means no errors.
func Struct(v interface{}) map[string]string {
	errs := make(map[string]string)
	for _, fe := range check(v, false) {
		errs[fe.Field] = fe.Message
	}
	return errs
}

// First returns the first failing field in declaration order, or nil.
func First(v interface{}) *FieldError {
	if errs := check(v, true); len(errs) > 0 {
		return &errs[0]
	}
	return nil
}

// HasErrors returns true when the errs map is non-empty.
func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

func check(v interface{}, stopAtFirst bool) []FieldError {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	rt := rv.Type()

	var out []FieldError
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" || !field.IsExported() {
			continue
		}
		value := rv.Field(i)
		name := jsonFieldName(field)
		rules := splitRules(tag)

		if hasRule(rules, "nullable") && isEmpty(value) {
			continue
		}
		for _, rule := range rules {
			if rule == "nullable" {
				continue
			}
			if msg := applyRule(rule, name, value); msg != "" {
				out = append(out, FieldError{Field: name, Message: msg})
				if stopAtFirst {
					return out
				}
				break
			}
		}
	}
	return out
}

func applyRule(rule, field string, v reflect.Value) string {
	raw := strings.TrimSpace(fmt.Sprintf("%v", v.Interface()))
	key, param, _ := strings.Cut(rule, "=")

	switch key {
	case "required":
		if isEmpty(v) {
			return fmt.Sprintf("The %s field is required.", field)
		}
	case "email":
		if !emailRE.MatchString(raw) {
			return fmt.Sprintf("The %s must be a valid email address.", field)
		}
	case "integer":
		if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
			return fmt.Sprintf("The %s field must be an integer.", field)
		}
	case "digits":
		if raw == "" || strings.IndexFunc(raw, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
			return fmt.Sprintf("The %s must contain only digits.", field)
		}
	case "card_number":
		n := strings.ReplaceAll(raw, " ", "")
		if len(n) < 13 || len(n) > 19 || strings.IndexFunc(n, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
			return fmt.Sprintf("The %s is not a valid card number.", field)
		}
	case "min":
		n := mustParseFloat(param)
		if isNumericKind(v) {
			if toFloat(v) < n {
				return fmt.Sprintf("The %s must be at least %s.", field, param)
			}
		} else if float64(len([]rune(raw))) < n {
			return fmt.Sprintf("The %s must be at least %s characters.", field, param)
		}
	case "max":
		n := mustParseFloat(param)
		if isNumericKind(v) {
			if toFloat(v) > n {
				return fmt.Sprintf("The %s must not be greater than %s.", field, param)
			}
		} else if float64(len([]rune(raw))) > n {
			return fmt.Sprintf("The %s must not be greater than %s characters.", field, param)
		}
	case "gt":
		if numberOf(v, raw) <= mustParseFloat(param) {
			return fmt.Sprintf("The %s must be greater than %s.", field, param)
		}
	case "between":
		lo, hi, _ := strings.Cut(param, ",")
		min, max := mustParseFloat(lo), mustParseFloat(hi)
		if isNumericKind(v) {
			if f := toFloat(v); f < min || f > max {
				return fmt.Sprintf("The %s must be between %s and %s.", field, lo, hi)
			}
		} else if f, err := strconv.ParseFloat(raw, 64); err == nil {
			if f < min || f > max {
				return fmt.Sprintf("The %s must be between %s and %s.", field, lo, hi)
			}
		} else if l := float64(len([]rune(raw))); l < min || l > max {
			return fmt.Sprintf("The %s must be between %s and %s characters.", field, lo, hi)
		}
	case "in":
		for _, opt := range strings.Split(param, ",") {
			if raw == strings.TrimSpace(opt) {
				return ""
			}
		}
		return fmt.Sprintf("The selected %s is invalid.", field)
	}
	return ""
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}

func isNumericKind(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}
	return 0
}

// numberOf also accepts types that print as a number, such as decimal.Decimal.
func numberOf(v reflect.Value, raw string) float64 {
	if isNumericKind(v) {
		return toFloat(v)
	}
	return mustParseFloat(raw)
}

func mustParseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func jsonFieldName(f reflect.StructField) string {
	name := f.Tag.Get("json")
	if name == "" || name == "-" {
		return strings.ToLower(f.Name)
	}
	if idx := strings.Index(name, ","); idx != -1 {
		name = name[:idx]
	}
	return name
}

// splitRules splits the validate tag by comma while keeping multi-value
// rule parameters (in=, between=) intact.
// e.g. "required,in=a,b,c,max=100" → ["required","in=a,b,c","max=100"]
func splitRules(tag string) []string {
	var rules []string
	var current strings.Builder
	inParam := false

	for i := 0; i < len(tag); i++ {
		ch := tag[i]
		if ch != ',' {
			current.WriteByte(ch)
			if !inParam {
				s := current.String()
				inParam = s == "in=" || s == "between="
			}
			continue
		}
		if inParam && !looksLikeNewRule(tag[i+1:]) {
			current.WriteByte(ch)
			continue
		}
		rules = append(rules, current.String())
		current.Reset()
		inParam = false
	}
	if current.Len() > 0 {
		rules = append(rules, current.String())
	}
	return rules
}

var known = []string{
	"required", "nullable", "email", "integer", "digits", "card_number",
	"min=", "max=", "gt=", "between=", "in=",
}

func looksLikeNewRule(s string) bool {
	for _, k := range known {
		if strings.HasPrefix(s, k) {
			return true
		}
	}
	return false
}

func hasRule(rules []string, target string) bool {
	for _, r := range rules {
		if strings.TrimSpace(r) == target {
			return true
		}
	}
	return false
}
