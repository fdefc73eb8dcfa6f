// Package validate provides struct-tag validation for request payloads.
//
// Rules (comma-separated in the `validate` tag):
//
//	required      non-blank string, non-empty slice/map, non-nil pointer, non-zero number
//	nullable      skip the remaining rules when the value is empty
//	min=N         string: min rune length | slice: min length | number: min value
//	max=N         string: max rune length | slice: max length | number: max value
//	gte=N, lte=N  numeric bounds
//	in=a|b|c      string must be one of the listed values
//	url           absolute http(s) URL
//	phone         digits with optional +, spaces, dashes and parentheses
//
// Nested structs and slices of structs are validated recursively; errors are
// keyed by their JSON path, e.g. "customer.name" or "items.1.price".
//
//	type Item struct {
//	    Price float64 `json:"price" validate:"gte=0"`
//	}
//	type Input struct {
//	    Items []Item `json:"items" validate:"required,min=1"`
//	}
package validate

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var phoneRE = regexp.MustCompile(`^\+?[0-9 ()\-]{1,32}$`)

// Struct validates v and returns a map of JSON path → message. An empty map
// means v is valid.
func Struct(v interface{}) map[string]string {
	errs := make(map[string]string)
	walk(reflect.ValueOf(v), "", errs)
	return errs
}

// HasErrors reports whether errs is non-empty.
func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

func walk(rv reflect.Value, prefix string, errs map[string]string) {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		value := rv.Field(i)
		name := prefix + jsonFieldName(field)

		if tag := field.Tag.Get("validate"); tag != "" {
			if !checkField(tag, name, value, errs) {
				continue
			}
		}

		descend(value, name, errs)
	}
}

// checkField applies tag rules and reports whether validation should descend
// into the value's children.
func checkField(tag, name string, value reflect.Value, errs map[string]string) bool {
	rules := strings.Split(tag, ",")
	if hasRule(rules, "nullable") && isEmpty(value) {
		return false
	}
	for _, rule := range rules {
		if rule == "nullable" || rule == "" {
			continue
		}
		if msg := applyRule(rule, name, value); msg != "" {
			errs[name] = msg
			return false
		}
	}
	return true
}

func descend(value reflect.Value, name string, errs map[string]string) {
	inner := value
	for inner.Kind() == reflect.Ptr {
		if inner.IsNil() {
			return
		}
		inner = inner.Elem()
	}

	switch inner.Kind() {
	case reflect.Struct:
		walk(inner, name+".", errs)
	case reflect.Slice, reflect.Array:
		for j := 0; j < inner.Len(); j++ {
			walk(inner.Index(j), fmt.Sprintf("%s.%d.", name, j), errs)
		}
	}
}

func applyRule(rule, field string, v reflect.Value) string {
	key, param, _ := strings.Cut(rule, "=")

	switch key {
	case "required":
		if isEmpty(v) {
			return fmt.Sprintf("The %s field is required.", field)
		}

	case "min", "max":
		n, err := strconv.ParseFloat(param, 64)
		if err != nil {
			return fmt.Sprintf("Invalid %s rule on %s.", key, field)
		}
		size, unit := measure(v)
		if (key == "min" && size < n) || (key == "max" && size > n) {
			bound := "at least"
			if key == "max" {
				bound = "at most"
			}
			return strings.TrimSpace(fmt.Sprintf("The %s must be %s %s %s.", field, bound, param, unit))
		}

	case "gte", "lte":
		n, err := strconv.ParseFloat(param, 64)
		if err != nil || !isNumericKind(v) {
			return fmt.Sprintf("The %s field must be a number.", field)
		}
		f := toFloat(v)
		if key == "gte" && f < n {
			return fmt.Sprintf("The %s must be greater than or equal to %s.", field, param)
		}
		if key == "lte" && f > n {
			return fmt.Sprintf("The %s must be less than or equal to %s.", field, param)
		}

	case "in":
		raw := fmt.Sprintf("%v", v.Interface())
		for _, allowed := range strings.Split(param, "|") {
			if raw == allowed {
				return ""
			}
		}
		return fmt.Sprintf("The selected %s is invalid.", field)

	case "url":
		u, err := url.ParseRequestURI(fmt.Sprintf("%v", v.Interface()))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Sprintf("The %s must be a valid URL.", field)
		}

	case "phone":
		if !phoneRE.MatchString(strings.TrimSpace(fmt.Sprintf("%v", v.Interface()))) {
			return fmt.Sprintf("The %s must be a valid phone number.", field)
		}

	default:
		return fmt.Sprintf("Unknown validation rule %q on %s.", key, field)
	}

	return ""
}

func measure(v reflect.Value) (float64, string) {
	switch v.Kind() {
	case reflect.String:
		return float64(len([]rune(v.String()))), "characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return float64(v.Len()), "items"
	}
	if isNumericKind(v) {
		return toFloat(v), ""
	}
	return 0, ""
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return !v.Bool()
	}
	if isNumericKind(v) {
		return toFloat(v) == 0
	}
	return v.IsZero()
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

func hasRule(rules []string, name string) bool {
	for _, r := range rules {
		if r == name {
			return true
		}
	}
	return false
}

func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}
