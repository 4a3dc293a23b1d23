package internal

import (
	"reflect"
	"strings"

	"github.com/xcodebn/zoun"
)

// ValidateTagName is the struct tag read by the record validator; constraints are extracted from it.
const ValidateTagName = "validate"

// Temporal aliases registered on the record validator.
const (
	tagPast            = "past"
	tagFuture          = "future"
	tagPastOrPresent   = "pastorpresent"
	tagFutureOrPresent = "futureorpresent"
	tagPattern         = "pattern"
	tagNotBlank        = "notblank"
)

// extractConstraints maps the validate tag of a field onto the supported constraint kinds,
// returned in zoun.ConstraintKinds order. Or-ed rules and rules after dive are not interpreted.
func extractConstraints(sf reflect.StructField) []zoun.Constraint {
	tag := sf.Tag.Get(ValidateTagName)
	if tag == "" || tag == "-" {
		return nil
	}

	base := indirectType(sf.Type)
	lengthBased := false
	temporal := false
	switch base.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		lengthBased = true
	}
	switch base {
	case timeType, dateType, timestampType, timestamptzType:
		temporal = true
		lengthBased = false
	}

	found := make(map[zoun.ConstraintKind]map[string]string)
	add := func(kind zoun.ConstraintKind, params map[string]string) {
		existing, ok := found[kind]
		if !ok {
			found[kind] = params
			return
		}
		for k, v := range params {
			if existing == nil {
				existing = map[string]string{}
				found[kind] = existing
			}
			existing[k] = v
		}
	}

	required := false
	minimum := ""
	for _, rule := range splitRules(tag) {
		if rule == "dive" {
			break
		}
		if strings.Contains(rule, "|") {
			continue
		}
		name, param, _ := strings.Cut(rule, "=")
		param = unescapeParam(param)
		switch name {
		case "required":
			required = true
			add(zoun.ConstraintNotNull, nil)
		case tagNotBlank:
			add(zoun.ConstraintNotBlank, nil)
		case "email":
			add(zoun.ConstraintEmail, nil)
		case tagPattern:
			add(zoun.ConstraintPattern, map[string]string{"regexp": param})
		case tagPast:
			add(zoun.ConstraintPast, nil)
		case tagFuture:
			add(zoun.ConstraintFuture, nil)
		case tagPastOrPresent:
			add(zoun.ConstraintPastOrPresent, nil)
		case tagFutureOrPresent:
			add(zoun.ConstraintFutureOrPresent, nil)
		case "min", "max", "len":
			if lengthBased {
				switch name {
				case "min":
					minimum = param
					add(zoun.ConstraintSize, map[string]string{"min": param})
				case "max":
					add(zoun.ConstraintSize, map[string]string{"max": param})
				default:
					add(zoun.ConstraintSize, map[string]string{"min": param, "max": param})
				}
				continue
			}
			switch name {
			case "min":
				add(zoun.ConstraintMin, map[string]string{"value": param})
			case "max":
				add(zoun.ConstraintMax, map[string]string{"value": param})
			}
		case "gt", "gte", "lt", "lte":
			if temporal && param == "" {
				add(temporalKind(name), nil)
				continue
			}
			if param == "0" {
				add(signKind(name), nil)
				continue
			}
			switch name {
			case "gt", "gte":
				add(zoun.ConstraintMin, map[string]string{"value": param, "inclusive": boolParam(name == "gte")})
			default:
				add(zoun.ConstraintMax, map[string]string{"value": param, "inclusive": boolParam(name == "lte")})
			}
		}
	}

	if required && lengthBased && minimum != "" && minimum != "0" {
		add(zoun.ConstraintNotEmpty, nil)
	}

	if len(found) == 0 {
		return nil
	}
	constraints := make([]zoun.Constraint, 0, len(found))
	for _, kind := range zoun.ConstraintKinds {
		if params, ok := found[kind]; ok {
			constraints = append(constraints, zoun.Constraint{Kind: kind, Params: params})
		}
	}
	return constraints
}

// splitRules splits a validate tag on commas the way the validator does.
func splitRules(tag string) []string {
	var rules []string
	for _, rule := range strings.Split(tag, ",") {
		if rule = strings.TrimSpace(rule); rule != "" {
			rules = append(rules, rule)
		}
	}
	return rules
}

// unescapeParam restores the commas and pipes a rule parameter has to spell as 0x2C and 0x7C.
func unescapeParam(param string) string {
	return strings.NewReplacer("0x2C", ",", "0x7C", "|").Replace(param)
}

func temporalKind(rule string) zoun.ConstraintKind {
	switch rule {
	case "lt":
		return zoun.ConstraintPast
	case "lte":
		return zoun.ConstraintPastOrPresent
	case "gt":
		return zoun.ConstraintFuture
	default:
		return zoun.ConstraintFutureOrPresent
	}
}

func signKind(rule string) zoun.ConstraintKind {
	switch rule {
	case "gt":
		return zoun.ConstraintPositive
	case "gte":
		return zoun.ConstraintPositiveOrZero
	case "lt":
		return zoun.ConstraintNegative
	default:
		return zoun.ConstraintNegativeOrZero
	}
}

func boolParam(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
