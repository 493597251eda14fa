// Package validator provides a pluggable validator registry for step field validation
package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ValidatorFunc is the signature for validator functions.
// Takes a value and optional configuration, returns an error if validation fails.
// Empty values pass; required-ness is checked separately by the pipeline.
type ValidatorFunc func(value interface{}, config map[string]interface{}) error

// Registry holds registered validators
type Registry struct {
	validators map[string]ValidatorFunc
	mu         sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// GetRegistry returns the singleton validator registry
func GetRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = &Registry{
			validators: make(map[string]ValidatorFunc),
		}
		defaultRegistry.registerBuiltins()
	})
	return defaultRegistry
}

// Register adds a validator to the registry
func (r *Registry) Register(name string, fn ValidatorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[name] = fn
}

// Get returns a validator by name
func (r *Registry) Get(name string) (ValidatorFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.validators[name]
	return fn, ok
}

// Validate runs a named validator
func (r *Registry) Validate(name string, value interface{}, config map[string]interface{}) error {
	fn, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("validator '%s' not found", name)
	}
	return fn(value, config)
}

// List returns all registered validator names
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.validators))
	for name := range r.validators {
		names = append(names, name)
	}
	return names
}

// dateLayout matches constants.DateLayout; duplicated here to keep the
// package free of internal imports.
const dateLayout = "2006-01-02"

// errMustBeText rejects non-string input to the text validators. A numeric
// or boolean payload value must not satisfy a text-shaped rule.
var errMustBeText = fmt.Errorf("must be text")

// asText unwraps the value for the text validators. Nil passes (required-ness
// is the pipeline's job); any other non-string type is a validation failure.
func asText(value interface{}) (string, error) {
	if value == nil {
		return "", nil
	}
	str, ok := value.(string)
	if !ok {
		return "", errMustBeText
	}
	return str, nil
}

// registerBuiltins registers all built-in validators
func (r *Registry) registerBuiltins() {
	// Email validator
	r.Register("email", func(value interface{}, config map[string]interface{}) error {
		str, err := asText(value)
		if err != nil {
			return err
		}
		if str == "" {
			return nil
		}
		if _, err := mail.ParseAddress(str); err != nil {
			return fmt.Errorf("invalid email format")
		}
		return nil
	})

	// Phone validator (basic)
	r.Register("phone", func(value interface{}, config map[string]interface{}) error {
		str, err := asText(value)
		if err != nil {
			return err
		}
		if str == "" {
			return nil
		}
		cleaned := regexp.MustCompile(`[^\d]`).ReplaceAllString(str, "")
		if len(cleaned) < 7 || len(cleaned) > 15 {
			return fmt.Errorf("phone number must have 7-15 digits")
		}
		return nil
	})

	// Date validator. Config:
	//   "not_past": true   — date must be today or later
	//   "not_future": true — date must be today or earlier
	r.Register("date", func(value interface{}, config map[string]interface{}) error {
		str, terr := asText(value)
		if terr != nil {
			return terr
		}
		if str == "" {
			return nil
		}
		d, err := time.Parse(dateLayout, str)
		if err != nil {
			return fmt.Errorf("must be a valid date in YYYY-MM-DD format")
		}
		today, _ := time.Parse(dateLayout, time.Now().Format(dateLayout))
		if notPast, _ := config["not_past"].(bool); notPast && d.Before(today) {
			return fmt.Errorf("date must not be in the past")
		}
		if notFuture, _ := config["not_future"].(bool); notFuture && d.After(today) {
			return fmt.Errorf("date must not be in the future")
		}
		return nil
	})

	// Enum validator. Config: "values": []string allowed values.
	r.Register("enum", func(value interface{}, config map[string]interface{}) error {
		str, err := asText(value)
		if err != nil {
			return err
		}
		if str == "" {
			return nil
		}
		values, _ := config["values"].([]string)
		for _, v := range values {
			if v == str {
				return nil
			}
		}
		return fmt.Errorf("must be one of: %s", strings.Join(values, ", "))
	})

	// Length validator
	r.Register("length", func(value interface{}, config map[string]interface{}) error {
		str, err := asText(value)
		if err != nil {
			return err
		}
		length := len(str)
		if min, ok := toInt(config["min"]); ok && length < min {
			return fmt.Errorf("must be at least %d characters", min)
		}
		if max, ok := toInt(config["max"]); ok && length > max {
			return fmt.Errorf("must be at most %d characters", max)
		}
		return nil
	})

	// Numeric range validator
	r.Register("range", func(value interface{}, config map[string]interface{}) error {
		var num float64
		switch v := value.(type) {
		case float64:
			num = v
		case int:
			num = float64(v)
		case int64:
			num = float64(v)
		case nil:
			return nil
		default:
			return fmt.Errorf("must be a number")
		}
		if min, ok := config["min"].(float64); ok && num < min {
			return fmt.Errorf("must be at least %.0f", min)
		}
		if max, ok := config["max"].(float64); ok && num > max {
			return fmt.Errorf("must be at most %.0f", max)
		}
		return nil
	})

	// Regex validator
	r.Register("regex", func(value interface{}, config map[string]interface{}) error {
		str, terr := asText(value)
		if terr != nil {
			return terr
		}
		if str == "" {
			return nil
		}
		pattern, _ := config["pattern"].(string)
		if pattern == "" {
			return nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %v", err)
		}
		if !re.MatchString(str) {
			if msg, ok := config["message"].(string); ok && msg != "" {
				return fmt.Errorf("%s", msg)
			}
			return fmt.Errorf("value does not match required pattern")
		}
		return nil
	})

	// Alphanumeric validator (license numbers, accreditation ids)
	r.Register("alphanumeric", func(value interface{}, config map[string]interface{}) error {
		str, err := asText(value)
		if err != nil {
			return err
		}
		if str == "" {
			return nil
		}
		matched, _ := regexp.MatchString(`^[a-zA-Z0-9-]+$`, str)
		if !matched {
			return fmt.Errorf("must contain only letters, numbers, and dashes")
		}
		return nil
	})

	// Accepted validator: value must be boolean true (consent checkboxes)
	r.Register("accepted", func(value interface{}, config map[string]interface{}) error {
		if value == nil {
			return nil
		}
		if b, ok := value.(bool); ok && b {
			return nil
		}
		return fmt.Errorf("must be accepted")
	})
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	}
	return 0, false
}
