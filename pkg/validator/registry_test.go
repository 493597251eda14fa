package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Email(t *testing.T) {
	r := GetRegistry()

	assert.NoError(t, r.Validate("email", "student@example.edu", nil))
	assert.Error(t, r.Validate("email", "not-an-email", nil))
	// Empty values pass; required-ness is the pipeline's job
	assert.NoError(t, r.Validate("email", "", nil))
}

func TestRegistry_Phone(t *testing.T) {
	r := GetRegistry()

	assert.NoError(t, r.Validate("phone", "+1 (555) 010-2345", nil))
	assert.Error(t, r.Validate("phone", "123", nil))
}

func TestRegistry_Date(t *testing.T) {
	r := GetRegistry()

	assert.NoError(t, r.Validate("date", "2026-01-15", nil))
	assert.Error(t, r.Validate("date", "01/15/2026", nil))
	assert.Error(t, r.Validate("date", "2026-02-30", nil))

	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	today := time.Now().Format("2006-01-02")

	assert.Error(t, r.Validate("date", yesterday, map[string]interface{}{"not_past": true}))
	assert.NoError(t, r.Validate("date", today, map[string]interface{}{"not_past": true}))
	assert.NoError(t, r.Validate("date", tomorrow, map[string]interface{}{"not_past": true}))
	assert.Error(t, r.Validate("date", tomorrow, map[string]interface{}{"not_future": true}))
}

func TestRegistry_Enum(t *testing.T) {
	r := GetRegistry()
	config := map[string]interface{}{"values": []string{"student", "clinical-preceptor"}}

	assert.NoError(t, r.Validate("enum", "student", config))
	assert.Error(t, r.Validate("enum", "pilot", config))
}

func TestRegistry_Length(t *testing.T) {
	r := GetRegistry()
	config := map[string]interface{}{"min": 2, "max": 5}

	assert.NoError(t, r.Validate("length", "abc", config))
	assert.Error(t, r.Validate("length", "a", config))
	assert.Error(t, r.Validate("length", "abcdef", config))
}

func TestRegistry_Accepted(t *testing.T) {
	r := GetRegistry()

	assert.NoError(t, r.Validate("accepted", true, nil))
	assert.Error(t, r.Validate("accepted", false, nil))
	assert.Error(t, r.Validate("accepted", "yes", nil))
}

func TestRegistry_UnknownValidator(t *testing.T) {
	r := GetRegistry()
	assert.Error(t, r.Validate("no-such-validator", "x", nil))
}

func TestRegistry_RejectsWrongType(t *testing.T) {
	r := GetRegistry()

	// Text validators must not pass numeric or boolean payloads
	for _, name := range []string{"email", "phone", "date", "enum", "length", "regex", "alphanumeric"} {
		assert.ErrorContains(t, r.Validate(name, float64(123), nil), "must be text", name)
		assert.ErrorContains(t, r.Validate(name, true, nil), "must be text", name)
	}

	assert.ErrorContains(t, r.Validate("range", "lots", map[string]interface{}{"min": 1.0}), "must be a number")

	// Nil still passes; required-ness is the pipeline's job
	assert.NoError(t, r.Validate("email", nil, nil))
	assert.NoError(t, r.Validate("range", nil, nil))
}
