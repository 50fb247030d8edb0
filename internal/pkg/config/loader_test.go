package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadEnvString(t *testing.T) {
	t.Setenv("TEST_STRING", "custom_value")
	assert.Equal(t, "custom_value", LoadEnvString("TEST_STRING", "default_value"))

	t.Setenv("TEST_STRING", "")
	assert.Equal(t, "default_value", LoadEnvString("TEST_STRING", "default_value"))
}

func TestLoadEnvWithFallbackValidValue(t *testing.T) {
	t.Setenv("TEST_SCHEDULE", "@every 1m")

	result := LoadEnvWithFallback("TEST_SCHEDULE", "@every 5m", ValidateCronSchedule)

	assert.Equal(t, "@every 1m", result.Value)
	assert.Empty(t, result.Warnings)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvWithFallbackUnsetUsesDefaultSilently(t *testing.T) {
	t.Setenv("TEST_SCHEDULE", "")

	result := LoadEnvWithFallback("TEST_SCHEDULE", "@every 5m", ValidateCronSchedule)

	assert.Equal(t, "@every 5m", result.Value)
	assert.Empty(t, result.Warnings)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvWithFallbackNoValidatorAcceptsAnything(t *testing.T) {
	t.Setenv("TEST_STRING", "any_value")

	result := LoadEnvWithFallback("TEST_STRING", "default", nil)

	assert.Equal(t, "any_value", result.Value)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvWithFallbackInvalidValue(t *testing.T) {
	t.Setenv("TEST_SCHEDULE", "invalid format")

	result := LoadEnvWithFallback("TEST_SCHEDULE", "@every 5m", ValidateCronSchedule)

	assert.Equal(t, "@every 5m", result.Value)
	assert.True(t, result.FallbackApplied)
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "Invalid TEST_SCHEDULE='invalid format'")
	assert.Contains(t, result.Warnings[0], "falling back to default '@every 5m'")
}

func TestLoadEnvDuration(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "1h30m45s")

	result := LoadEnvDuration("TEST_TIMEOUT", 30*time.Minute, ValidatePositiveDuration)

	assert.Equal(t, 1*time.Hour+30*time.Minute+45*time.Second, result.Value)
	assert.Empty(t, result.Warnings)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvDurationUnset(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "")

	result := LoadEnvDuration("TEST_TIMEOUT", 30*time.Minute, ValidatePositiveDuration)

	assert.Equal(t, 30*time.Minute, result.Value)
	assert.Empty(t, result.Warnings)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvDurationUnparsable(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "not-a-duration")

	result := LoadEnvDuration("TEST_TIMEOUT", 30*time.Minute, ValidatePositiveDuration)

	assert.Equal(t, 30*time.Minute, result.Value)
	assert.True(t, result.FallbackApplied)
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "Invalid TEST_TIMEOUT='not-a-duration'")
	assert.Contains(t, result.Warnings[0], "falling back to default '30m0s'")
}

func TestLoadEnvDurationRejectedByValidator(t *testing.T) {
	for _, value := range []string{"-30m", "0s"} {
		t.Setenv("TEST_TIMEOUT", value)

		result := LoadEnvDuration("TEST_TIMEOUT", 30*time.Minute, ValidatePositiveDuration)

		assert.Equal(t, 30*time.Minute, result.Value, value)
		assert.True(t, result.FallbackApplied, value)
		assert.NotEmpty(t, result.Warnings, value)
	}
}

func TestLoadEnvInt(t *testing.T) {
	t.Setenv("TEST_PORT", "8080")

	result := LoadEnvInt("TEST_PORT", 9090, func(v int) error {
		return ValidateIntRange(v, 1024, 65535)
	})

	assert.Equal(t, 8080, result.Value)
	assert.Empty(t, result.Warnings)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvIntUnset(t *testing.T) {
	t.Setenv("TEST_PORT", "")

	result := LoadEnvInt("TEST_PORT", 9090, nil)

	assert.Equal(t, 9090, result.Value)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvIntUnparsable(t *testing.T) {
	t.Setenv("TEST_PORT", "not-a-number")

	result := LoadEnvInt("TEST_PORT", 9090, nil)

	assert.Equal(t, 9090, result.Value)
	assert.True(t, result.FallbackApplied)
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "invalid integer format")
	assert.Contains(t, result.Warnings[0], "falling back to default '9090'")
}

func TestLoadEnvIntOutOfRange(t *testing.T) {
	validator := func(v int) error {
		return ValidateIntRange(v, 1024, 65535)
	}

	t.Setenv("TEST_PORT", "100")
	result := LoadEnvInt("TEST_PORT", 9090, validator)
	assert.Equal(t, 9090, result.Value)
	assert.True(t, result.FallbackApplied)
	assert.Contains(t, result.Warnings[0], "below minimum")

	t.Setenv("TEST_PORT", "70000")
	result = LoadEnvInt("TEST_PORT", 9090, validator)
	assert.Equal(t, 9090, result.Value)
	assert.True(t, result.FallbackApplied)
	assert.Contains(t, result.Warnings[0], "exceeds maximum")
}

func TestLoadEnvIntSscanfQuirks(t *testing.T) {
	// Sscanf stops at the first non-digit, so "10.5" reads as 10 and
	// surrounding whitespace is skipped. Documented so a change in the
	// parsing approach shows up here.
	t.Setenv("TEST_COUNT", "10.5")
	result := LoadEnvInt("TEST_COUNT", 100, nil)
	assert.Equal(t, 10, result.Value)
	assert.False(t, result.FallbackApplied)

	t.Setenv("TEST_COUNT", " 42 ")
	result = LoadEnvInt("TEST_COUNT", 10, nil)
	assert.Equal(t, 42, result.Value)
	assert.False(t, result.FallbackApplied)

	t.Setenv("TEST_COUNT", "-5")
	result = LoadEnvInt("TEST_COUNT", 3, nil)
	assert.Equal(t, -5, result.Value)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvBoolSpellings(t *testing.T) {
	for _, value := range []string{"1", "t", "T", "true", "TRUE", "True"} {
		t.Setenv("TEST_BOOL", value)
		result := LoadEnvBool("TEST_BOOL", false)
		assert.Equal(t, true, result.Value, value)
		assert.False(t, result.FallbackApplied, value)
	}

	for _, value := range []string{"0", "f", "F", "false", "FALSE", "False"} {
		t.Setenv("TEST_BOOL", value)
		result := LoadEnvBool("TEST_BOOL", true)
		assert.Equal(t, false, result.Value, value)
		assert.False(t, result.FallbackApplied, value)
	}
}

func TestLoadEnvBoolUnset(t *testing.T) {
	t.Setenv("TEST_BOOL", "")

	result := LoadEnvBool("TEST_BOOL", true)

	assert.Equal(t, true, result.Value)
	assert.Empty(t, result.Warnings)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvBoolInvalidSpellings(t *testing.T) {
	for _, value := range []string{"yes", "no", "on", "off", "2", "invalid"} {
		t.Setenv("TEST_BOOL", value)

		result := LoadEnvBool("TEST_BOOL", true)

		assert.Equal(t, true, result.Value, value)
		assert.True(t, result.FallbackApplied, value)
		assert.Len(t, result.Warnings, 1, value)
		assert.Contains(t, result.Warnings[0], "invalid boolean format", value)
	}
}

func TestLoadEnvWithFallbackCronExpressions(t *testing.T) {
	schedules := []string{
		"0 0 1 1 *",
		"0 0 * * 0",
		"*/5 * * * *",
		"0 9 * * 1-5",
		"@hourly",
		"@every 30s",
	}

	for _, schedule := range schedules {
		t.Setenv("TEST_SCHEDULE", schedule)

		result := LoadEnvWithFallback("TEST_SCHEDULE", "@every 5m", ValidateCronSchedule)

		assert.Equal(t, schedule, result.Value, schedule)
		assert.False(t, result.FallbackApplied, schedule)
	}
}

func TestMultipleFallbacksAccumulate(t *testing.T) {
	t.Setenv("KEEPER_WATCHDOG_SCHEDULE", "invalid")
	t.Setenv("KEEPER_NAV_TIMEOUT", "-5m")
	t.Setenv("KEEPER_MEMORY_CEILING_MB", "64")

	var warnings []string
	fallbacks := 0

	schedule := LoadEnvWithFallback("KEEPER_WATCHDOG_SCHEDULE", "@every 5m", ValidateCronSchedule)
	if schedule.FallbackApplied {
		fallbacks++
		warnings = append(warnings, schedule.Warnings...)
	}

	timeout := LoadEnvDuration("KEEPER_NAV_TIMEOUT", 60*time.Second, ValidatePositiveDuration)
	if timeout.FallbackApplied {
		fallbacks++
		warnings = append(warnings, timeout.Warnings...)
	}

	ceiling := LoadEnvInt("KEEPER_MEMORY_CEILING_MB", 1024, func(v int) error {
		return ValidateIntRange(v, 128, 16384)
	})
	if ceiling.FallbackApplied {
		fallbacks++
		warnings = append(warnings, ceiling.Warnings...)
	}

	assert.Equal(t, 3, fallbacks)
	assert.Len(t, warnings, 3)
	assert.Equal(t, "@every 5m", schedule.Value)
	assert.Equal(t, 60*time.Second, timeout.Value)
	assert.Equal(t, 1024, ceiling.Value)
}
