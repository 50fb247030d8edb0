package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCronScheduleAccepts(t *testing.T) {
	schedules := []string{
		"0 0 * * *",
		"30 5 * * *",
		"0 */6 * * *",
		"30 9 * * 1-5",
		"*/5 * * * *",
		"15,45 */2 * * 1,3,5",
		"@every 5m",
		"@daily",
	}

	for _, schedule := range schedules {
		assert.NoError(t, ValidateCronSchedule(schedule), schedule)
	}
}

func TestValidateCronScheduleRejects(t *testing.T) {
	schedules := []string{
		"",
		"0 0",
		"0 0 * * * * *",
		"60 0 * * *",
		"0 24 * * *",
		"invalid format",
		"@every",
	}

	for _, schedule := range schedules {
		err := ValidateCronSchedule(schedule)
		assert.Error(t, err, schedule)
		assert.Contains(t, err.Error(), "invalid cron schedule", schedule)
	}
}

func TestValidateCronScheduleErrorNamesValue(t *testing.T) {
	err := ValidateCronSchedule("invalid")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron schedule 'invalid'")
}

func TestValidateIntRange(t *testing.T) {
	assert.NoError(t, ValidateIntRange(1, 1, 10))
	assert.NoError(t, ValidateIntRange(10, 1, 10))
	assert.NoError(t, ValidateIntRange(5, 5, 5))
	assert.NoError(t, ValidateIntRange(0, -10, 10))

	err := ValidateIntRange(0, 1, 10)
	assert.ErrorContains(t, err, "below minimum")

	err = ValidateIntRange(11, 1, 10)
	assert.ErrorContains(t, err, "exceeds maximum")

	err = ValidateIntRange(5, 10, 1)
	assert.ErrorContains(t, err, "invalid range")
}

func TestValidatePositiveDuration(t *testing.T) {
	assert.NoError(t, ValidatePositiveDuration(time.Nanosecond))
	assert.NoError(t, ValidatePositiveDuration(30*time.Minute))
	assert.NoError(t, ValidatePositiveDuration(1000*time.Hour))

	err := ValidatePositiveDuration(0)
	assert.ErrorContains(t, err, "must be positive")
	assert.ErrorContains(t, err, "0s")

	err = ValidatePositiveDuration(-30 * time.Minute)
	assert.ErrorContains(t, err, "must be positive")
	assert.ErrorContains(t, err, "-30m")
}
