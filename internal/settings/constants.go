package settings

// DB config keys and defaults for settings.
const (
	// DefaultDailyLimitKey is the quota given to users created without one.
	DefaultDailyLimitKey = "DEFAULT_DAILY_LIMIT"
	// MaxAllocationKey caps the amount a single allocation may request.
	MaxAllocationKey = "MAX_ALLOCATION"
	// UsageLogsRetentionDaysKey controls how long usage logs are kept. 0 keeps forever.
	UsageLogsRetentionDaysKey = "USAGE_LOGS_RETENTION_DAYS"

	// DefaultDailyLimit is the fallback quota for new users.
	DefaultDailyLimit = 500
	// DefaultMaxAllocation is the fallback per-request allocation cap.
	DefaultMaxAllocation = 100
	// DefaultUsageLogsRetentionDays keeps usage logs forever.
	DefaultUsageLogsRetentionDays = 0
)

// Keys lists the settings accepted by the admin settings API.
var Keys = []string{DefaultDailyLimitKey, MaxAllocationKey, UsageLogsRetentionDaysKey}

// defaultValues maps each key to its fallback.
var defaultValues = map[string]int{
	DefaultDailyLimitKey:      DefaultDailyLimit,
	MaxAllocationKey:          DefaultMaxAllocation,
	UsageLogsRetentionDaysKey: DefaultUsageLogsRetentionDays,
}

// IsKnownKey reports whether key is an accepted setting.
func IsKnownKey(key string) bool {
	_, ok := defaultValues[key]
	return ok
}
