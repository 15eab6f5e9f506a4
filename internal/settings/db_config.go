package settings

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// dbConfigSnapshot holds the in-memory DB config values.
type dbConfigSnapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

// globalDBConfig stores the latest dbConfigSnapshot atomically.
var globalDBConfig atomic.Value // stores dbConfigSnapshot

// init seeds the global DB config snapshot.
func init() {
	globalDBConfig.Store(dbConfigSnapshot{values: map[string]json.RawMessage{}})
}

// StoreDBConfig replaces the in-memory snapshot of DB-backed settings.
func StoreDBConfig(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		if v == nil {
			next[key] = nil
			continue
		}
		copied := make([]byte, len(v))
		copy(copied, v)
		next[key] = copied
	}

	globalDBConfig.Store(dbConfigSnapshot{
		updatedAt: updatedAt.UTC(),
		values:    next,
	})
}

// DBConfigUpdatedAt returns the last update timestamp for DB config.
func DBConfigUpdatedAt() time.Time {
	return loadDBConfig().updatedAt
}

// DBConfigValue returns a copy of the raw config value for a key.
func DBConfigValue(key string) (json.RawMessage, bool) {
	cfg := loadDBConfig()
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	val, ok := cfg.values[key]
	if !ok {
		return nil, false
	}
	if val == nil {
		return nil, true
	}
	copied := make([]byte, len(val))
	copy(copied, val)
	return copied, true
}

// DBConfigFloat reads a numeric config value. JSON numbers and numeric
// strings are both accepted; anything else reports false so callers can
// fall back to their defaults.
func DBConfigFloat(key string) (float64, bool) {
	raw, ok := DBConfigValue(key)
	if !ok || len(raw) == 0 {
		return 0, false
	}

	var asNumber float64
	if errNumber := json.Unmarshal(raw, &asNumber); errNumber == nil {
		return asNumber, true
	}

	var asString string
	if errString := json.Unmarshal(raw, &asString); errString == nil {
		parsed, errParse := strconv.ParseFloat(strings.TrimSpace(asString), 64)
		if errParse != nil {
			return 0, false
		}
		return parsed, true
	}

	return 0, false
}

// DBConfigString reads a string config value, accepting bare JSON strings.
func DBConfigString(key string) (string, bool) {
	raw, ok := DBConfigValue(key)
	if !ok || len(raw) == 0 {
		return "", false
	}

	var asString string
	if errString := json.Unmarshal(raw, &asString); errString == nil {
		return asString, true
	}
	return strings.TrimSpace(string(raw)), true
}

// loadDBConfig returns the current snapshot with safe defaults.
func loadDBConfig() dbConfigSnapshot {
	v := globalDBConfig.Load()
	cfg, ok := v.(dbConfigSnapshot)
	if !ok {
		return dbConfigSnapshot{values: map[string]json.RawMessage{}}
	}
	if cfg.values == nil {
		return dbConfigSnapshot{updatedAt: cfg.updatedAt, values: map[string]json.RawMessage{}}
	}
	return cfg
}
