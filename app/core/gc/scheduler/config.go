// Package scheduler decides when to trigger a collection — based on
// allocation pressure, a repeating timer, or unconditionally — and
// autotunes the target heap size from each cycle's alive-set size.
package scheduler

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/Masterminds/semver/v3"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigSchemaVersion is the schema version this binary understands. A
// loaded config file declaring an incompatible version is rejected
// rather than silently misinterpreted.
const ConfigSchemaVersion = "1.0.0"

// configSchemaConstraint accepts any 1.x schema — additive fields within
// a major version are expected to be forward-compatible.
var configSchemaConstraint = semver.MustParse(ConfigSchemaVersion)

// Config holds every scheduler tunable as an atomic field, so it can be
// reconfigured live, from any goroutine, without additional locking.
type Config struct {
	SchemaVersion string

	threshold                      atomic.Int64
	threadAllocationThresholdBytes atomic.Int64
	autoTune                       atomic.Bool
	regularGcIntervalUs            atomic.Int64
	targetHeapBytes                atomic.Int64
	targetHeapUtilizationBits      atomic.Uint64 // math.Float64bits(utilization)
	minHeapBytes                   atomic.Int64
	maxHeapBytes                   atomic.Int64
}

// DefaultConfig returns a Config with conservative, general-purpose
// defaults.
func DefaultConfig() *Config {
	c := &Config{SchemaVersion: ConfigSchemaVersion}
	c.threshold.Store(10000)
	c.threadAllocationThresholdBytes.Store(1 << 20) // 1 MiB
	c.autoTune.Store(true)
	c.regularGcIntervalUs.Store(200_000) // 200ms
	c.targetHeapBytes.Store(64 << 20)    // 64 MiB
	c.SetTargetHeapUtilization(0.5)
	c.minHeapBytes.Store(1 << 20)    // 1 MiB
	c.maxHeapBytes.Store(1 << 30)    // 1 GiB
	return c
}

func (c *Config) Threshold() int64        { return c.threshold.Load() }
func (c *Config) SetThreshold(v int64)    { c.threshold.Store(v) }

func (c *Config) ThreadAllocationThresholdBytes() int64     { return c.threadAllocationThresholdBytes.Load() }
func (c *Config) SetThreadAllocationThresholdBytes(v int64) { c.threadAllocationThresholdBytes.Store(v) }

func (c *Config) AutoTune() bool      { return c.autoTune.Load() }
func (c *Config) SetAutoTune(v bool)  { c.autoTune.Store(v) }

func (c *Config) RegularGcIntervalUs() int64     { return c.regularGcIntervalUs.Load() }
func (c *Config) SetRegularGcIntervalUs(v int64) { c.regularGcIntervalUs.Store(v) }

func (c *Config) TargetHeapBytes() int64     { return c.targetHeapBytes.Load() }
func (c *Config) SetTargetHeapBytes(v int64) { c.targetHeapBytes.Store(v) }

func (c *Config) TargetHeapUtilization() float64 {
	return math.Float64frombits(c.targetHeapUtilizationBits.Load())
}

func (c *Config) SetTargetHeapUtilization(v float64) {
	if v <= 0 || v > 1 {
		v = 1
	}
	c.targetHeapUtilizationBits.Store(math.Float64bits(v))
}

func (c *Config) MinHeapBytes() int64     { return c.minHeapBytes.Load() }
func (c *Config) SetMinHeapBytes(v int64) { c.minHeapBytes.Store(v) }

func (c *Config) MaxHeapBytes() int64     { return c.maxHeapBytes.Load() }
func (c *Config) SetMaxHeapBytes(v int64) { c.maxHeapBytes.Store(v) }

// Retune applies the heap-target autotune law:
//
//	targetHeapBytes ← clamp(aliveBytes / targetHeapUtilization, [min, max])
//
// No-op when AutoTune is false.
func (c *Config) Retune(aliveBytes int64) {
	if !c.AutoTune() {
		return
	}
	util := c.TargetHeapUtilization()
	raw := float64(aliveBytes) / util
	lo, hi := float64(c.MinHeapBytes()), float64(c.MaxHeapBytes())
	if raw < lo {
		raw = lo
	}
	if raw > hi {
		raw = hi
	}
	c.SetTargetHeapBytes(int64(raw))
}

// fileConfig mirrors Config's fields for YAML (de)serialization; Config
// itself is not yaml-tagged because its fields are unexported atomics.
type fileConfig struct {
	SchemaVersion                   string  `yaml:"schema_version"`
	Threshold                       int64   `yaml:"threshold"`
	ThreadAllocationThresholdBytes  int64   `yaml:"thread_allocation_threshold_bytes"`
	AutoTune                        bool    `yaml:"auto_tune"`
	RegularGcIntervalUs             int64   `yaml:"regular_gc_interval_us"`
	TargetHeapBytes                 int64   `yaml:"target_heap_bytes"`
	TargetHeapUtilization           float64 `yaml:"target_heap_utilization"`
	MinHeapBytes                    int64   `yaml:"min_heap_bytes"`
	MaxHeapBytes                    int64   `yaml:"max_heap_bytes"`
}

// LoadYAML parses a scheduler config file, validating its schema version
// against ConfigSchemaVersion before applying any field.
func LoadYAML(data []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("scheduler: parsing config yaml: %w", err)
	}

	if fc.SchemaVersion == "" {
		fc.SchemaVersion = ConfigSchemaVersion
	}
	fileVersion, err := semver.NewVersion(fc.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid schema_version %q: %w", fc.SchemaVersion, err)
	}
	if fileVersion.Major() != configSchemaConstraint.Major() {
		return nil, fmt.Errorf("scheduler: config schema %s is incompatible with binary schema %s",
			fc.SchemaVersion, ConfigSchemaVersion)
	}

	c := DefaultConfig()
	c.SchemaVersion = fc.SchemaVersion
	if fc.Threshold > 0 {
		c.SetThreshold(fc.Threshold)
	}
	if fc.ThreadAllocationThresholdBytes > 0 {
		c.SetThreadAllocationThresholdBytes(fc.ThreadAllocationThresholdBytes)
	}
	c.SetAutoTune(fc.AutoTune)
	if fc.RegularGcIntervalUs > 0 {
		c.SetRegularGcIntervalUs(fc.RegularGcIntervalUs)
	}
	if fc.TargetHeapBytes > 0 {
		c.SetTargetHeapBytes(fc.TargetHeapBytes)
	}
	if fc.TargetHeapUtilization > 0 {
		c.SetTargetHeapUtilization(fc.TargetHeapUtilization)
	}
	if fc.MinHeapBytes > 0 {
		c.SetMinHeapBytes(fc.MinHeapBytes)
	}
	if fc.MaxHeapBytes > 0 {
		c.SetMaxHeapBytes(fc.MaxHeapBytes)
	}
	return c, nil
}

// ApplyEnv overlays environment-variable overrides onto c. dotenvPath,
// when non-empty, is loaded into the process environment first (via
// godotenv) so a local .env file can supply the same variables; values
// already present in the real environment are never overwritten by the
// file, matching godotenv's load semantics.
func (c *Config) ApplyEnv(dotenvPath string) error {
	if dotenvPath != "" {
		if _, err := os.Stat(dotenvPath); err == nil {
			if err := godotenv.Load(dotenvPath); err != nil {
				return fmt.Errorf("scheduler: loading %s: %w", dotenvPath, err)
			}
		}
	}

	if v, ok := envInt64("EMBERGC_THRESHOLD"); ok {
		c.SetThreshold(v)
	}
	if v, ok := envInt64("EMBERGC_THREAD_ALLOC_THRESHOLD_BYTES"); ok {
		c.SetThreadAllocationThresholdBytes(v)
	}
	if v, ok := os.LookupEnv("EMBERGC_AUTO_TUNE"); ok {
		c.SetAutoTune(v == "1" || v == "true")
	}
	if v, ok := envInt64("EMBERGC_REGULAR_GC_INTERVAL_US"); ok {
		c.SetRegularGcIntervalUs(v)
	}
	if v, ok := envInt64("EMBERGC_TARGET_HEAP_BYTES"); ok {
		c.SetTargetHeapBytes(v)
	}
	if v, ok := envFloat64("EMBERGC_TARGET_HEAP_UTILIZATION"); ok {
		c.SetTargetHeapUtilization(v)
	}
	if v, ok := envInt64("EMBERGC_MIN_HEAP_BYTES"); ok {
		c.SetMinHeapBytes(v)
	}
	if v, ok := envInt64("EMBERGC_MAX_HEAP_BYTES"); ok {
		c.SetMaxHeapBytes(v)
	}
	return nil
}

func envInt64(name string) (int64, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envFloat64(name string) (float64, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
