// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for engine, pitch, tactics and service settings.
//
// IMPORTANT: When changing default values, only modify this file.
// Per-match overrides are passed to the engine through match.Options.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// ENGINE CONFIGURATION
// =============================================================================

// EngineConfig holds the match loop settings.
type EngineConfig struct {
	TickInterval   time.Duration // Logical time advanced per tick
	HalfLength     time.Duration // Regulation length of one half
	StoppageTicks  int           // Extra ticks played at the end of each half
	ParallelAgents bool          // Evaluate agents of a tick concurrently
	Verbose        bool          // Per-tick debug logging
	EventLogDir    string        // Directory for per-match NDJSON event files ("" = disabled)
}

// DefaultEngine returns the default engine configuration.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		TickInterval:   100 * time.Millisecond, // 10 ticks per simulated second
		HalfLength:     45 * time.Minute,
		StoppageTicks:  0,
		ParallelAgents: true,
	}
}

// EngineFromEnv returns engine configuration with environment variable overrides.
func EngineFromEnv() EngineConfig {
	cfg := DefaultEngine()

	if ms := getEnvInt("MATCH_TICK_MS", 0); ms > 0 {
		cfg.TickInterval = time.Duration(ms) * time.Millisecond
	}
	if m := getEnvFloat("MATCH_HALF_MINUTES", 0); m > 0 {
		cfg.HalfLength = time.Duration(m * float64(time.Minute))
	}
	if st := getEnvInt("MATCH_STOPPAGE_TICKS", -1); st >= 0 {
		cfg.StoppageTicks = st
	}
	if os.Getenv("MATCH_PARALLEL") == "false" {
		cfg.ParallelAgents = false
	}
	if os.Getenv("MATCH_VERBOSE") == "true" {
		cfg.Verbose = true
	}
	cfg.EventLogDir = os.Getenv("EVENT_LOG_DIR")

	return cfg
}

// TicksPerHalf returns the number of regulation ticks in one half.
func (c EngineConfig) TicksPerHalf() uint64 {
	if c.TickInterval <= 0 {
		return 0
	}
	return uint64(c.HalfLength / c.TickInterval)
}

// =============================================================================
// PITCH CONFIGURATION
// =============================================================================

// FieldConfig holds pitch geometry. Units are abstract pitch units.
type FieldConfig struct {
	Width     float64 `yaml:"width"`      // Goal line to goal line (x axis)
	Height    float64 `yaml:"height"`     // Touchline to touchline (y axis)
	GoalWidth float64 `yaml:"goal_width"` // Width of the goal mouth
}

// DefaultField returns the default pitch geometry.
func DefaultField() FieldConfig {
	return FieldConfig{
		Width:     840,
		Height:    545,
		GoalWidth: 60,
	}
}

// =============================================================================
// TACTICAL CONSTANTS
// =============================================================================

// TacticsConfig holds every threshold the state machines consult.
// All distances are pitch units, stamina values are condition percent.
type TacticsConfig struct {
	MarkingDistance       float64 `yaml:"marking_distance"`
	TacklingDistance      float64 `yaml:"tackling_distance"`
	SlidingTackleDistance float64 `yaml:"sliding_tackle_distance"`
	StaminaFloor          float64 `yaml:"stamina_floor"`
	TackleStaminaFloor    float64 `yaml:"tackle_stamina_floor"`
	RecoveredStamina      float64 `yaml:"recovered_stamina"`
	BallProximity         float64 `yaml:"ball_proximity"`
	ClaimDistance         float64 `yaml:"claim_distance"`
	MarkingScanRadius     float64 `yaml:"marking_scan_radius"`
	PressingDistance      float64 `yaml:"pressing_distance"`
	TacklingApproach      float64 `yaml:"tackling_approach"`
	InterceptDistance     float64 `yaml:"intercept_distance"`
	InterceptAngle        float64 `yaml:"intercept_angle"`
	ShootingDistance      float64 `yaml:"shooting_distance"`
	LongShotDistance      float64 `yaml:"long_shot_distance"`
	ClearShotDot          float64 `yaml:"clear_shot_dot"`
	PassingRange          float64 `yaml:"passing_range"`
	ShortPassRange        float64 `yaml:"short_pass_range"`
	DribbleSpace          float64 `yaml:"dribble_space"`
	PressureRadius        float64 `yaml:"pressure_radius"`
	StartSmallBand        float64 `yaml:"start_small_band"`
	StartMediumBand       float64 `yaml:"start_medium_band"`
	PassPowerMin          float64 `yaml:"pass_power_min"`
	PassPowerMax          float64 `yaml:"pass_power_max"`
	ConfidenceFloor       float64 `yaml:"confidence_floor"`
	HoldingTicks          uint64  `yaml:"holding_ticks"`
	PossessionTicks       uint64  `yaml:"possession_ticks"`
	DiveTicks             uint64  `yaml:"dive_ticks"`
	DiveRecoveryTicks     uint64  `yaml:"dive_recovery_ticks"`
}

// DefaultTactics returns the canonical threshold set.
func DefaultTactics() TacticsConfig {
	return TacticsConfig{
		MarkingDistance:       2.0,
		TacklingDistance:      3.0,
		SlidingTackleDistance: 6.0,
		StaminaFloor:          20,
		TackleStaminaFloor:    25,
		RecoveredStamina:      40,
		BallProximity:         5.0,
		ClaimDistance:         1.5,
		MarkingScanRadius:     100,
		PressingDistance:      50,
		TacklingApproach:      150,
		InterceptDistance:     250,
		InterceptAngle:        0.8,
		ShootingDistance:      250,
		LongShotDistance:      120,
		ClearShotDot:          0.9,
		PassingRange:          300,
		ShortPassRange:        30,
		DribbleSpace:          10,
		PressureRadius:        50,
		StartSmallBand:        100,
		StartMediumBand:       250,
		PassPowerMin:          3,
		PassPowerMax:          10,
		ConfidenceFloor:       0.5,
		HoldingTicks:          100,
		PossessionTicks:       100,
		DiveTicks:             10,
		DiveRecoveryTicks:     15,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int
	CORSOrigins []string // Extra origins for CORS and the live feed; localhost is always allowed
	APIKey      string   // Required for submitting and stopping matches ("" = open)

	// Per-client token bucket. A read takes one token, a submit or stop
	// takes SubmitCost. RequestsPerSecond <= 0 disables the limiter.
	RequestsPerSecond float64
	RequestBurst      int
	SubmitCost        int

	FeedsPerClient int // Concurrent live feed connections per client address
	MaxFeeds       int // Concurrent live feed connections in total
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:              3000,
		RequestsPerSecond: 10,
		RequestBurst:      20,
		SubmitCost:        5,
		FeedsPerClient:    10,
		MaxFeeds:          500,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	cfg.APIKey = os.Getenv("API_KEY")

	if r := getEnvFloat("API_RATE", -1); r >= 0 {
		cfg.RequestsPerSecond = r
	}
	if b := getEnvInt("API_BURST", 0); b > 0 {
		cfg.RequestBurst = b
	}
	if c := getEnvInt("API_SUBMIT_COST", 0); c > 0 {
		cfg.SubmitCost = c
	}
	if n := getEnvInt("WS_PER_CLIENT", 0); n > 0 {
		cfg.FeedsPerClient = n
	}
	if n := getEnvInt("WS_MAX", 0); n > 0 {
		cfg.MaxFeeds = n
	}

	return cfg
}

// Validate rejects limits no request could ever pass.
func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RequestsPerSecond > 0 {
		if c.SubmitCost < 1 || c.RequestBurst < c.SubmitCost {
			return fmt.Errorf("request burst %d cannot cover a submit costing %d", c.RequestBurst, c.SubmitCost)
		}
	}
	if c.FeedsPerClient < 1 || c.MaxFeeds < c.FeedsPerClient {
		return fmt.Errorf("invalid live feed limits: %d per client, %d total", c.FeedsPerClient, c.MaxFeeds)
	}
	return nil
}

// =============================================================================
// MATCH POOL CONFIGURATION
// =============================================================================

// PoolConfig sizes the worker pool that runs independent matches.
type PoolConfig struct {
	Workers    int           // Matches simulated concurrently
	QueueSize  int           // Pending match submissions
	LivePace   time.Duration // Wall-clock delay between ticks for live matches (0 = as fast as possible)
	MaxResults int           // Results kept in the store before the oldest are evicted
}

// DefaultPool returns the default pool configuration.
func DefaultPool() PoolConfig {
	return PoolConfig{
		Workers:    4,
		QueueSize:  64,
		LivePace:   0,
		MaxResults: 500,
	}
}

// PoolFromEnv returns pool configuration with environment variable overrides.
func PoolFromEnv() PoolConfig {
	cfg := DefaultPool()

	if w := getEnvInt("POOL_WORKERS", 0); w > 0 {
		cfg.Workers = w
	}
	if q := getEnvInt("POOL_QUEUE", 0); q > 0 {
		cfg.QueueSize = q
	}
	if ms := getEnvInt("POOL_LIVE_PACE_MS", 0); ms > 0 {
		cfg.LivePace = time.Duration(ms) * time.Millisecond
	}
	if n := getEnvInt("POOL_MAX_RESULTS", 0); n > 0 {
		cfg.MaxResults = n
	}

	return cfg
}

// =============================================================================
// OBSERVABILITY CONFIGURATION
// =============================================================================

// ObservabilityConfig configures the debug server.
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be "127.0.0.1:6060" in production
	BasicAuthUser string
	BasicAuthPass string
}

// DefaultObservability returns safe defaults.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060", // Localhost only - NEVER expose externally
	}
}

// ObservabilityFromEnv returns observability configuration with environment overrides.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()

	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Enabled = false
	}
	cfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	cfg.BasicAuthPass = os.Getenv("DEBUG_PASS")

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Engine        EngineConfig
	Field         FieldConfig
	Tactics       TacticsConfig
	Server        ServerConfig
	Pool          PoolConfig
	Observability ObservabilityConfig
}

// Load returns the complete configuration with environment overrides.
// If TACTICS_FILE is set, its field and tactics sections overlay the defaults.
func Load() (AppConfig, error) {
	cfg := AppConfig{
		Engine:        EngineFromEnv(),
		Field:         DefaultField(),
		Tactics:       DefaultTactics(),
		Server:        ServerFromEnv(),
		Pool:          PoolFromEnv(),
		Observability: ObservabilityFromEnv(),
	}

	if path := os.Getenv("TACTICS_FILE"); path != "" {
		overlay, err := LoadTacticsFile(path)
		if err != nil {
			return cfg, err
		}
		if err := overlay.Apply(&cfg.Field, &cfg.Tactics); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := cfg.Tactics.Validate(); err != nil {
		return cfg, err
	}
	if err := cfg.Server.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
