package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del proceso.
type Config struct {
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Matching    MatchingConfig    `yaml:"matching"`
	Arbitrage   ArbitrageConfig   `yaml:"arbitrage"`
	Consensus   ConsensusConfig   `yaml:"consensus"`
	Decision    DecisionConfig    `yaml:"decision"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Oracle      OracleConfig      `yaml:"oracle"`
	Venues      []VenueConfig     `yaml:"venues"`
	Storage     StorageConfig     `yaml:"storage"`
	Log         LogConfig         `yaml:"log"`
}

// SchedulerConfig controla el heartbeat y los intervalos mínimos por tarea.
type SchedulerConfig struct {
	TickSeconds             int    `yaml:"tick_seconds"`
	SnapshotEverySeconds    int    `yaml:"snapshot_every_seconds"`
	ScanEverySeconds        int    `yaml:"scan_every_seconds"`
	WhaleEverySeconds       int    `yaml:"whale_every_seconds"`
	CalibrationEverySeconds int    `yaml:"calibration_every_seconds"`
	VenueTimeoutSeconds     int    `yaml:"venue_timeout_seconds"`
	CacheTTLSeconds         int    `yaml:"cache_ttl_seconds"`
	Query                   string `yaml:"query"` // query de mercados por ciclo; vacía = todos
}

// MatchingConfig controla los umbrales de similitud y clustering.
type MatchingConfig struct {
	CandidateThreshold float64 `yaml:"candidate_threshold"`
	ClusterThreshold   float64 `yaml:"cluster_threshold"`
}

// ArbitrageConfig controla los filtros del detector.
type ArbitrageConfig struct {
	MinSpread        float64 `yaml:"min_spread"`
	MinVolumeUSD     float64 `yaml:"min_volume_usd"`
	MaxOpportunities int     `yaml:"max_opportunities"`
}

// ConsensusConfig controla la agregación de probabilidades.
type ConsensusConfig struct {
	DefaultReliability float64 `yaml:"default_reliability"`
	MinSources         int     `yaml:"min_sources"`
}

// DecisionConfig controla los umbrales de acción del motor de decisión.
type DecisionConfig struct {
	ExecuteThreshold float64 `yaml:"execute_threshold"`
	WatchThreshold   float64 `yaml:"watch_threshold"`
}

// CalibrationConfig controla la traducción de Brier a multiplicador.
type CalibrationConfig struct {
	WellCalibrated   float64 `yaml:"well_calibrated"`
	PoorlyCalibrated float64 `yaml:"poorly_calibrated"`
	MultiplierFloor  float64 `yaml:"multiplier_floor"`
}

// OracleConfig controla el oráculo de precios spot.
type OracleConfig struct {
	Assets         []string            `yaml:"assets"`
	Sources        []PriceSourceConfig `yaml:"sources"`
	TimeoutSeconds int                 `yaml:"timeout_seconds"`
	AgreeTolerance float64             `yaml:"agree_tolerance"`
}

// PriceSourceConfig describe una fuente de precios HTTP.
type PriceSourceConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
}

// VenueConfig describe una venue de mercados de predicción.
type VenueConfig struct {
	Name           string  `yaml:"name"`
	BaseURL        string  `yaml:"base_url"`
	Fee            float64 `yaml:"fee"`         // fee por trade que se descuenta del precio YES
	Reliability    float64 `yaml:"reliability"` // peso de la venue en el consenso, en [0,1]
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RatePerSec     float64 `yaml:"rate_per_sec"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Default devuelve una configuración sin archivo, útil en dry-run.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Tick devuelve el intervalo del heartbeat como time.Duration.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Scheduler.TickSeconds) * time.Second
}

// SnapshotEvery devuelve el intervalo mínimo entre snapshots de precios.
func (c *Config) SnapshotEvery() time.Duration {
	return time.Duration(c.Scheduler.SnapshotEverySeconds) * time.Second
}

// ScanEvery devuelve el intervalo mínimo entre scans de arbitraje.
func (c *Config) ScanEvery() time.Duration {
	return time.Duration(c.Scheduler.ScanEverySeconds) * time.Second
}

// WhaleEvery devuelve el intervalo mínimo entre chequeos de whales.
func (c *Config) WhaleEvery() time.Duration {
	return time.Duration(c.Scheduler.WhaleEverySeconds) * time.Second
}

// CalibrationEvery devuelve el intervalo mínimo entre chequeos de calibración.
func (c *Config) CalibrationEvery() time.Duration {
	return time.Duration(c.Scheduler.CalibrationEverySeconds) * time.Second
}

// VenueTimeout devuelve el timeout por consulta a cada venue.
func (c *Config) VenueTimeout() time.Duration {
	return time.Duration(c.Scheduler.VenueTimeoutSeconds) * time.Second
}

// CacheTTL devuelve el TTL de la caché de respuestas de venues.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Scheduler.CacheTTLSeconds) * time.Second
}

// VenueFees devuelve el mapa venue→fee para el detector de arbitraje.
func (c *Config) VenueFees() map[string]float64 {
	fees := make(map[string]float64, len(c.Venues))
	for _, v := range c.Venues {
		fees[v.Name] = v.Fee
	}
	return fees
}

// VenueReliability devuelve el mapa venue→fiabilidad para el consenso.
func (c *Config) VenueReliability() map[string]float64 {
	rel := make(map[string]float64, len(c.Venues))
	for _, v := range c.Venues {
		if v.Reliability > 0 {
			rel[v.Name] = v.Reliability
		}
	}
	return rel
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Scheduler.TickSeconds <= 0 {
		cfg.Scheduler.TickSeconds = 300
	}
	if cfg.Scheduler.SnapshotEverySeconds <= 0 {
		cfg.Scheduler.SnapshotEverySeconds = 300
	}
	if cfg.Scheduler.ScanEverySeconds <= 0 {
		cfg.Scheduler.ScanEverySeconds = 300
	}
	if cfg.Scheduler.WhaleEverySeconds <= 0 {
		cfg.Scheduler.WhaleEverySeconds = 900
	}
	if cfg.Scheduler.CalibrationEverySeconds <= 0 {
		cfg.Scheduler.CalibrationEverySeconds = 1800
	}
	if cfg.Scheduler.VenueTimeoutSeconds <= 0 {
		cfg.Scheduler.VenueTimeoutSeconds = 5
	}
	if cfg.Scheduler.CacheTTLSeconds <= 0 {
		cfg.Scheduler.CacheTTLSeconds = 30
	}
	if cfg.Matching.CandidateThreshold <= 0 {
		cfg.Matching.CandidateThreshold = 0.35
	}
	if cfg.Matching.ClusterThreshold <= 0 {
		cfg.Matching.ClusterThreshold = 0.60
	}
	if cfg.Arbitrage.MinSpread <= 0 {
		cfg.Arbitrage.MinSpread = 0.03
	}
	if cfg.Arbitrage.MinVolumeUSD <= 0 {
		cfg.Arbitrage.MinVolumeUSD = 1000
	}
	if cfg.Arbitrage.MaxOpportunities <= 0 {
		cfg.Arbitrage.MaxOpportunities = 10
	}
	if cfg.Consensus.DefaultReliability <= 0 {
		cfg.Consensus.DefaultReliability = 0.5
	}
	if cfg.Consensus.MinSources <= 0 {
		cfg.Consensus.MinSources = 2
	}
	if cfg.Decision.ExecuteThreshold <= 0 {
		cfg.Decision.ExecuteThreshold = 70
	}
	if cfg.Decision.WatchThreshold <= 0 {
		cfg.Decision.WatchThreshold = 45
	}
	if cfg.Calibration.WellCalibrated <= 0 {
		cfg.Calibration.WellCalibrated = 0.15
	}
	if cfg.Calibration.PoorlyCalibrated <= 0 {
		cfg.Calibration.PoorlyCalibrated = 0.25
	}
	if cfg.Calibration.MultiplierFloor <= 0 {
		cfg.Calibration.MultiplierFloor = 0.5
	}
	if cfg.Oracle.TimeoutSeconds <= 0 {
		cfg.Oracle.TimeoutSeconds = 4
	}
	if cfg.Oracle.AgreeTolerance <= 0 {
		cfg.Oracle.AgreeTolerance = 0.01
	}
	if len(cfg.Oracle.Assets) == 0 {
		cfg.Oracle.Assets = []string{"BTC"}
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "oraculo.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
