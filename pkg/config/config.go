package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/itohio/gofws/pkg/calib"
)

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Bus         BusConfig         `yaml:"bus"`
	Sampling    SamplingConfig    `yaml:"sampling"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Timing      TimingConfig      `yaml:"timing"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Tolerance   ToleranceConfig   `yaml:"tolerance"`
	Mock        MockConfig        `yaml:"mock"`
}

// SerialConfig contains the debug UART configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// BusConfig contains the controller bus settings of the module.
type BusConfig struct {
	Address        uint8         `yaml:"address7"`
	FrequencyHz    uint32        `yaml:"frequency_hz"`
	LivenessWindow time.Duration `yaml:"liveness_window"`
	IdleWait       time.Duration `yaml:"idle_wait"`
}

// SamplingConfig contains acquisition parameters.
type SamplingConfig struct {
	Oversample     int `yaml:"oversample"`
	AverageSamples int `yaml:"average_samples"` // host-side averaging (0 = disabled)
}

// CalibrationConfig contains the calibration procedure settings and the
// tables the module starts with.
type CalibrationConfig struct {
	References [calib.Points]float32 `yaml:"references"`
	Debounce   time.Duration         `yaml:"debounce"`
	Poll       time.Duration         `yaml:"poll"`
	Tables     [][]calib.Point       `yaml:"tables"`
}

// TimingConfig contains the main loop periods.
type TimingConfig struct {
	StatusPeriod     time.Duration `yaml:"status_period"`
	ConnectionPeriod time.Duration `yaml:"connection_period"`
	DiagPeriod       time.Duration `yaml:"diag_period"`
	LoopSleep        time.Duration `yaml:"loop_sleep"`
	Heartbeat        time.Duration `yaml:"heartbeat"`
}

// DiagnosticsConfig contains bus event diagnostics settings.
type DiagnosticsConfig struct {
	Enabled  bool `yaml:"enabled"`
	QueueLen int  `yaml:"queue_len"`
}

// ToleranceConfig describes the acceptable filament diameter on the host.
type ToleranceConfig struct {
	NominalMM    float64       `yaml:"nominal_mm"`
	MinMM        float64       `yaml:"min_mm"`
	MaxMM        float64       `yaml:"max_mm"`
	WindowLength time.Duration `yaml:"window"`
	MinExcursion time.Duration `yaml:"min_excursion"` // shorter excursions are ignored
}

// MockConfig contains simulated module configuration.
type MockConfig struct {
	NominalMM     float32       `yaml:"nominal_mm"`
	AmplitudeMM   float32       `yaml:"amplitude_mm"`   // slow diameter wander
	Period        time.Duration `yaml:"period"`         // wander period
	NoiseLevel    float32       `yaml:"noise_level"`    // ADC noise, counts
	RequestPeriod time.Duration `yaml:"request_period"` // simulated controller poll period
	ErrorRate     float64       `yaml:"error_rate"`     // probability of a failed bus transfer
	TestMode      bool          `yaml:"test_mode"`
	TestValues    [2]float32    `yaml:"test_values"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	def := calib.DefaultTable()
	return &Config{
		Serial: SerialConfig{
			Port:     "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate: 115200,
		},
		Bus: BusConfig{
			Address:        0x42,
			FrequencyHz:    400000,
			LivenessWindow: 5 * time.Second,
			IdleWait:       time.Millisecond,
		},
		Sampling: SamplingConfig{
			Oversample:     16,
			AverageSamples: 0,
		},
		Calibration: CalibrationConfig{
			References: [calib.Points]float32{1.50, 1.75, 2.00},
			Debounce:   50 * time.Millisecond,
			Poll:       10 * time.Millisecond,
			Tables: [][]calib.Point{
				append([]calib.Point(nil), def[:]...),
				append([]calib.Point(nil), def[:]...),
			},
		},
		Timing: TimingConfig{
			StatusPeriod:     5 * time.Second,
			ConnectionPeriod: 10 * time.Second,
			DiagPeriod:       time.Second,
			LoopSleep:        2 * time.Millisecond,
			Heartbeat:        200 * time.Millisecond,
		},
		Diagnostics: DiagnosticsConfig{
			Enabled:  true,
			QueueLen: 64,
		},
		Tolerance: ToleranceConfig{
			NominalMM:    1.75,
			MinMM:        1.70,
			MaxMM:        1.80,
			WindowLength: 60 * time.Second,
			MinExcursion: 500 * time.Millisecond,
		},
		Mock: MockConfig{
			NominalMM:     1.75,
			AmplitudeMM:   0.05,
			Period:        20 * time.Second,
			NoiseLevel:    4,
			RequestPeriod: 100 * time.Millisecond,
			ErrorRate:     0,
			TestValues:    [2]float32{1.99, 1.99},
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CalibrationTables builds calibration tables from the configured points.
// Sensors without a complete table keep the built-in default.
func (c *Config) CalibrationTables() *calib.Tables {
	tables := calib.NewTables()
	for s, points := range c.Calibration.Tables {
		if s >= calib.Sensors || len(points) != calib.Points {
			continue
		}
		var t calib.Table
		copy(t[:], points)
		tables.SetTable(s, t)
	}
	return tables
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error

	if c.Bus.Address < 0x08 || c.Bus.Address > 0x77 {
		err = multierr.Append(err, fmt.Errorf("bus.address7 0x%02X is outside 0x08..0x77", c.Bus.Address))
	}
	if c.Bus.FrequencyHz == 0 {
		err = multierr.Append(err, errors.New("bus.frequency_hz must be positive"))
	}
	if c.Sampling.Oversample < 1 {
		err = multierr.Append(err, errors.New("sampling.oversample must be at least 1"))
	}
	if c.Sampling.AverageSamples < 0 {
		err = multierr.Append(err, errors.New("sampling.average_samples must not be negative"))
	}
	if c.Diagnostics.QueueLen < 2 {
		err = multierr.Append(err, errors.New("diagnostics.queue_len must be at least 2"))
	}
	for i := 1; i < calib.Points; i++ {
		if c.Calibration.References[i] <= c.Calibration.References[i-1] {
			err = multierr.Append(err, errors.New("calibration.references must be increasing"))
			break
		}
	}
	for s, points := range c.Calibration.Tables {
		if len(points) != calib.Points {
			err = multierr.Append(err, fmt.Errorf("calibration.tables[%d] must have %d points, got %d", s, calib.Points, len(points)))
		}
	}
	if len(c.Calibration.Tables) > calib.Sensors {
		err = multierr.Append(err, fmt.Errorf("calibration.tables has %d sensors, at most %d supported", len(c.Calibration.Tables), calib.Sensors))
	}
	if c.Tolerance.MinMM > c.Tolerance.MaxMM {
		err = multierr.Append(err, errors.New("tolerance.min_mm must not exceed tolerance.max_mm"))
	}
	if c.Mock.ErrorRate < 0 || c.Mock.ErrorRate > 1 {
		err = multierr.Append(err, errors.New("mock.error_rate must be within 0..1"))
	}

	return err
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Bus.Address == 0 {
		c.Bus.Address = def.Bus.Address
	}
	if c.Bus.FrequencyHz == 0 {
		c.Bus.FrequencyHz = def.Bus.FrequencyHz
	}
	if c.Bus.LivenessWindow == 0 {
		c.Bus.LivenessWindow = def.Bus.LivenessWindow
	}
	if c.Bus.IdleWait == 0 {
		c.Bus.IdleWait = def.Bus.IdleWait
	}

	if c.Sampling.Oversample == 0 {
		c.Sampling.Oversample = def.Sampling.Oversample
	}

	if c.Calibration.References == ([calib.Points]float32{}) {
		c.Calibration.References = def.Calibration.References
	}
	if c.Calibration.Debounce == 0 {
		c.Calibration.Debounce = def.Calibration.Debounce
	}
	if c.Calibration.Poll == 0 {
		c.Calibration.Poll = def.Calibration.Poll
	}

	if c.Timing.StatusPeriod == 0 {
		c.Timing.StatusPeriod = def.Timing.StatusPeriod
	}
	if c.Timing.ConnectionPeriod == 0 {
		c.Timing.ConnectionPeriod = def.Timing.ConnectionPeriod
	}
	if c.Timing.DiagPeriod == 0 {
		c.Timing.DiagPeriod = def.Timing.DiagPeriod
	}
	if c.Timing.LoopSleep == 0 {
		c.Timing.LoopSleep = def.Timing.LoopSleep
	}
	if c.Timing.Heartbeat == 0 {
		c.Timing.Heartbeat = def.Timing.Heartbeat
	}

	if c.Diagnostics.QueueLen == 0 {
		c.Diagnostics.QueueLen = def.Diagnostics.QueueLen
	}

	if c.Tolerance.NominalMM == 0 {
		c.Tolerance.NominalMM = def.Tolerance.NominalMM
	}
	if c.Tolerance.MinMM == 0 {
		c.Tolerance.MinMM = def.Tolerance.MinMM
	}
	if c.Tolerance.MaxMM == 0 {
		c.Tolerance.MaxMM = def.Tolerance.MaxMM
	}
	if c.Tolerance.WindowLength == 0 {
		c.Tolerance.WindowLength = def.Tolerance.WindowLength
	}

	if c.Mock.NominalMM == 0 {
		c.Mock.NominalMM = def.Mock.NominalMM
	}
	if c.Mock.Period == 0 {
		c.Mock.Period = def.Mock.Period
	}
	if c.Mock.RequestPeriod == 0 {
		c.Mock.RequestPeriod = def.Mock.RequestPeriod
	}
}
