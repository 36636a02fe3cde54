package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the board configuration: where things are wired and how often
// they run. Device behaviour that the user edits on the card lives in
// tracker.ini instead.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	GPS      GPSConfig      `yaml:"gps"`
	I2C      I2CConfig      `yaml:"i2c"`
	LEDs     LEDConfig      `yaml:"leds"`
	Sampling SamplingConfig `yaml:"sampling"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type StorageConfig struct {
	// Root is the directory the removable volume is mounted on.
	Root         string `yaml:"root"`
	SettingsFile string `yaml:"settings_file"`
	MaxBytes     int    `yaml:"max_bytes"`
	IndexFile    string `yaml:"index_file"`
}

type GPSConfig struct {
	Enable bool `yaml:"enable"`
	// Device empty means auto-detect.
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
	// FixMaxAge is the least age at which the last valid fix counts as
	// lost. The tracker widens it to two receiver report intervals.
	FixMaxAge time.Duration `yaml:"fix_max_age"`
}

type I2CConfig struct {
	Enable    bool   `yaml:"enable"`
	Bus       int    `yaml:"bus"`
	AccelAddr uint16 `yaml:"accel_addr"`
	BaroAddr  uint16 `yaml:"baro_addr"`
}

type LEDConfig struct {
	Enable bool `yaml:"enable"`
	// Pins are the BCM GPIO numbers of LED1, LED2 and LED3.
	Pins []int `yaml:"pins"`
	// Mode selects the indication set: "minimal" or "verbose".
	Mode string `yaml:"mode"`
}

type SamplingConfig struct {
	SensorInterval time.Duration `yaml:"sensor_interval"`
	StoreRecords   int           `yaml:"store_records"`
	FileInterval   time.Duration `yaml:"file_interval"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	_ = applyDefaults(&cfg)
	return cfg
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := applyDefaults(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) error {
	if strings.TrimSpace(cfg.Storage.Root) == "" {
		cfg.Storage.Root = "/media/sd"
	}
	if cfg.Storage.SettingsFile == "" {
		cfg.Storage.SettingsFile = "tracker.ini"
	}
	if cfg.Storage.IndexFile == "" {
		cfg.Storage.IndexFile = "index.ini"
	}
	if strings.ContainsAny(cfg.Storage.SettingsFile, `/\`) {
		return fmt.Errorf("storage.settings_file must be a plain file name")
	}
	if strings.ContainsAny(cfg.Storage.IndexFile, `/\`) {
		return fmt.Errorf("storage.index_file must be a plain file name")
	}
	if cfg.Storage.MaxBytes == 0 {
		cfg.Storage.MaxBytes = 4096
	}
	if cfg.Storage.MaxBytes < 0 {
		return fmt.Errorf("storage.max_bytes must be > 0")
	}

	if cfg.GPS.Baud == 0 {
		cfg.GPS.Baud = 9600
	}
	if cfg.GPS.Baud < 0 {
		return fmt.Errorf("gps.baud must be > 0")
	}
	if cfg.GPS.FixMaxAge <= 0 {
		cfg.GPS.FixMaxAge = 3 * time.Second
	}

	if cfg.I2C.AccelAddr == 0 {
		cfg.I2C.AccelAddr = 0x1F
	}
	if cfg.I2C.BaroAddr == 0 {
		cfg.I2C.BaroAddr = 0x5D
	}
	if cfg.I2C.Bus < 0 {
		return fmt.Errorf("i2c.bus must be >= 0")
	}
	if cfg.I2C.AccelAddr > 0x7F || cfg.I2C.BaroAddr > 0x7F {
		return fmt.Errorf("i2c addresses must be 7-bit")
	}
	if cfg.I2C.Enable && cfg.I2C.AccelAddr == cfg.I2C.BaroAddr {
		return fmt.Errorf("i2c.accel_addr and i2c.baro_addr must differ")
	}

	if cfg.LEDs.Mode == "" {
		cfg.LEDs.Mode = "minimal"
	}
	switch strings.ToLower(strings.TrimSpace(cfg.LEDs.Mode)) {
	case "minimal", "verbose", "debug":
	default:
		return fmt.Errorf("leds.mode must be minimal or verbose")
	}
	if cfg.LEDs.Enable {
		if len(cfg.LEDs.Pins) != 3 {
			return fmt.Errorf("leds.pins must list exactly 3 GPIO lines when leds.enable is true")
		}
		seen := map[int]bool{}
		for _, p := range cfg.LEDs.Pins {
			if p <= 0 {
				return fmt.Errorf("leds.pins must be > 0")
			}
			if seen[p] {
				return fmt.Errorf("leds.pins must not repeat a line")
			}
			seen[p] = true
		}
	}

	if cfg.Sampling.SensorInterval <= 0 {
		cfg.Sampling.SensorInterval = 20 * time.Millisecond
	}
	if cfg.Sampling.StoreRecords <= 0 {
		cfg.Sampling.StoreRecords = 25
	}
	if cfg.Sampling.FileInterval == 0 {
		cfg.Sampling.FileInterval = 30 * time.Minute
	}
	if cfg.Sampling.FileInterval < time.Minute {
		return fmt.Errorf("sampling.file_interval must be >= 1m")
	}

	return nil
}
