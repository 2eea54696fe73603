package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ironsheep/boardscan/internal/payload"
	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvAddr           = "BOARDSCAN_ADDR"
	EnvCatalog        = "BOARDSCAN_CATALOG"
	EnvEngine         = "BOARDSCAN_ENGINE"
	EnvTesseractCmd   = "BOARDSCAN_TESSERACT_CMD"
	EnvTessdataPrefix = "BOARDSCAN_TESSDATA_PREFIX"
	EnvLanguage       = "BOARDSCAN_LANG"
	EnvPayloadFormat  = "BOARDSCAN_PAYLOAD_FORMAT"
	EnvQRLevel        = "BOARDSCAN_QR_LEVEL"
	EnvQRBoxSize      = "BOARDSCAN_QR_BOX_SIZE"
	EnvQRBorder       = "BOARDSCAN_QR_BORDER"
	EnvQRForeground   = "BOARDSCAN_QR_FOREGROUND"
	EnvQRBackground   = "BOARDSCAN_QR_BACKGROUND"
	EnvWorkers        = "BOARDSCAN_WORKERS"
	EnvRequestTimeout = "BOARDSCAN_REQUEST_TIMEOUT"
	EnvMaxUploadMB    = "BOARDSCAN_MAX_UPLOAD_MB"
	EnvMaxConns       = "BOARDSCAN_MAX_CONNS"
	EnvLogLevel       = "BOARDSCAN_LOG_LEVEL"
	EnvPort           = "PORT"
)

// OCR engine backends.
const (
	EngineGosseract = "gosseract"
	EngineCLI       = "cli"
)

const maxWorkers = 64

// Config holds the process-wide settings.
type Config struct {
	Addr           string
	Catalog        string
	Engine         string
	TesseractCmd   string
	TessdataPrefix string
	Language       string
	Workers        int
	RequestTimeout time.Duration
	MaxUploadBytes int64
	MaxConns       int
	Debug          bool
	Encoder        payload.Encoder

	// EnvFile is the .env file that was loaded, if any.
	EnvFile string
}

// LoadOptions changes where Load looks for a .env file.
type LoadOptions struct {
	// EnvFile, when set, is loaded instead of searching for .env.
	EnvFile string
}

// Load reads .env (current directory first, then the executable's
// directory) and the environment. Variables already set in the environment
// win over the file.
func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

// LoadWithOptions is Load with an explicit .env location.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = resolveEnvPath()
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Addr:           getEnv(EnvAddr, ""),
		Catalog:        getEnv(EnvCatalog, "board"),
		Engine:         strings.ToLower(getEnv(EnvEngine, EngineGosseract)),
		TesseractCmd:   getEnv(EnvTesseractCmd, "tesseract"),
		TessdataPrefix: getEnv(EnvTessdataPrefix, ""),
		Language:       getEnv(EnvLanguage, "eng"),
		Debug:          strings.EqualFold(getEnv(EnvLogLevel, ""), "debug"),
		Encoder:        payload.DefaultEncoder(),
		EnvFile:        envFile,
	}
	if cfg.Addr == "" {
		cfg.Addr = ":5000"
		if port := getEnv(EnvPort, ""); port != "" {
			cfg.Addr = ":" + port
		}
	}

	var err error
	if cfg.Workers, err = getInt(EnvWorkers, 1); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration(EnvRequestTimeout, 60*time.Second); err != nil {
		return nil, err
	}
	uploadMB, err := getInt(EnvMaxUploadMB, 32)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(uploadMB) << 20
	if cfg.MaxConns, err = getInt(EnvMaxConns, 32); err != nil {
		return nil, err
	}

	if cfg.Encoder.Format, err = payload.ParseFormat(getEnv(EnvPayloadFormat, "")); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvPayloadFormat, err)
	}
	if cfg.Encoder.Level, err = payload.ParseLevel(getEnv(EnvQRLevel, "")); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvQRLevel, err)
	}
	if cfg.Encoder.BoxSize, err = getInt(EnvQRBoxSize, payload.DefaultBoxSize); err != nil {
		return nil, err
	}
	if cfg.Encoder.Border, err = getInt(EnvQRBorder, payload.DefaultBorder); err != nil {
		return nil, err
	}
	cfg.Encoder.Foreground = getEnv(EnvQRForeground, payload.DefaultForeground)
	cfg.Encoder.Background = getEnv(EnvQRBackground, payload.DefaultBackground)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineGosseract, EngineCLI:
	default:
		return fmt.Errorf("%s: unknown engine %q (want %s or %s)", EnvEngine, c.Engine, EngineGosseract, EngineCLI)
	}
	if c.Workers < 1 || c.Workers > maxWorkers {
		return fmt.Errorf("%s: must be in [1,%d], got %d", EnvWorkers, maxWorkers, c.Workers)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", EnvRequestTimeout, c.RequestTimeout)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("%s: must be positive", EnvMaxUploadMB)
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("%s: must not be negative, got %d", EnvMaxConns, c.MaxConns)
	}
	if strings.TrimSpace(c.Language) == "" {
		return fmt.Errorf("%s: must not be empty", EnvLanguage)
	}
	if err := c.Encoder.Validate(); err != nil {
		return fmt.Errorf("qr settings: %w", err)
	}
	return nil
}

// QRLevelName returns the configured error correction letter.
func (c *Config) QRLevelName() string {
	return payload.LevelName(c.Encoder.Level)
}

// resolveEnvPath returns the first .env found in the working directory or
// next to the executable.
func resolveEnvPath() string {
	if _, err := os.Stat(".env"); err == nil {
		return ".env"
	}
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}
	return ""
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

// getDuration accepts Go durations ("90s", "2m") or a plain number of
// seconds.
func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultVal, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
