package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"lrp-copilot/internal/simulation"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// DefaultMaxTrials is the per-query trial cap when MC_MAX_TRIALS is unset.
const DefaultMaxTrials = 100000

// AppConfig holds the complete application configuration.
type AppConfig struct {
	DataPath string
	LogDir   string
	RunsDir  string

	// Baseline sources: Postgres when DatabaseURL is set, else BaselinePath.
	DatabaseURL  string
	BaselinePath string
	WorkspaceID  string

	Simulation SimulationConfig

	HTTPAddr            string
	EnableMermaidCharts bool
	MetricsNamespace    string
}

// SimulationConfig holds the engine defaults.
type SimulationConfig struct {
	Trials int
	// MaxTrials caps the trials a single query may ask for; 0 disables the cap.
	MaxTrials int
	Workers   int
	// Seed pins the engine's random stream; 0 seeds from the clock.
	Seed              int64
	Shocks            simulation.Shocks
	OptionParallelism int
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory (highest priority for MCP servers)
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve Data Paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := os.Getenv("LOGS_FOLDER")
	if logDir == "" {
		logDir = filepath.Join(dataPath, "logs")
	}
	runsDir := filepath.Join(dataPath, "runs")

	for _, dir := range []string{logDir, runsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to create directory")
		}
	}

	baselinePath := getEnv("BASELINE_PATH", "")
	if baselinePath != "" && !filepath.IsAbs(baselinePath) {
		baselinePath = filepath.Join(dataPath, baselinePath)
	}

	sim, err := loadSimulation()
	if err != nil {
		return nil, err
	}

	cfg := &AppConfig{
		DataPath:            dataPath,
		LogDir:              logDir,
		RunsDir:             runsDir,
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		BaselinePath:        baselinePath,
		WorkspaceID:         getEnv("WORKSPACE_ID", "default"),
		Simulation:          sim,
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		EnableMermaidCharts: getEnvBool("ENABLE_MERMAID_CHARTS", false),
		MetricsNamespace:    getEnv("METRICS_NAMESPACE", "lrp_copilot"),
	}

	return cfg, nil
}

func loadSimulation() (SimulationConfig, error) {
	var (
		sim SimulationConfig
		err error
	)
	if sim.Trials, err = getEnvInt("MC_TRIALS", simulation.DefaultTrials); err != nil {
		return sim, err
	}
	if sim.MaxTrials, err = getEnvInt("MC_MAX_TRIALS", DefaultMaxTrials); err != nil {
		return sim, err
	}
	if sim.Workers, err = getEnvInt("MC_WORKERS", 1); err != nil {
		return sim, err
	}
	if sim.OptionParallelism, err = getEnvInt("MC_OPTION_PARALLELISM", 0); err != nil {
		return sim, err
	}
	seed, err := getEnvInt("MC_SEED", 0)
	if err != nil {
		return sim, err
	}
	sim.Seed = int64(seed)

	shocks := []struct {
		key string
		dst *float64
		def float64
	}{
		{"SHOCK_PRESENTATION_PCT", &sim.Shocks.PresentationPct, 0.05},
		{"SHOCK_WIN_RATE_PP", &sim.Shocks.WinRatePP, 2},
		{"SHOCK_ATTACH_RATE_PP", &sim.Shocks.AttachRatePP, 2},
		{"SHOCK_ASP_PCT", &sim.Shocks.ASPPct, 0.05},
	}
	for _, s := range shocks {
		if *s.dst, err = getEnvFloat(s.key, s.def); err != nil {
			return sim, err
		}
	}
	return sim, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return f, nil
}
