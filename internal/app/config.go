package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/logger"
	"github.com/yungbote/clipforge-backend/internal/utils"
)

type Config struct {
	Port            string
	AnalysisDefault domain.AnalysisConfig
}

// configFile mirrors the on-disk config.yaml shape.
type configFile struct {
	Analysis domain.AnalysisConfig `yaml:"analysis"`
}

// LoadConfig reads CONFIG_PATH (default config.yaml) and overlays it onto the
// built-in analysis defaults. A missing file is fine; a file that exists but
// does not parse is a startup error.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port:            utils.GetEnv("PORT", "8080", log),
		AnalysisDefault: domain.DefaultAnalysisConfig(),
	}

	path := utils.GetEnv("CONFIG_PATH", "config.yaml", log)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Info("No config file, using built-in analysis defaults", "path", path)
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	var file configFile
	file.Analysis = cfg.AnalysisDefault
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.AnalysisDefault = file.Analysis
	log.Info("Loaded config file", "path", path)
	return cfg, nil
}
