package main

import (
	"errors"
	"os"
	"strings"
	"wims_connector/utils"
	"wims_connector/wims"

	"github.com/ansel1/merry"
	toml "github.com/pelletier/go-toml/v2"
)

var ErrConfigNotFound = merry.New("config not found")

// ConnConfig holds the WIMS connection settings of the host.
type ConnConfig struct {
	BaseURL       string `toml:"base_url"`
	Secret        string `toml:"secret"`
	Service       string `toml:"service"`
	TrustAllCerts bool   `toml:"trust_all_certs"`
	Debug         bool   `toml:"debug"`
	Lang          string `toml:"lang"`
}

const defaultLang = "en"

func defaultConfigPath() (string, error) {
	dir, err := utils.MakeConfigDir()
	if err != nil {
		return "", merry.Wrap(err)
	}
	return dir + "/wims.toml", nil
}

// LoadConnConfig reads the TOML config. WIMS_SECRET, when set, overrides the
// secret from the file.
func LoadConnConfig(path string) (ConnConfig, error) {
	if strings.TrimSpace(path) == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return ConnConfig{}, err
		}
	}
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ConnConfig{}, ErrConfigNotFound.Here().Append(path)
	}
	if err != nil {
		return ConnConfig{}, merry.Wrap(err)
	}
	return parseConnConfig(buf)
}

func parseConnConfig(buf []byte) (ConnConfig, error) {
	var cfg ConnConfig
	if err := toml.Unmarshal(buf, &cfg); err != nil {
		return ConnConfig{}, merry.Prependf(err, "parse config")
	}
	if secret := os.Getenv("WIMS_SECRET"); secret != "" {
		cfg.Secret = secret
	}
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		return ConnConfig{}, merry.New("config: base_url is required")
	}
	if cfg.Secret == "" {
		return ConnConfig{}, merry.New("config: secret is required")
	}
	if cfg.Lang == "" {
		cfg.Lang = defaultLang
	}
	return cfg, nil
}

func (c ConnConfig) ClientConfig() wims.Config {
	return wims.Config{
		BaseURL:       c.BaseURL,
		Secret:        c.Secret,
		Service:       c.Service,
		TrustAllCerts: c.TrustAllCerts,
		Debug:         c.Debug,
	}
}
