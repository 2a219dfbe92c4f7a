// Package config provides functionality for loading and saving configuration
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/uberswe/zhsbooker/pkg/domain"
)

// DefaultConfigFileName is the default name for the configuration file
const DefaultConfigFileName = "config.json"

// Environment variables that fill values missing from the file.
const (
	EnvMail     = "ZHS_MAIL"
	EnvPassword = "ZHS_PASSWORD"
	EnvCountry  = "ZHS_COUNTRY"
	EnvIBAN     = "ZHS_IBAN"
	EnvBIC      = "ZHS_BIC"
)

// NormalizePath appends the .json extension when the path lacks it.
func NormalizePath(path string) string {
	if path == "" {
		return DefaultConfigFileName
	}
	if !strings.HasSuffix(path, ".json") {
		return path + ".json"
	}
	return path
}

// Load reads the configuration file and fills empty credentials from the
// environment.
func Load(configFileName string) (*domain.Config, error) {
	data, err := os.ReadFile(configFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg domain.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)

	log.Debug().
		Str("file", configFileName).
		Int("courses", len(cfg.Courses)).
		Msg("Configuration loaded")

	return &cfg, nil
}

// applyEnv fills empty fields from the environment
func applyEnv(cfg *domain.Config) {
	fill := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
			log.Debug().Str("env", key).Msg("Using value from environment")
		}
	}
	fill(&cfg.Login.Mail, EnvMail)
	fill(&cfg.Login.Password, EnvPassword)
	fill(&cfg.Login.Country, EnvCountry)
	fill(&cfg.Bank.IBAN, EnvIBAN)
	fill(&cfg.Bank.BIC, EnvBIC)
}

// Validate checks that a configuration can drive a booking run.
func Validate(cfg *domain.Config) error {
	var errs []error
	if cfg.Login.Mail == "" {
		errs = append(errs, errors.New("login.mail is required"))
	}
	if cfg.Login.Password == "" {
		errs = append(errs, errors.New("login.password is required"))
	}
	if cfg.Bank.IBAN == "" {
		errs = append(errs, errors.New("bank.IBAN is required"))
	}
	if len(cfg.Courses) == 0 {
		errs = append(errs, errors.New("at least one course is required"))
	}
	for _, c := range cfg.Courses {
		if strings.TrimSpace(c.Name) == "" {
			errs = append(errs, errors.New("course names must not be empty"))
			break
		}
	}
	return errors.Join(errs...)
}

// Template returns an example configuration for new users.
func Template() *domain.Config {
	return &domain.Config{
		Login: domain.Login{
			Mail:     "you@example.com",
			Password: "",
			Country:  "Deutschland",
		},
		Bank: domain.Bank{
			IBAN: "DE00 0000 0000 0000 0000 00",
			BIC:  "",
		},
		Courses: domain.Courses{
			{Name: "Yoga"},
			{Name: "Tennis", Criteria: domain.Criteria{Detail: "B2"}},
		},
	}
}

// Save writes cfg as indented JSON with the courses in their configured
// order. The file is replaced atomically and is readable only by the owner.
func Save(cfg *domain.Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("file", path).Int("courses", len(cfg.Courses)).Msg("Configuration saved")
	return nil
}
