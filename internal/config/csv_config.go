package config

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dualpane/rc/internal/constants"
)

// Size display modes accepted in the config file.
const (
	SizeModeOff   = "off"
	SizeModeFiles = "files"
	SizeModeFull  = "full"
)

// Config represents the file manager configuration
type Config struct {
	// Pane settings
	ShowHidden bool   // Show dotfiles in both panes
	SizeMode   string // "off", "files" or "full"

	// Behaviour
	ConfirmQuit    bool          // Ask before quitting while jobs are visible
	CheckDiskSpace bool          // Refuse copies that cannot fit at the destination
	PollInterval   time.Duration // UI tick interval
	RenameTimeout  time.Duration // Foreground wait before a rename is backgrounded

	// Logging
	LogLevel string // zerolog level name
	LogFile  string // empty = default log directory
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ShowHidden:     false,
		SizeMode:       SizeModeFiles,
		ConfirmQuit:    true,
		CheckDiskSpace: true,
		PollInterval:   constants.EventPollInterval,
		RenameTimeout:  constants.RenameForegroundTimeout,
		LogLevel:       "info",
	}
}

// LoadConfigCSV loads configuration from a CSV file
// CSV format: key,value pairs
func LoadConfigCSV(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	// Missing config is not an error
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read config CSV: %w", err)
	}

	for i, record := range records {
		if i == 0 {
			// Skip header row if it looks like a header
			if len(record) >= 2 && strings.ToLower(record[0]) == "key" {
				continue
			}
		}

		if len(record) < 2 {
			continue
		}

		key := strings.TrimSpace(strings.ToLower(record[0]))
		value := strings.TrimSpace(record[1])

		switch key {
		case "show_hidden":
			cfg.ShowHidden = parseBool(value)
		case "size_mode":
			cfg.SizeMode = strings.ToLower(value)
		case "confirm_quit":
			cfg.ConfirmQuit = parseBool(value)
		case "check_disk_space":
			cfg.CheckDiskSpace = parseBool(value)
		case "poll_interval_ms":
			if v, err := strconv.Atoi(value); err == nil && v > 0 {
				cfg.PollInterval = time.Duration(v) * time.Millisecond
			}
		case "rename_timeout_ms":
			if v, err := strconv.Atoi(value); err == nil && v > 0 {
				cfg.RenameTimeout = time.Duration(v) * time.Millisecond
			}
		case "log_level":
			cfg.LogLevel = strings.ToLower(value)
		case "log_file":
			cfg.LogFile = value
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfigCSV saves configuration to a CSV file
// CSV format: key,value pairs
func SaveConfigCSV(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write([]string{"key", "value"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	records := [][]string{
		{"show_hidden", strconv.FormatBool(cfg.ShowHidden)},
		{"size_mode", cfg.SizeMode},
		{"confirm_quit", strconv.FormatBool(cfg.ConfirmQuit)},
		{"check_disk_space", strconv.FormatBool(cfg.CheckDiskSpace)},
		{"poll_interval_ms", strconv.FormatInt(cfg.PollInterval.Milliseconds(), 10)},
		{"rename_timeout_ms", strconv.FormatInt(cfg.RenameTimeout.Milliseconds(), 10)},
		{"log_level", cfg.LogLevel},
		{"log_file", cfg.LogFile},
	}

	for _, record := range records {
		// Skip empty strings and zero durations; booleans are always written
		if record[1] == "" || record[1] == "0" {
			continue
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// Validate checks values that cannot be defaulted silently.
func (c *Config) Validate() error {
	switch c.SizeMode {
	case SizeModeOff, SizeModeFiles, SizeModeFull:
	default:
		return fmt.Errorf("invalid size_mode %q (want off, files or full)", c.SizeMode)
	}
	return nil
}

// EffectiveLogFile returns the configured log file or the default location.
func (c *Config) EffectiveLogFile() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(LogDirectory(), constants.AppName+".log")
}

func parseBool(value string) bool {
	v := strings.ToLower(value)
	return v == "true" || v == "1" || v == "yes"
}
