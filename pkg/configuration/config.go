package configuration

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds the application configuration loaded from an INI-style file.
type Config struct {
	settings map[string]map[string]string
	filePath string
	mu       sync.RWMutex
}

var (
	globalConfig *Config
	once         sync.Once
)

// Initialize loads the global configuration. A missing file is created with
// defaults. If a settings.local.cfg exists next to the working directory it
// is merged on top of the base file (local overrides win).
func Initialize(configPath string) error {
	var err error
	once.Do(func() {
		globalConfig, err = loadConfig(configPath)
		if err != nil {
			return
		}
		localConfigPath := "settings.local.cfg"
		if _, statErr := os.Stat(localConfigPath); statErr == nil {
			// Merge errors are non-fatal, base config stays usable.
			_ = globalConfig.mergeFile(localConfigPath)
		}
	})
	return err
}

func loadConfig(filePath string) (*Config, error) {
	config := &Config{
		settings: make(map[string]map[string]string),
		filePath: filePath,
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		config.createDefaultConfig()
		if err := config.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %v", err)
		}
		return config, nil
	}
	if err := config.mergeFile(filePath); err != nil {
		return nil, err
	}
	return config, nil
}

// mergeFile parses an INI file into the settings map, overwriting existing keys.
func (c *Config) mergeFile(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	scanner := bufio.NewScanner(file)
	currentSection := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = line[1 : len(line)-1]
			if c.settings[currentSection] == nil {
				c.settings[currentSection] = make(map[string]string)
			}
			continue
		}
		if currentSection != "" && strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			c.settings[currentSection][key] = value
		}
	}
	return scanner.Err()
}

func (c *Config) createDefaultConfig() {
	c.settings = map[string]map[string]string{
		"Server": {
			"port":                 "8080",
			"bind":                 "127.0.0.1",
			"access_password_hash": "",
			"session_idle_minutes": "30",
			"session_reap_minutes": "5",
		},
		"Basic": {
			"batch_size":          "500",
			"max_gosub_depth":     "100",
			"max_for_depth":       "50",
			"max_call_depth":      "50",
			"max_function_steps":  "1000000",
			"rewrite_cache_size":  "512",
			"compile_cache_size":  "512",
			"name_cache_size":     "1024",
			"term_cols":           "80",
			"term_rows":           "25",
		},
		"FileSystem": {
			"database_path":         "retrobasic.db",
			"max_file_size_kb":      "256",
			"max_files_per_session": "100",
		},
		"Auth": {
			"jwt_secret":            "",
			"session_max_age_hours": "24",
		},
		"Debug": {
			"enable_debug_logging": "false",
			"log_level":            "INFO",
			"log_file":             "retrobasic.log",
			"log_max_size_mb":      "10",
			"log_areas":            "",
		},
	}
}

func (c *Config) saveToFile() error {
	file, err := os.Create(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for section, keys := range c.settings {
		fmt.Fprintf(w, "[%s]\n", section)
		for key, value := range keys {
			fmt.Fprintf(w, "%s = %s\n", key, value)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func (c *Config) get(section, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if keys, ok := c.settings[section]; ok {
		if value, ok := keys[key]; ok {
			return value, true
		}
	}
	return "", false
}

// GetString returns a string setting or the given default.
func GetString(section, key, defaultValue string) string {
	if globalConfig == nil {
		return defaultValue
	}
	if value, ok := globalConfig.get(section, key); ok {
		return value
	}
	return defaultValue
}

// GetInt returns an integer setting or the given default.
func GetInt(section, key string, defaultValue int) int {
	if globalConfig == nil {
		return defaultValue
	}
	if value, ok := globalConfig.get(section, key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetBool returns a boolean setting or the given default.
func GetBool(section, key string, defaultValue bool) bool {
	if globalConfig == nil {
		return defaultValue
	}
	if value, ok := globalConfig.get(section, key); ok {
		switch strings.ToLower(value) {
		case "true", "yes", "1", "on":
			return true
		case "false", "no", "0", "off":
			return false
		}
	}
	return defaultValue
}
