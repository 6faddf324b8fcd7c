// Package config provides YAML-driven process configuration for the
// cmd/pgwire CLI, with environment variable substitution and file
// hot-reload, mirrored from JeelKantaria-db-bouncer's internal/config
// package.
package config

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for both the serve and proxy
// subcommands. Only the fields relevant to the active mode are read.
type Config struct {
	Listen  ListenConfig  `yaml:"listen"`
	Admin   AdminConfig   `yaml:"admin"`
	Auth    AuthConfig    `yaml:"auth"`
	Proxy   ProxyConfig   `yaml:"proxy"`
}

// ListenConfig configures the Postgres-protocol listener.
type ListenConfig struct {
	Address string `yaml:"address"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

// TLSEnabled reports whether both a certificate and key were configured.
func (l ListenConfig) TLSEnabled() bool {
	return l.TLSCert != "" && l.TLSKey != ""
}

// AdminConfig configures the /metrics and /healthz HTTP surface.
type AdminConfig struct {
	Address string `yaml:"address"`
}

// AuthConfig selects and configures the authentication strategy.
type AuthConfig struct {
	Strategy string `yaml:"strategy"` // "trust", "cleartext", "md5", "scram-sha-256"
}

// ProxyConfig configures the upstream dialed by the proxy subcommand and
// the query rewrite/reject policy applied to it.
type ProxyConfig struct {
	Upstream    string            `yaml:"upstream"`
	DialTimeout time.Duration     `yaml:"dial_timeout"`
	RewriteSQL  map[string]string `yaml:"rewrite_sql"`
	RejectSQL   map[string]string `yaml:"reject_sql"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} occurrences with the named
// environment variable's value, leaving unmatched names untouched.
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(name)); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file, substituting ${VAR} references
// against the process environment first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pgwire: reading config file: %w", err)
	}

	data = substituteEnvVars(data)

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("pgwire: parsing config file: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen.Address == "" {
		cfg.Listen.Address = "0.0.0.0:5432"
	}
	if cfg.Admin.Address == "" {
		cfg.Admin.Address = "127.0.0.1:9090"
	}
	if cfg.Auth.Strategy == "" {
		cfg.Auth.Strategy = "trust"
	}
	if cfg.Proxy.DialTimeout == 0 {
		cfg.Proxy.DialTimeout = 5 * time.Second
	}
}

// Watcher reloads a config file on write and hands the new Config to
// callback. It applies nothing itself: what a reload changes is decided
// entirely by callback.
type Watcher struct {
	path     string
	callback func(*Config)
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
}

// NewWatcher starts watching path for writes and invokes callback (after a
// debounce window) with the freshly reloaded Config.
func NewWatcher(path string, callback func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("pgwire: creating config watcher: %w", err)
	}

	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("pgwire: watching config file: %w", err)
	}

	cw := &Watcher{
		path:     path,
		callback: callback,
		watcher:  w,
		stopCh:   make(chan struct{}),
	}

	go cw.run()
	return cw, nil
}

func (cw *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, cw.reload)
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("pgwire: config watcher error: %v", err)
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *Watcher) reload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cfg, err := Load(cw.path)
	if err != nil {
		log.Printf("pgwire: config hot-reload failed: %v", err)
		return
	}

	log.Printf("pgwire: configuration reloaded from %s", cw.path)
	cw.callback(cfg)
}

// Stop terminates the watcher goroutine and closes the underlying
// fsnotify.Watcher.
func (cw *Watcher) Stop() error {
	close(cw.stopCh)
	return cw.watcher.Close()
}
