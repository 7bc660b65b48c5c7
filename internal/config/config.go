package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
	IdleTimeoutMS  int    `yaml:"idle_timeout_ms"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
}

type Observability struct {
	LogLevel       string `yaml:"log_level"`       // "debug","info","warn","error"
	PrometheusPath string `yaml:"prometheus_path"` // e.g. "/metrics"
}

// Global is the coarse flood-control window applied to every non-skipped
// request, keyed by client IP.
type Global struct {
	RequestsPerWindow int `yaml:"requests_per_window"`
	WindowMS          int `yaml:"window_ms"`
}

type Limits struct {
	Global          Global   `yaml:"global"`
	SweepIntervalMS int      `yaml:"sweep_interval_ms"`
	SkipPaths       []string `yaml:"skip_paths"`
	SkipPrefixes    []string `yaml:"skip_prefixes"`
}

type Identity struct {
	Salt string `yaml:"salt"`
}

type Redis struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type Audit struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Buffer     int    `yaml:"buffer"`
}

type APIKey struct {
	ID     string `yaml:"id"`
	Secret string `yaml:"secret"`
}

type Auth struct {
	Header string   `yaml:"header"`
	Keys   []APIKey `yaml:"keys"`
}

// Quota is a per-route dual-window ceiling. A zero limit disables that
// window; a route without a quota block only passes the global check.
type Quota struct {
	Endpoint      string `yaml:"endpoint"`
	HourlyLimit   int    `yaml:"hourly_limit"`
	HourlyWindowS int    `yaml:"hourly_window_s"`
	DailyLimit    int    `yaml:"daily_limit"`
	DailyWindowS  int    `yaml:"daily_window_s"`
	Message       string `yaml:"message"`
}

type Route struct {
	ID    string `yaml:"id"`
	Match struct {
		PathPrefix string   `yaml:"path_prefix"`
		Methods    []string `yaml:"methods"`
	} `yaml:"match"`

	Upstream struct {
		URL       string `yaml:"url"`
		TimeoutMS int    `yaml:"timeout_ms"`
	} `yaml:"upstream"`

	Quota *Quota `yaml:"quota"`
}

type Root struct {
	Server        Server        `yaml:"server"`
	Observability Observability `yaml:"observability"`
	Limits        Limits        `yaml:"limits"`
	Identity      Identity      `yaml:"identity"`
	Redis         Redis         `yaml:"redis"`
	Audit         Audit         `yaml:"audit"`
	Auth          Auth          `yaml:"auth"`
	Routes        []Route       `yaml:"routes"`
}

func (s Server) ReadTimeout() time.Duration {
	if s.ReadTimeoutMS == 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

func (s Server) WriteTimeout() time.Duration {
	if s.WriteTimeoutMS == 0 {
		return 10 * time.Second
	}
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

func (s Server) IdleTimeout() time.Duration {
	if s.IdleTimeoutMS == 0 {
		return 60 * time.Second
	}
	return time.Duration(s.IdleTimeoutMS) * time.Millisecond
}

func (s Server) MaxBody() int64 {
	if s.MaxBodyBytes == 0 {
		return 10 << 20
	}
	return s.MaxBodyBytes
} // default 10MB

func (g Global) Window() time.Duration {
	if g.WindowMS <= 0 {
		return time.Minute
	}
	return time.Duration(g.WindowMS) * time.Millisecond
}

func (l Limits) SweepInterval() time.Duration {
	if l.SweepIntervalMS <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(l.SweepIntervalMS) * time.Millisecond
}

func (q Quota) HourlyWindow() time.Duration {
	if q.HourlyWindowS <= 0 {
		return time.Hour
	}
	return time.Duration(q.HourlyWindowS) * time.Second
}

func (q Quota) DailyWindow() time.Duration {
	if q.DailyWindowS <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(q.DailyWindowS) * time.Second
}

func Load(path string) (*Root, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Root
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.PrometheusPath == "" {
		cfg.Observability.PrometheusPath = "/metrics"
	}
	if cfg.Limits.Global.RequestsPerWindow <= 0 {
		cfg.Limits.Global.RequestsPerWindow = 70
	}
	if cfg.Auth.Header == "" {
		cfg.Auth.Header = "X-API-Key"
	}
	if cfg.Identity.Salt == "" {
		cfg.Identity.Salt = "quotagate"
	}
	if cfg.Audit.Enabled && cfg.Audit.Path == "" {
		cfg.Audit.Path = "audit.log"
	}
	for i := range cfg.Routes {
		r := &cfg.Routes[i]
		if r.Upstream.TimeoutMS <= 0 {
			r.Upstream.TimeoutMS = 3000
		}
		if r.Quota != nil {
			if r.Quota.Endpoint == "" {
				return nil, fmt.Errorf("route %q: quota requires an endpoint name", r.ID)
			}
			if r.Quota.HourlyLimit <= 0 && r.Quota.DailyLimit <= 0 {
				return nil, fmt.Errorf("route %q: quota requires an hourly or daily limit", r.ID)
			}
		}
	}

	return &cfg, nil
}
