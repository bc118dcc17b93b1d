// internal/config/model.go
//
// Typed configuration model for Bookshelf.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `conf/.env`                         – dotenv values,
//   • `conf/global.yaml`                           – primary static file,
//   • `BOOKSHELF_`-prefixed environment overrides  – highest precedence.
//
// Any secret-bearing string that begins with `vault:` is resolved through
// the Vault client after unmarshalling, so the rest of the program never
// sees Vault URIs.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr   string `koanf:"listen_addr"   validate:"required,hostname_port"`
	ForceHTTPS   bool   `koanf:"force_https"`
	SecureCookie bool   `koanf:"secure_cookie"`
	CSRFKey      string `koanf:"csrf_key"` // base64url, ≥ 32 bytes decoded; random when empty
}

//
// Backend API section
//

// API points the frontend at the book-catalogue REST backend.
type API struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout"  validate:"gte=0"`
}

//
// Session store section
//

// Store selects the persistent session store backend.  Only the fields of
// the chosen driver are consulted.
type Store struct {
	Driver        string        `koanf:"driver"         validate:"required,oneof=memory file mysql sqlite redis"`
	Path          string        `koanf:"path"           validate:"required_if=Driver file"`
	DSN           string        `koanf:"dsn"            validate:"required_if=Driver mysql,required_if=Driver sqlite"`
	RedisAddr     string        `koanf:"redis_addr"     validate:"required_if=Driver redis"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"       validate:"gte=0"`
	Prefix        string        `koanf:"prefix"`
	TTL           time.Duration `koanf:"ttl"            validate:"gte=0"`
}

//
// Browser-session registry section
//

// Sessions tunes the in-memory registry of per-browser session managers.
type Sessions struct {
	IdleTTL       time.Duration `koanf:"idle_ttl"       validate:"gt=0"`
	MaxEntries    int           `koanf:"max_entries"    validate:"gte=0"`
	EvictInterval time.Duration `koanf:"evict_interval" validate:"gt=0"`
}

//
// Log section
//

// Log configures the zap/lumberjack sink.  A relative Dir is resolved
// against Paths.Root.
type Log struct {
	Dir   string `koanf:"dir"   validate:"required"`
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // BOOKSHELF_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	API      API      `koanf:"api"`
	Store    Store    `koanf:"store"`
	Sessions Sessions `koanf:"sessions"`
	Log      Log      `koanf:"log"`
	Paths    Paths    `koanf:"-"`
}

// Defaults returns the baseline every layer overlays.
func Defaults() Config {
	return Config{
		HTTP: HTTP{ListenAddr: ":8080"},
		API: API{
			BaseURL: "http://127.0.0.1:8000/",
			Timeout: 10 * time.Second,
		},
		Store: Store{
			Driver: "file",
			Path:   "var/sessions.json",
			Prefix: "bookshelf:session:",
		},
		Sessions: Sessions{
			IdleTTL:       30 * time.Minute,
			MaxEntries:    10000,
			EvictInterval: 5 * time.Minute,
		},
		Log: Log{Dir: "logs", Level: "info"},
	}
}
