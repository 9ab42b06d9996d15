// Package config defines the necessary types to configure the session client.
// An example config file config.yaml is provided in the repository.
package config

import (
	"os"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP      HTTPServer `yaml:"http"`
	API       API        `yaml:"api"`
	Storage   Storage    `yaml:"storage"`
	Token     Token      `yaml:"token"`
	Notify    Notify     `yaml:"notify"`
	Guard     Guard      `yaml:"guard"`
	Dashboard Dashboard  `yaml:"dashboard"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:"localhost:8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

// API describes the backend the request dispatcher talks to.
type API struct {
	BaseURL   string        `yaml:"baseURL" default:"http://localhost:5000/api"`
	LoginPath string        `yaml:"loginPath" default:"Auth/Login"`
	Timeout   time.Duration `yaml:"timeout" default:"30s"`
}

type StorageBackend string

const (
	StorageBackendFile   StorageBackend = "file"
	StorageBackendValKey StorageBackend = "valkey"
	StorageBackendMemory StorageBackend = "memory"
	StorageBackendNone   StorageBackend = "none"
)

type Storage struct {
	Backend StorageBackend `yaml:"backend" default:"file"`
	Key     string         `yaml:"key" default:"token"`
	File    FileStorage    `yaml:"file"`
	ValKey  ValKey         `yaml:"valkey"`
}

type FileStorage struct {
	Path string `yaml:"path" default:"$HOME/.session-client/token"`
}

// ExpandedPath resolves environment variables in the configured path.
func (f FileStorage) ExpandedPath() string {
	return os.ExpandEnv(f.Path)
}

type ValKey struct {
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	Prefix   string              `yaml:"prefix" default:"session-client"`
}

type Token struct {
	// SignatureAlgorithms lists the JWS algorithms accepted when decoding.
	// The signature itself is never verified on the client.
	SignatureAlgorithms []string `yaml:"signatureAlgorithms"`
}

type Notify struct {
	CatalogPath string        `yaml:"catalogPath"`
	Life        time.Duration `yaml:"life" default:"3s"`
}

type Guard struct {
	LoginPath   string   `yaml:"loginPath" default:"/login"`
	HomePath    string   `yaml:"homePath" default:"/pages/empty"`
	PublicPaths []string `yaml:"publicPaths"`
}

type Dashboard struct {
	CSRFSecret commoncfg.SourceRef `yaml:"csrfSecret"`
	FormCookie CookieTemplate      `yaml:"formCookie"`
}

type CookieSameSite string

const (
	CookieSameSiteNone   CookieSameSite = "None"
	CookieSameSiteLax    CookieSameSite = "Lax"
	CookieSameSiteStrict CookieSameSite = "Strict"
)

type CookieTemplate struct {
	Name     string         `yaml:"name" default:"__Host-sc-form"`
	MaxAge   int            `yaml:"maxAge" default:"3600"`
	Path     string         `yaml:"path" default:"/"`
	Domain   string         `yaml:"domain"`
	Secure   bool           `yaml:"secure" default:"true"`
	SameSite CookieSameSite `yaml:"sameSite" default:"Strict"`
	HTTPOnly bool           `yaml:"httpOnly" default:"true"`
}
