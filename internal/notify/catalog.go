package notify

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/openkcm/session-client/internal/failure"
)

const (
	defaultSummary = "Hata"
	defaultLife    = 3 * time.Second
)

// Catalog holds the user facing text for each failure kind.
type Catalog struct {
	Summary  string
	Life     time.Duration
	Messages map[failure.Kind]string
}

// DefaultCatalog returns the built-in Turkish catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Summary: defaultSummary,
		Life:    defaultLife,
		Messages: map[failure.Kind]string{
			failure.KindUnreachable:  "API adresine ulaşılamıyor",
			failure.KindBadRequest:   "Geçersiz istek",
			failure.KindUnauthorized: "Oturum süreniz doldu. Lütfen tekrar giriş yapın.",
			failure.KindForbidden:    "Yetkisiz erişim",
			failure.KindNotFound:     "İstenilen kaynak bulunamadı",
			failure.KindServerError:  "Sunucu hatası",
			failure.KindUnexpected:   "Beklenmeyen bir hata oluştu",
		},
	}
}

type catalogFile struct {
	Summary  string                  `yaml:"summary"`
	Life     string                  `yaml:"life"`
	Messages map[failure.Kind]string `yaml:"messages"`
}

// LoadCatalog reads a YAML catalog. Entries it leaves out keep their
// default text.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}

	catalog := DefaultCatalog()
	if file.Summary != "" {
		catalog.Summary = file.Summary
	}
	if file.Life != "" {
		life, err := time.ParseDuration(file.Life)
		if err != nil {
			return nil, fmt.Errorf("parsing catalog life: %w", err)
		}
		catalog.Life = life
	}
	for kind, text := range file.Messages {
		if _, ok := catalog.Messages[kind]; !ok {
			return nil, fmt.Errorf("unknown failure kind %q in catalog", kind)
		}
		catalog.Messages[kind] = text
	}

	return catalog, nil
}

// Message renders a failure. Bad request and forbidden failures show the
// server supplied list, one entry per line, when there is one.
func (c *Catalog) Message(f *failure.RequestFailure) Message {
	detail := c.Messages[f.Kind]
	switch f.Kind {
	case failure.KindBadRequest, failure.KindForbidden:
		if len(f.ErrorMessages) > 0 {
			detail = strings.Join(f.ErrorMessages, "\n")
		}
	}
	if detail == "" {
		detail = c.Messages[failure.KindUnexpected]
	}

	return Message{
		Severity: SeverityError,
		Summary:  c.Summary,
		Detail:   detail,
		Life:     c.Life,
	}
}
