package email

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/osteele/liquid"
	"gopkg.in/yaml.v3"
)

// Template ids shipped in the built-in catalog.
const (
	TemplateContactConfirmation = "contact-confirmation"
	TemplateInquiryAutoReply    = "inquiry-auto-reply"
)

//go:embed templates.yaml
var defaultCatalogYAML []byte

// CatalogTemplate is one locally rendered template.
type CatalogTemplate struct {
	Subject string `yaml:"subject"`
	HTML    string `yaml:"html"`
	Text    string `yaml:"text"`
}

// Rendered is a catalog template with its merge fields applied.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// TemplateCatalog renders templated sends for transports that have no
// server-side template store. Templates use Liquid syntax.
type TemplateCatalog struct {
	engine    *liquid.Engine
	templates map[string]CatalogTemplate

	mu     sync.Mutex
	parsed map[string]*liquid.Template
}

type catalogFile struct {
	Templates map[string]CatalogTemplate `yaml:"templates"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *TemplateCatalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("email: built-in template catalog is invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML catalog from path and layers it over the built-in one.
func LoadCatalog(path string) (*TemplateCatalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template catalog: %w", err)
	}
	extra, err := ParseCatalog(raw)
	if err != nil {
		return nil, err
	}
	for id, tpl := range extra.templates {
		c.templates[id] = tpl
	}
	return c, nil
}

// ParseCatalog parses a YAML catalog and checks that every template compiles.
func ParseCatalog(raw []byte) (*TemplateCatalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}
	c := &TemplateCatalog{
		engine:    liquid.NewEngine(),
		templates: make(map[string]CatalogTemplate, len(file.Templates)),
		parsed:    make(map[string]*liquid.Template),
	}
	for id, tpl := range file.Templates {
		if tpl.Subject == "" {
			return nil, fmt.Errorf("template %q: subject is required", id)
		}
		for _, src := range []string{tpl.Subject, tpl.HTML, tpl.Text} {
			if _, err := c.engine.ParseString(src); err != nil {
				return nil, fmt.Errorf("template %q: %w", id, err)
			}
		}
		c.templates[id] = tpl
	}
	return c, nil
}

// Has reports whether id is in the catalog.
func (c *TemplateCatalog) Has(id string) bool {
	_, ok := c.templates[id]
	return ok
}

// Render applies data to the template id.
func (c *TemplateCatalog) Render(id string, data map[string]any) (Rendered, error) {
	tpl, ok := c.templates[id]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: template %q is not in the catalog", ErrInvalidTemplateID, id)
	}
	bindings := liquid.Bindings(data)

	var out Rendered
	var err error
	if out.Subject, err = c.render(id+"#subject", tpl.Subject, bindings); err != nil {
		return Rendered{}, err
	}
	if out.HTML, err = c.render(id+"#html", tpl.HTML, bindings); err != nil {
		return Rendered{}, err
	}
	if out.Text, err = c.render(id+"#text", tpl.Text, bindings); err != nil {
		return Rendered{}, err
	}
	return out, nil
}

func (c *TemplateCatalog) render(key, src string, bindings liquid.Bindings) (string, error) {
	if src == "" {
		return "", nil
	}
	c.mu.Lock()
	t, ok := c.parsed[key]
	if !ok {
		var err error
		t, err = c.engine.ParseString(src)
		if err != nil {
			c.mu.Unlock()
			return "", fmt.Errorf("parse %s: %w", key, err)
		}
		c.parsed[key] = t
	}
	c.mu.Unlock()

	out, err := t.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", key, err)
	}
	return out, nil
}
