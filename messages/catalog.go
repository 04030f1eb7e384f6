package messages

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed bundles/*.yaml
var bundleFS embed.FS

// DefaultLocale is used when no bundle matches the requested locale.
var DefaultLocale = language.English

// Bundle is the set of messages for one locale.
type Bundle struct {
	Tag      language.Tag
	messages map[string]string
}

// Get implements Lookup.
func (b *Bundle) Get(key string, params map[string]string) string {
	text, ok := b.messages[key]
	if !ok {
		return key
	}
	return interpolate(text, params)
}

// Has reports whether the bundle defines key.
func (b *Bundle) Has(key string) bool {
	_, ok := b.messages[key]
	return ok
}

// Catalog is a collection of bundles with locale matching.
type Catalog struct {
	tags     []language.Tag
	bundles  []*Bundle
	matcher  language.Matcher
	fallback *Bundle
}

// Load reads the embedded bundles.
func Load() (*Catalog, error) {
	entries, err := bundleFS.ReadDir("bundles")
	if err != nil {
		return nil, fmt.Errorf("messages: read bundles: %w", err)
	}
	raw := make(map[string][]byte, len(entries))
	for _, e := range entries {
		data, err := bundleFS.ReadFile(path.Join("bundles", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("messages: read %s: %w", e.Name(), err)
		}
		raw[strings.TrimSuffix(e.Name(), ".yaml")] = data
	}
	return Parse(raw)
}

// MustLoad is Load for process startup; it panics on a broken bundle.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalog from locale -> YAML document pairs.
func Parse(docs map[string][]byte) (*Catalog, error) {
	c := &Catalog{}
	// The default locale goes first so the matcher falls back to it.
	ordered := make([]string, 0, len(docs))
	for locale := range docs {
		ordered = append(ordered, locale)
	}
	sortLocales(ordered)

	for _, locale := range ordered {
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("messages: bad locale %q: %w", locale, err)
		}
		var msgs map[string]string
		if err := yaml.Unmarshal(docs[locale], &msgs); err != nil {
			return nil, fmt.Errorf("messages: decode %s: %w", locale, err)
		}
		b := &Bundle{Tag: tag, messages: msgs}
		c.tags = append(c.tags, tag)
		c.bundles = append(c.bundles, b)
		if tag.String() == DefaultLocale.String() {
			c.fallback = b
		}
	}
	if len(c.bundles) == 0 {
		return nil, fmt.Errorf("messages: no bundles")
	}
	if c.fallback == nil {
		c.fallback = c.bundles[0]
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

func sortLocales(locales []string) {
	def := DefaultLocale.String()
	sort.Slice(locales, func(i, j int) bool {
		if (locales[i] == def) != (locales[j] == def) {
			return locales[i] == def
		}
		return locales[i] < locales[j]
	})
}

// ForLocale returns the bundle best matching locale (a BCP 47 tag such as
// "pt-BR"). Unparseable locales get the default bundle.
func (c *Catalog) ForLocale(locale string) *Bundle {
	tag, err := language.Parse(locale)
	if err != nil {
		return c.fallback
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No {
		return c.fallback
	}
	return c.bundles[idx]
}

// Get implements Lookup using the default bundle.
func (c *Catalog) Get(key string, params map[string]string) string {
	return c.fallback.Get(key, params)
}

// Locales lists the available bundle tags.
func (c *Catalog) Locales() []string {
	out := make([]string, len(c.tags))
	for i, t := range c.tags {
		out[i] = t.String()
	}
	return out
}
