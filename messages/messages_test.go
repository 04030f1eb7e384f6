package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Pairs(t *testing.T) {
	m := New("k", "a", "1", "b", "2", "dangling")
	assert.Equal(t, "k", m.Key)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, m.Params)
	assert.Equal(t, "k(a=1, b=2)", m.String())

	assert.Nil(t, New("bare").Params)
	assert.Equal(t, "bare", New("bare").String())
}

func TestRender(t *testing.T) {
	cat := MustLoad()
	assert.Equal(t, "", Render(cat, nil))
	assert.Equal(t, "Label must be at least 2 characters long",
		Render(cat, New("template.column.labelTooShort", "min", "2")))
	assert.Equal(t, "no.such.key", Render(cat, New("no.such.key")))
	assert.Equal(t, "k(a=1)", Render(nil, New("k", "a", "1")))
}

func TestLoad_AllBundlesShareKeys(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, cat.bundles)

	base := cat.fallback
	for _, b := range cat.bundles {
		for key := range base.messages {
			assert.True(t, b.Has(key), "bundle %s is missing %s", b.Tag, key)
		}
	}
}

func TestForLocale(t *testing.T) {
	cat := MustLoad()

	assert.Equal(t, "Ce champ est obligatoire", cat.ForLocale("fr-CA").Get("requisition.lineItem.required", nil))
	assert.Equal(t, "Este campo é obrigatório", cat.ForLocale("pt-BR").Get("requisition.lineItem.required", nil))
	assert.Equal(t, "This field is required", cat.ForLocale("en-US").Get("requisition.lineItem.required", nil))

	// Unknown and malformed locales fall back to English.
	assert.Equal(t, "This field is required", cat.ForLocale("ja").Get("requisition.lineItem.required", nil))
	assert.Equal(t, "This field is required", cat.ForLocale("!!").Get("requisition.lineItem.required", nil))
}

func TestParse_DefaultLocaleFirst(t *testing.T) {
	cat, err := Parse(map[string][]byte{
		"de": []byte(`greeting: "Hallo ${name}"`),
		"en": []byte(`greeting: "Hello ${name}"`),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "de"}, cat.Locales())
	assert.Equal(t, "Hello Ada", cat.Get("greeting", map[string]string{"name": "Ada"}))
	assert.Equal(t, "Hallo Ada", cat.ForLocale("de-AT").Get("greeting", map[string]string{"name": "Ada"}))
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(map[string][]byte{})
	assert.Error(t, err)

	_, err = Parse(map[string][]byte{"en": []byte("- not\n- a map")})
	assert.Error(t, err)
}
