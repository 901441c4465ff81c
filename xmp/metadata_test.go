package xmp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseField(t *testing.T) {
	for _, f := range Fields {
		got, err := ParseField(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := ParseField("make")
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Equal(t, "Field(42)", Field(42).String())
}

func TestSetClearsBlankValues(t *testing.T) {
	for _, f := range Fields {
		for _, blank := range []string{"", " ", "\t\n  "} {
			m := New()
			require.NoError(t, m.Set(f, "something"))
			require.NoError(t, m.Set(f, blank))

			_, ok := m.Get(f)
			assert.False(t, ok, "%s set to %q should be unset", f, blank)
		}
	}
}

func TestSetSplitsListFields(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		in    string
		want  string
		items []string
	}{
		{"creator comma", FieldCreator, "Alice, Bob", "Alice, Bob", []string{"Alice", "Bob"}},
		{"creator semicolon", FieldCreator, "Alice;Bob;  Carol", "Alice, Bob, Carol", []string{"Alice", "Bob", "Carol"}},
		{"creator keeps order and repeats", FieldCreator, "Bob, Alice, Bob", "Bob, Alice, Bob", []string{"Bob", "Alice", "Bob"}},
		{"subject drops repeats", FieldSubject, "red, orange; red", "red, orange", []string{"red", "orange"}},
		{"empty items dropped", FieldSubject, "a,, b ,", "a, b", []string{"a", "b"}},
		{"single", FieldSubject, "sunset", "sunset", []string{"sunset"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			require.NoError(t, m.Set(tt.field, tt.in))

			got, ok := m.Get(tt.field)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.items, m.Items(tt.field))
		})
	}
}

func TestSetOnlySeparatorsClears(t *testing.T) {
	m := New()
	require.NoError(t, m.SetCreator(" , ; "))
	assert.Equal(t, "", m.Creator())
	assert.True(t, m.IsEmpty())
}

func TestScalarFieldsKeepValueVerbatim(t *testing.T) {
	m := New()
	require.NoError(t, m.SetDescription("  A, B; C  "))
	assert.Equal(t, "  A, B; C  ", m.Description())
	assert.Equal(t, []string{"  A, B; C  "}, m.Items(FieldDescription))
}

func TestSetValue(t *testing.T) {
	m := New()
	s := "Sunset"

	require.NoError(t, m.SetValue(FieldTitle, "Dawn"))
	assert.Equal(t, "Dawn", m.Title())

	require.NoError(t, m.SetValue(FieldTitle, &s))
	assert.Equal(t, "Sunset", m.Title())

	require.NoError(t, m.SetValue(FieldTitle, nil))
	assert.Equal(t, "", m.Title())

	var nilString *string
	require.NoError(t, m.SetValue(FieldTitle, nilString))

	for _, bad := range []any{42, 3.5, true, []string{"a"}, map[string]string{}} {
		err := m.SetValue(FieldTitle, bad)
		assert.True(t, errors.Is(err, ErrInvalidFieldType), "value %#v", bad)
	}

	assert.ErrorIs(t, m.SetValue(Field(-1), "x"), ErrUnknownField)
}

func TestSetRejectsInvalidCharacters(t *testing.T) {
	for _, bad := range []string{"a\x01b", "\xff", "bad\xffutf8", "nul\x00", "\ufffe"} {
		for _, f := range Fields {
			m := New()
			require.NoError(t, m.Set(f, "kept"))

			err := m.Set(f, bad)
			assert.ErrorIs(t, err, ErrInvalidFieldValue, "%s set to %q", f, bad)
			assert.Equal(t, "kept", m.get(f), "%s changed by rejected value", f)
		}
	}

	m := New()
	assert.ErrorIs(t, m.SetTitle("a\x01b"), ErrInvalidFieldValue)
	assert.ErrorIs(t, m.SetValue(FieldSubject, "red, \x1b[0m"), ErrInvalidFieldValue)
	assert.True(t, m.IsEmpty())
}

func TestControlWhitespaceRoundTrips(t *testing.T) {
	for _, value := range []string{"tab\there", "line\nbreak", "carriage\rreturn", "emoji \U0001F305"} {
		m := New()
		require.NoError(t, m.SetTitle(value))

		doc, err := m.ToXML(false)
		require.NoError(t, err)
		parsed, err := Parse(doc)
		require.NoError(t, err)
		assert.True(t, parsed.Equal(m), "%q round trips as %q", value, parsed.Title())
	}
}

func TestTypedAccessors(t *testing.T) {
	m := New()
	require.NoError(t, m.SetCreator("John Doe"))
	require.NoError(t, m.SetRights("CC-BY"))
	require.NoError(t, m.SetTitle("A Beautiful Sunset"))
	require.NoError(t, m.SetDescription("A vivid depiction of a sunset over the ocean."))
	require.NoError(t, m.SetSubject("sunset, ocean, photography"))
	require.NoError(t, m.SetInstructions("Enhance colors slightly."))
	m.SetComment("This is a comment.")
	require.NoError(t, m.SetAltText("A beautiful sunset"))
	m.SetExtDescription("An orange sun sinks below the horizon.")

	assert.Equal(t, "John Doe", m.Creator())
	assert.Equal(t, "CC-BY", m.Rights())
	assert.Equal(t, "A Beautiful Sunset", m.Title())
	assert.Equal(t, "A vivid depiction of a sunset over the ocean.", m.Description())
	assert.Equal(t, "sunset, ocean, photography", m.Subject())
	assert.Equal(t, "Enhance colors slightly.", m.Instructions())
	assert.Equal(t, "This is a comment.", m.Comment())
	assert.Equal(t, "A beautiful sunset", m.AltText())
	assert.Equal(t, "An orange sun sinks below the horizon.", m.ExtDescription())
	assert.False(t, m.IsEmpty())

	m.Clear(FieldTitle)
	assert.Equal(t, "", m.Title())
}

func TestEqual(t *testing.T) {
	a, b := New(), New()
	assert.True(t, a.Equal(b))

	require.NoError(t, a.SetSubject("red, orange"))
	assert.False(t, a.Equal(b))

	require.NoError(t, b.SetSubject("red; orange"))
	assert.True(t, a.Equal(b))

	var nilMeta *Metadata
	assert.False(t, a.Equal(nilMeta))
	assert.True(t, nilMeta.Equal(nil))
}
