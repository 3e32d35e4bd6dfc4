package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRequestExcerpt(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	assert.Equal(t,
		"Generate MCQs for upload aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee page 12",
		RequestExcerpt(id, 12))
}

func TestResponseExcerpt(t *testing.T) {
	t.Parallel()

	qs := []*Question{
		{LineIndex: 0, Stem: "What is H2O?"},
		{LineIndex: 2, Stem: "Boiling point?"},
		{LineIndex: 5, Stem: "Freezing point?"},
		{LineIndex: 9, Stem: "Not included"},
	}

	assert.Equal(t, "0: What is H2O? | 2: Boiling point? | 5: Freezing point?", ResponseExcerpt(qs))
	assert.Equal(t, "0: What is H2O?", ResponseExcerpt(qs[:1]))
	assert.Equal(t, "", ResponseExcerpt(nil))
}

func TestResolveLanguage(t *testing.T) {
	t.Parallel()

	bn := LanguageBangla
	bogus := Language("fr")

	assert.Equal(t, LanguageBangla, ResolveLanguage("bn", nil))
	assert.Equal(t, LanguageEnglish, ResolveLanguage("en", &bn))
	assert.Equal(t, LanguageBangla, ResolveLanguage("", &bn))
	assert.Equal(t, LanguageBangla, ResolveLanguage("de", &bn))
	assert.Equal(t, LanguageEnglish, ResolveLanguage("", &bogus))
	assert.Equal(t, LanguageEnglish, ResolveLanguage("", nil))
}

func TestAnyLocked(t *testing.T) {
	t.Parallel()

	assert.False(t, AnyLocked(nil))
	assert.False(t, AnyLocked([]*Question{{}, {}}))
	assert.True(t, AnyLocked([]*Question{{}, {IsLockedAfterAdd: true}}))
}
