package runtime

import (
	"chat-match/errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestCensoredLoader_LoadAll(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"censored/en.txt":     {Data: []byte("idiot\r\nmoron\n\n  jerk  \n")},
		"censored/fr.txt":     {Data: []byte("abruti\nidiot\n")},
		"censored/README.md":  {Data: []byte("not a word list")},
		"censored/old/de.txt": {Data: []byte("ignored")},
	}

	data, err := NewCensoredLoader(fsys).LoadAll("censored")

	req.NoError(err)
	req.Equal([]string{"en", "fr"}, data.Languages)
	req.Equal([]string{"abruti", "idiot", "jerk", "moron"}, data.Words)
}

func TestCensoredLoader_LoadAll_Empty(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"censored/en.txt": {Data: []byte("\n  \n")},
	}

	_, err := NewCensoredLoader(fsys).LoadAll("censored")

	req.ErrorIs(err, errors.ErrEmptyWords)
}

func TestCensoredLoader_Embedded(t *testing.T) {
	req := require.New(t)

	data, err := NewEmbeddedCensoredLoader().LoadAll("censored")

	req.NoError(err)
	req.Contains(data.Languages, "en")
	req.Contains(data.Languages, "fr")
	req.NotEmpty(data.Words)
}
