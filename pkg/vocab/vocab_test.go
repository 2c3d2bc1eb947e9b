package vocab

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := `templates:
  - label: "on"
    vectors:
      - [0.1, 0.2, 0.3]
      - [0.4, 0.5, 0.6]
  - label: "off"
    vectors:
      - [-0.1, -0.2, -0.3]
`
	require.NoError(t, afero.WriteFile(fs, "/v.yaml", []byte(content), 0644))

	v, err := Load(fs, "/v.yaml")
	require.NoError(t, err)
	require.Equal(t, 2, v.Len())
	assert.Equal(t, []string{"on", "off"}, v.Labels())
	assert.Equal(t, []float32{0.4, 0.5, 0.6}, v.Templates[0].Vectors[1])
	assert.NoError(t, v.Validate(3, 64))

	mt := v.MatcherTemplates()
	require.Len(t, mt, 2)
	assert.Equal(t, "off", mt[1].Label)
	assert.Len(t, mt[0].Vectors, 2)
}

func TestLoad_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Load(fs, "/missing.yaml")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("templates: [\n"), 0644))
	_, err = Load(fs, "/bad.yaml")
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()

	v := &Vocabulary{}
	v.Add("left", [][]float32{{1, 2}, {3, 4}})
	v.Add("right", [][]float32{{-1, 0.5}})
	require.NoError(t, v.Save(fs, "/out.yaml"))

	exists, err := afero.Exists(fs, "/out.yaml")
	require.NoError(t, err)
	assert.True(t, exists)

	loaded, err := Load(fs, "/out.yaml")
	require.NoError(t, err)
	assert.Equal(t, v, loaded)
}

func TestAdd_CopiesVectors(t *testing.T) {
	src := [][]float32{{1, 2}}
	v := &Vocabulary{}
	v.Add("copy", src)
	src[0][0] = 99

	assert.Equal(t, float32(1), v.Templates[0].Vectors[0][0])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		vocab   Vocabulary
		wantErr bool
	}{
		{
			name:  "valid",
			vocab: Vocabulary{Templates: []Template{{Label: "a", Vectors: [][]float32{{1, 2}}}}},
		},
		{
			name:  "empty vocabulary",
			vocab: Vocabulary{},
		},
		{
			name:    "missing label",
			vocab:   Vocabulary{Templates: []Template{{Vectors: [][]float32{{1, 2}}}}},
			wantErr: true,
		},
		{
			name:    "no vectors",
			vocab:   Vocabulary{Templates: []Template{{Label: "a"}}},
			wantErr: true,
		},
		{
			name:    "too long",
			vocab:   Vocabulary{Templates: []Template{{Label: "a", Vectors: [][]float32{{1, 2}, {1, 2}, {1, 2}}}}},
			wantErr: true,
		},
		{
			name:    "wrong dimension",
			vocab:   Vocabulary{Templates: []Template{{Label: "a", Vectors: [][]float32{{1, 2}, {1}}}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.vocab.Validate(2, 2)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalid))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReadLabels(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/words.txt", []byte("on\n\n  off \r\nstop\n"), 0644))

	labels, err := ReadLabels(fs, "/words.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"on", "off", "stop"}, labels)

	_, err = ReadLabels(fs, "/nope.txt")
	assert.Error(t, err)
}

func TestFromWords(t *testing.T) {
	words := [][][]float32{
		{{1}, {2}},
		{{3}},
		{{4}},
	}

	v, unusedLabels, unusedWords := FromWords([]string{"a", "b"}, words)
	assert.Equal(t, []string{"a", "b"}, v.Labels())
	assert.Equal(t, 0, unusedLabels)
	assert.Equal(t, 1, unusedWords)
	assert.Equal(t, [][]float32{{1}, {2}}, v.Templates[0].Vectors)

	v, unusedLabels, unusedWords = FromWords([]string{"a", "b", "c"}, words[:1])
	assert.Equal(t, 1, v.Len())
	assert.Equal(t, 2, unusedLabels)
	assert.Equal(t, 0, unusedWords)
}
