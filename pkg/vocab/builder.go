package vocab

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// ReadLabels reads one label per line, skipping blank lines.
func ReadLabels(fs afero.Fs, filename string) ([]string, error) {
	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}

	var labels []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if label := strings.TrimSpace(scanner.Text()); label != "" {
			labels = append(labels, label)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}

	return labels, nil
}

// FromWords pairs recorded words with labels in order. Extra words or
// labels are ignored and reported by the returned counts.
func FromWords(labels []string, words [][][]float32) (v *Vocabulary, unusedLabels, unusedWords int) {
	v = &Vocabulary{}
	n := min(len(labels), len(words))
	for i := 0; i < n; i++ {
		v.Add(labels[i], words[i])
	}
	return v, len(labels) - n, len(words) - n
}
