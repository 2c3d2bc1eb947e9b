package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itohio/gokws/pkg/recognizer"
	"github.com/itohio/gokws/pkg/vocab"
)

func newRecordCommand(a *app) *cobra.Command {
	var (
		labelsPath string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "record <file.wav>...",
		Short: "Build a vocabulary from recorded words",
		Long: `Record segments the WAV files into words and pairs them, in order, with the
labels listed one per line in the labels file. The resulting templates are
written as a vocabulary file.`,
		Args: requireFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			labels, err := vocab.ReadLabels(a.fs, labelsPath)
			if err != nil {
				return err
			}

			var words [][][]float32
			for _, path := range args {
				rec, err := recognizer.New(a.cfg, nil, nil, recognizer.WithLogger(a.logger))
				if err != nil {
					return err
				}
				rec.OnWord(func(w recognizer.Word) {
					if w.Truncated {
						a.logger.Warn("recorded word was truncated", "path", path, "length", w.Length, "kept", len(w.Vectors))
					}
					words = append(words, w.Vectors)
				})

				if err := a.feedFile(rec, path); err != nil {
					return err
				}
			}

			v, unusedLabels, unusedWords := vocab.FromWords(labels, words)
			if unusedLabels > 0 {
				a.logger.Warn("fewer words than labels", "unused_labels", unusedLabels)
			}
			if unusedWords > 0 {
				a.logger.Warn("more words than labels", "unused_words", unusedWords)
			}
			if v.Len() == 0 {
				return fmt.Errorf("no words recorded")
			}

			out := outPath
			if out == "" {
				out = a.cfg.Vocabulary.Path
			}
			if err := v.Save(a.fs, out); err != nil {
				return err
			}
			a.logger.Info("vocabulary saved", "path", out, "labels", v.Labels())
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %d templates to %s\n", v.Len(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&labelsPath, "labels", "l", "labels.txt", "Labels file, one label per line")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output vocabulary file (default: vocabulary path)")
	return cmd
}
