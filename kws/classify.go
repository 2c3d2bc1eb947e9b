package main

import (
	"github.com/spf13/cobra"

	"github.com/itohio/gokws/pkg/adc"
	"github.com/itohio/gokws/pkg/output"
	"github.com/itohio/gokws/pkg/recognizer"
)

func newClassifyCommand(a *app) *cobra.Command {
	var frameFeatures bool

	cmd := &cobra.Command{
		Use:   "classify <file.wav>...",
		Short: "Recognize the words spoken in WAV files",
		Args:  requireFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("frame-features") {
				a.cfg.Output.FrameFeatures = frameFeatures
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			v, err := a.vocabulary()
			if err != nil {
				return err
			}

			sink := output.NewWriter(cmd.OutOrStdout())
			for _, path := range args {
				rec, err := recognizer.New(a.cfg, nil, v,
					recognizer.WithLogger(a.logger),
					recognizer.WithSink(sink),
				)
				if err != nil {
					return err
				}

				words := 0
				rec.OnWord(func(recognizer.Word) { words++ })

				if err := a.feedFile(rec, path); err != nil {
					return err
				}
				a.logger.Info("file classified", "path", path, "words", words)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&frameFeatures, "frame-features", false, "Print an mfcc line for every frame")
	return cmd
}

// feedFile runs a whole WAV file through rec and closes the last word.
func (a *app) feedFile(rec *recognizer.Recognizer, path string) error {
	codes, err := adc.ReadWAV(a.fs, path, a.cfg.ConversionRate(), a.cfg.Sampling.ADCBits)
	if err != nil {
		return err
	}
	if err := rec.Feed(codes); err != nil {
		return err
	}
	return rec.Finish()
}
