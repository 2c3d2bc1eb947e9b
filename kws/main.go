// Command kws spots keywords in a sampled audio stream by matching MFCC
// sequences against recorded templates.
//
// Usage:
//
//	kws [flags] <command> [args]
//
// Commands:
//
//	run       - recognize words from a device (serial, mock, wav, portaudio)
//	classify  - recognize the words in WAV files
//	record    - build a vocabulary from labelled WAV recordings
//	ports     - list serial ports
//	config    - configuration management
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
