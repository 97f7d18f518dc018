package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/audiodiag/soundcheck"
	"github.com/audiodiag/soundcheck/driver"
	"github.com/audiodiag/soundcheck/driver/loopback"
	"github.com/audiodiag/soundcheck/tracelog"
)

func main() {
	var (
		inputFile  string
		outputFile string
		sampleRate float64
	)

	flag.StringVar(&inputFile, "input-file", "", "Audio file streamed to the driver's playback channels (wav, mp3 or ogg)")
	flag.StringVar(&outputFile, "output-file", "", "WAV file recording the driver's capture channels")
	flag.Float64Var(&sampleRate, "sample-rate", 0, "Sample rate in Hz (default: the input file's rate, or the driver's)")

	flag.Parse()

	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(2)
	}

	log := tracelog.New(os.Stdout)

	cfg := loopback.DefaultConfig()
	cfg.Log = log
	if err := driver.Register(loopback.New(cfg)); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering driver: %v\n", err)
		os.Exit(1)
	}

	err := soundcheck.Run(soundcheck.Config{
		InputFile:  inputFile,
		OutputFile: outputFile,
		SampleRate: sampleRate,
		Log:        log,
	})
	if err != nil {
		log.Printf("FATAL ERROR: %v", err)
		os.Exit(1)
	}
}
