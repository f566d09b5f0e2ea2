package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	blindwatermark "github.com/tourze/blind-watermark"
	"github.com/tourze/blind-watermark/core"
)

var (
	flagBlockSize  int
	flagStrength   float64
	flagRow        int
	flagCol        int
	flagSymmetric  bool
	flagMultiPoint bool
	flagWavelet    bool
	flagKey        string
	flagChannel    string
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "bwatermark",
	Short: "Embed and extract blind frequency-domain watermarks",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if flagVerbose {
			level = zerolog.DebugLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).With().Timestamp().Logger()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.IntVar(&flagBlockSize, "block-size", 8, "DCT tile size")
	pf.Float64Var(&flagStrength, "strength", 36.0, "coefficient magnitude (alpha)")
	pf.IntVar(&flagRow, "row", 3, "embedding position row inside the block")
	pf.IntVar(&flagCol, "col", 4, "embedding position column inside the block")
	pf.BoolVar(&flagSymmetric, "symmetric", false, "duplicate bits at mirrored positions")
	pf.BoolVar(&flagMultiPoint, "multi-point", false, "duplicate bits at extra mid-frequency positions")
	pf.BoolVar(&flagWavelet, "wavelet", false, "embed into the Haar HL subband")
	pf.StringVar(&flagKey, "key", "", "payload bit permutation key (obfuscation, not encryption)")
	pf.StringVar(&flagChannel, "channel", "blue", "carrier channel: red, green or blue")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

func buildOptions() blindwatermark.Options {
	opts := blindwatermark.DefaultOptions()
	opts.BlockSize = flagBlockSize
	opts.Strength = flagStrength
	opts.Position = core.Point{Row: flagRow, Col: flagCol}
	opts.SymmetricEmbedding = flagSymmetric
	opts.MultiPointEmbedding = flagMultiPoint
	opts.WaveletEmbedding = flagWavelet
	opts.Key = flagKey
	opts.Logger = log.Logger
	switch flagChannel {
	case "red":
		opts.Channel = blindwatermark.ChannelRed
	case "green":
		opts.Channel = blindwatermark.ChannelGreen
	default:
		opts.Channel = blindwatermark.ChannelBlue
	}
	return opts
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
