package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	blindwatermark "github.com/tourze/blind-watermark"
	"github.com/tourze/blind-watermark/converter"
)

var (
	flagReference string
	flagQROut     string
)

var extractCmd = &cobra.Command{
	Use:   "extract [watermarked-image]",
	Short: "Extract a watermark from an image",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		img := loadImage(args[0])
		bw := blindwatermark.NewBlindWatermarker(buildOptions())

		var (
			res *blindwatermark.Result
			err error
		)
		if flagReference != "" {
			res, err = bw.ExtractWithReference(img, loadImage(flagReference))
		} else {
			res, err = bw.Extract(img)
		}
		if err != nil {
			log.Fatal().Err(err).Msg("extraction failed")
		}

		switch res.Type {
		case converter.TypeText:
			fmt.Println(res.TextContent)
		case converter.TypeQRCode:
			fmt.Println(res.TextContent)
			if flagQROut != "" && len(res.ImageBytes) > 0 {
				if err := os.WriteFile(flagQROut, res.ImageBytes, 0o644); err != nil {
					log.Fatal().Err(err).Msg("failed to write QR image")
				}
				log.Info().Str("output", flagQROut).Msg("QR image regenerated")
			}
		case converter.TypeImage:
			out := flagQROut
			if out == "" {
				out = "extracted.png"
			}
			if err := os.WriteFile(out, res.ImageBytes, 0o644); err != nil {
				log.Fatal().Err(err).Msg("failed to write extracted image")
			}
			log.Info().Str("output", out).Msg("image watermark extracted")
		default:
			log.Info().Msg("empty watermark payload")
		}
	},
}

func init() {
	extractCmd.Flags().StringVar(&flagReference, "reference", "", "reference image for geometric correction")
	extractCmd.Flags().StringVar(&flagQROut, "out", "", "output path for regenerated QR or image watermark")
	rootCmd.AddCommand(extractCmd)
}
