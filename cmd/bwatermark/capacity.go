package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	blindwatermark "github.com/tourze/blind-watermark"
	"github.com/tourze/blind-watermark/converter"
)

var capacityCmd = &cobra.Command{
	Use:   "capacity [image]",
	Short: "Report how much payload an image can carry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		img := loadImage(args[0])
		bw := blindwatermark.NewBlindWatermarker(buildOptions())

		bits := bw.Capacity(img)
		payloadBytes := (bits - converter.HeaderBits) / 8
		if payloadBytes < 0 {
			payloadBytes = 0
		}

		wtr := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(wtr, "Block size\tCapacity (bits)\tPayload (bytes)")
		fmt.Fprintf(wtr, "%d\t%d\t%d\n", flagBlockSize, bits, payloadBytes)
		wtr.Flush()
	},
}

func init() {
	rootCmd.AddCommand(capacityCmd)
}
