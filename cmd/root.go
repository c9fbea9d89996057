package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "noctave",
	Short: "Musical event stabilization pipeline",
	Long: `noctave turns timestamped note streams into structured musical frames:
tracked notes with lifecycle phases, grouped chords, and a descriptive
rhythmic analysis.`,
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
