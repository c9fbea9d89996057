package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noctave/noctave/music"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "Summarizes the rhythmic analysis of a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var last *music.MusicalFrame
		var rhythm *music.RhythmicAnalysis
		chords := make(map[string]bool)

		err := replay(args[0], func(frame *music.MusicalFrame) error {
			last = frame
			for _, id := range frame.Progression {
				chords[id] = true
			}
			// Keep the last informative reading; the tail of the replay
			// is silence and reports unknown.
			if frame.Rhythm != nil && frame.Rhythm.DetectedDivision != nil {
				rhythm = frame.Rhythm
			}
			return nil
		})
		if err != nil {
			return err
		}
		if last == nil {
			fmt.Println("no frames produced")
			return nil
		}

		fmt.Printf("frames up to: %.0fms\n", last.Time)
		fmt.Printf("chords seen: %d\n", len(chords))
		if rhythm != nil {
			fmt.Printf("detected division: %.1fms\n", *rhythm.DetectedDivision)
			fmt.Printf("stability: %.2f confidence: %.2f periodicity: %.2f\n",
				rhythm.Stability, rhythm.Confidence, rhythm.Periodicity)
		} else {
			fmt.Println("detected division: unknown")
		}
		return nil
	},
}
