package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noctave/noctave/adapter"
	"github.com/noctave/noctave/music"
	"github.com/noctave/noctave/stabilize"
)

var (
	replayStep  float64
	replayPart  string
	replayTempo float64
	replayMeter string
)

func init() {
	replayCmd.Flags().Float64Var(&replayStep, "step", 50, "frame request interval in ms")
	replayCmd.Flags().StringVar(&replayPart, "part", "replay", "logical part id")
	replayCmd.Flags().Float64Var(&replayTempo, "tempo", 0, "prescribed tempo in BPM (0 = none)")
	replayCmd.Flags().StringVar(&replayMeter, "meter", "", "prescribed meter, e.g. 3/4")
	rootCmd.AddCommand(replayCmd)
}

var replayCmd = &cobra.Command{
	Use:   "replay <file.mid>",
	Short: "Replays a MIDI file through the pipeline, printing frames as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return replay(args[0], func(frame *music.MusicalFrame) error {
			out, err := json.Marshal(frame)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		})
	},
}

// replay drives the default pipeline over an SMF file at the configured
// step, invoking emit for every frame.
func replay(path string, emit func(*music.MusicalFrame) error) error {
	src, err := adapter.NewSMFSource(path)
	if err != nil {
		return err
	}

	cfg := stabilize.DefaultConfig()
	if replayTempo > 0 {
		cfg.Tempo = &music.Tempo{BPM: replayTempo}
	}
	if replayMeter != "" {
		meter, err := parseMeter(replayMeter)
		if err != nil {
			return err
		}
		cfg.Meter = meter
	}

	orc, err := stabilize.NewOrchestrator(cfg, stabilize.DefaultRegistrations()...)
	if err != nil {
		return err
	}
	defer orc.Close()

	orc.AddSource(replayPart, src)

	// Run past the end of the material so fading notes expire on screen.
	end := src.Duration() + cfg.ReleaseRetentionMs
	for t := 0.0; t <= end; t += replayStep {
		if err := emit(orc.RequestFrame(replayPart, t)); err != nil {
			return err
		}
	}
	return nil
}

func parseMeter(s string) (*music.Meter, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid meter %q, expected e.g. 4/4", s)
	}
	var beats, unit int
	if _, err := fmt.Sscanf(s, "%d/%d", &beats, &unit); err != nil || beats <= 0 || unit <= 0 {
		return nil, fmt.Errorf("invalid meter %q, expected e.g. 4/4", s)
	}
	return &music.Meter{BeatsPerBar: beats, BeatUnit: unit}, nil
}
