package pipeline

import (
	"math"

	"github.com/celestiaorg/reelcast/internal/capability"
	"github.com/celestiaorg/reelcast/internal/db/models"
)

// SceneOffsets returns the start of every scene on the final timeline. Offset
// k is the sum of the measured durations of scenes 0..k-1, in milliseconds
// precision.
func SceneOffsets(scenes []models.SceneResult) []float64 {
	offsets := make([]float64, len(scenes))
	var sum float64
	for i, s := range scenes {
		offsets[i] = roundMillis(sum)
		sum += s.DurationSeconds
	}
	return offsets
}

// TotalDuration is the sum of the measured scene durations
func TotalDuration(scenes []models.SceneResult) float64 {
	var sum float64
	for _, s := range scenes {
		sum += s.DurationSeconds
	}
	return roundMillis(sum)
}

// BuildCaptions derives caption cues from the completed scenes. Scenes with
// word timings get one cue per word, others one cue for the whole scene.
// All timing comes from the measured narration durations.
func BuildCaptions(scenes []models.SceneResult) []capability.Caption {
	offsets := SceneOffsets(scenes)
	captions := make([]capability.Caption, 0, len(scenes))
	for i, s := range scenes {
		start := offsets[i]
		end := roundMillis(start + s.DurationSeconds)

		if len(s.Words) == 0 {
			if s.Text == "" {
				continue
			}
			captions = append(captions, capability.Caption{Text: s.Text, Start: start, End: end})
			continue
		}

		for _, w := range s.Words {
			cueStart := roundMillis(math.Min(start+w.Start, end))
			cueEnd := roundMillis(math.Min(start+w.End, end))
			if cueEnd < cueStart {
				cueEnd = cueStart
			}
			captions = append(captions, capability.Caption{Text: w.Text, Start: cueStart, End: cueEnd})
		}
	}
	return captions
}

func roundMillis(v float64) float64 {
	return math.Round(v*1000) / 1000
}
