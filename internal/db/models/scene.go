package models

import (
	"fmt"
)

// SceneKind discriminates how a scene's visual is produced
type SceneKind string

// Scene kinds
const (
	// SceneKindTalkingHead scenes are lip-synced from the identity image and narration audio
	SceneKindTalkingHead SceneKind = "talking_head"
	// SceneKindStaticAsset scenes show an image or video with the narration overlaid
	SceneKindStaticAsset SceneKind = "static_asset"
)

// String returns the string representation of the scene kind
func (k SceneKind) String() string {
	return string(k)
}

// ParseSceneKind converts a string to a SceneKind
func ParseSceneKind(str string) (SceneKind, error) {
	switch str {
	case string(SceneKindTalkingHead), "talking-head":
		return SceneKindTalkingHead, nil
	case string(SceneKindStaticAsset), "static-asset":
		return SceneKindStaticAsset, nil
	default:
		return "", fmt.Errorf("invalid scene kind: %s", str)
	}
}

// Aspect ratios accepted by the renderer
const (
	AspectRatioPortrait  = "9:16"
	AspectRatioLandscape = "16:9"
	AspectRatioSquare    = "1:1"
)

// SceneRequest is one narrated segment as requested by the caller
type SceneRequest struct {
	Text        string    `json:"text"`
	Kind        SceneKind `json:"kind"`
	AssetURL    string    `json:"asset_url,omitempty"`
	ImagePrompt string    `json:"image_prompt,omitempty"`
}

// JobInput is the immutable request snapshot a job was created from
type JobInput struct {
	Scenes           []SceneRequest `json:"scenes"`
	VoiceID          string         `json:"voice_id"`
	IdentityImageURL string         `json:"identity_image_url,omitempty"`
	CaptionsEnabled  bool           `json:"captions_enabled"`
	WordCaptions     bool           `json:"word_captions"`
	MusicEnabled     bool           `json:"music_enabled"`
	MusicURL         string         `json:"music_url,omitempty"`
	AspectRatio      string         `json:"aspect_ratio"`
}

// Word is a single transcribed word, timed relative to the start of its scene
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SceneResult is the produced output for one scene. Once appended to a job it
// is never edited.
type SceneResult struct {
	Index            int       `json:"index"`
	Kind             SceneKind `json:"kind"`
	ClipURL          string    `json:"clip_url"`
	AudioURL         string    `json:"audio_url,omitempty"`
	DurationSeconds  float64   `json:"duration_seconds"`
	Text             string    `json:"text"`
	HasEmbeddedAudio bool      `json:"has_embedded_audio"`
	Words            []Word    `json:"words,omitempty"`
}

// NarrationResult caches the narration of the scene at the cursor until the
// scene result is appended, so a visual retry does not re-synthesize audio.
type NarrationResult struct {
	SceneIndex      int     `json:"scene_index"`
	AudioURL        string  `json:"audio_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	Words           []Word  `json:"words,omitempty"`
	Transcribed     bool    `json:"transcribed"`
}
