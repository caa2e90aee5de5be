package capability

import (
	"github.com/celestiaorg/reelcast/internal/config"
	"github.com/celestiaorg/reelcast/internal/db/models"
)

// NarrationInput asks for speech synthesis of one scene
type NarrationInput struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

// NarrationOutput is the synthesized audio and its measured length
type NarrationOutput struct {
	AudioURL        string  `json:"audio_url"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// TalkingHeadInput asks for a lip-synced clip of the identity image
type TalkingHeadInput struct {
	IdentityImageURL string `json:"identity_image_url"`
	AudioURL         string `json:"audio_url"`
	AspectRatio      string `json:"aspect_ratio"`
	CallbackURL      string `json:"callback_url,omitempty"`
}

// TalkingHeadOutput is the produced clip, audio included
type TalkingHeadOutput struct {
	VideoURL        string  `json:"video_url"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ImageInput asks for a still image
type ImageInput struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// ImageOutput is the produced still image
type ImageOutput struct {
	ImageURL string `json:"image_url"`
}

// TranscriptionInput asks for word timings of an audio file
type TranscriptionInput struct {
	AudioURL string `json:"audio_url"`
}

// TranscriptionOutput holds words timed relative to the start of the audio
type TranscriptionOutput struct {
	Words []models.Word `json:"words"`
}

// RenderScene is one clip of the final composition
type RenderScene struct {
	ClipURL          string  `json:"clip_url"`
	AudioURL         string  `json:"audio_url,omitempty"`
	Start            float64 `json:"start"`
	DurationSeconds  float64 `json:"duration_seconds"`
	HasEmbeddedAudio bool    `json:"has_embedded_audio"`
}

// Caption is one timed caption cue on the final timeline
type Caption struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// RenderInput asks for the final composition
type RenderInput struct {
	Scenes      []RenderScene `json:"scenes"`
	Captions    []Caption     `json:"captions,omitempty"`
	MusicURL    string        `json:"music_url,omitempty"`
	AspectRatio string        `json:"aspect_ratio"`
	CallbackURL string        `json:"callback_url,omitempty"`
}

// RenderOutput is the rendered video
type RenderOutput struct {
	VideoURL        string  `json:"video_url"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Type aliases for the five vendor capabilities
type (
	Narration     = Capability[NarrationInput, NarrationOutput]
	TalkingHead   = Capability[TalkingHeadInput, TalkingHeadOutput]
	Image         = Capability[ImageInput, ImageOutput]
	Transcription = Capability[TranscriptionInput, TranscriptionOutput]
	Render        = Capability[RenderInput, RenderOutput]
)

// Set groups the capabilities the pipeline depends on
type Set struct {
	Narration     Narration
	TalkingHead   TalkingHead
	Image         Image
	Transcription Transcription
	Render        Render
}

// NewSet builds HTTP clients for every configured vendor
func NewSet(vendors config.Vendors) (Set, error) {
	narration, err := NewHTTPClient[NarrationInput, NarrationOutput](options(models.OperationNarration, vendors.Narration))
	if err != nil {
		return Set{}, err
	}
	talkingHead, err := NewHTTPClient[TalkingHeadInput, TalkingHeadOutput](options(models.OperationTalkingHead, vendors.TalkingHead))
	if err != nil {
		return Set{}, err
	}
	set := Set{Narration: narration, TalkingHead: talkingHead}

	// image and transcription are optional; scenes fall back without them
	if vendors.Image.BaseURL != "" {
		if set.Image, err = NewHTTPClient[ImageInput, ImageOutput](options(models.OperationImage, vendors.Image)); err != nil {
			return Set{}, err
		}
	}
	if vendors.Transcription.BaseURL != "" {
		if set.Transcription, err = NewHTTPClient[TranscriptionInput, TranscriptionOutput](options(models.OperationTranscription, vendors.Transcription)); err != nil {
			return Set{}, err
		}
	}
	render, err := NewHTTPClient[RenderInput, RenderOutput](options(models.OperationRender, vendors.Render))
	if err != nil {
		return Set{}, err
	}
	set.Render = render
	return set, nil
}

func options(kind models.OperationKind, v config.Vendor) Options {
	return Options{
		Operation: kind.String(),
		BaseURL:   v.BaseURL,
		APIKey:    v.APIKey,
	}
}
