package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/pkg/api/v1/client"
	"github.com/celestiaorg/reelcast/pkg/types"
)

// Flag names
const (
	flagFile         = "file"
	flagScene        = "scene"
	flagVoice        = "voice"
	flagIdentity     = "identity"
	flagCaptions     = "captions"
	flagWordCaptions = "word-captions"
	flagMusic        = "music"
	flagMusicURL     = "music-url"
	flagAspectRatio  = "aspect-ratio"
	flagStatus       = "status"
	flagPage         = "page"
	flagInterval     = "interval"
)

// DefaultWatchInterval is how often `jobs watch` polls the server
const DefaultWatchInterval = 2 * time.Second

// GetJobsCmd returns the jobs command tree
func GetJobsCmd() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage render jobs",
		Long:  "Submit, inspect and recover multi-scene video render jobs.",
	}

	jobsCmd.AddCommand(
		newCreateJobCmd(),
		newGetJobCmd(),
		newListJobsCmd(),
		newAdvanceJobCmd(),
		newRetryJobCmd(),
		newRestartJobCmd(),
		newWatchJobCmd(),
	)
	return jobsCmd
}

// jobFile is the on-disk job description. JSON files parse as YAML.
type jobFile struct {
	VoiceID          string      `yaml:"voice_id"`
	IdentityImageURL string      `yaml:"identity_image_url"`
	CaptionsEnabled  bool        `yaml:"captions_enabled"`
	WordCaptions     bool        `yaml:"word_captions"`
	MusicEnabled     bool        `yaml:"music_enabled"`
	MusicURL         string      `yaml:"music_url"`
	AspectRatio      string      `yaml:"aspect_ratio"`
	Scenes           []sceneFile `yaml:"scenes"`
}

type sceneFile struct {
	Text        string `yaml:"text"`
	Kind        string `yaml:"kind"`
	AssetURL    string `yaml:"asset_url"`
	ImagePrompt string `yaml:"image_prompt"`
}

func (f jobFile) request() types.CreateJobRequest {
	req := types.CreateJobRequest{
		VoiceID:          f.VoiceID,
		IdentityImageURL: f.IdentityImageURL,
		CaptionsEnabled:  f.CaptionsEnabled,
		WordCaptions:     f.WordCaptions,
		MusicEnabled:     f.MusicEnabled,
		MusicURL:         f.MusicURL,
		AspectRatio:      f.AspectRatio,
	}
	for _, s := range f.Scenes {
		req.Scenes = append(req.Scenes, types.SceneRequest{
			Text:        s.Text,
			Kind:        models.SceneKind(s.Kind),
			AssetURL:    s.AssetURL,
			ImagePrompt: s.ImagePrompt,
		})
	}
	return req
}

func loadJobFile(path string) (types.CreateJobRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.CreateJobRequest{}, fmt.Errorf("failed to read job file: %w", err)
	}
	var f jobFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return types.CreateJobRequest{}, fmt.Errorf("failed to parse job file: %w", err)
	}
	return f.request(), nil
}

// parseSceneFlag reads "kind:text". A bare text is a talking head scene.
func parseSceneFlag(value string) (types.SceneRequest, error) {
	kind, text, found := strings.Cut(value, ":")
	if !found {
		return types.SceneRequest{Kind: models.SceneKindTalkingHead, Text: strings.TrimSpace(value)}, nil
	}
	parsed, err := models.ParseSceneKind(strings.TrimSpace(kind))
	if err != nil {
		// the colon belongs to the narration
		return types.SceneRequest{Kind: models.SceneKindTalkingHead, Text: strings.TrimSpace(value)}, nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return types.SceneRequest{}, fmt.Errorf("scene %q has no text", value)
	}
	return types.SceneRequest{Kind: parsed, Text: text}, nil
}

func newCreateJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a new render job",
		Long: `Submit a new render job from a YAML or JSON file, from flags, or both.
Flags override the values read from the file and --scene flags are appended
to its scenes. A scene flag has the form "kind:text" where kind is
talking_head or static_asset.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req types.CreateJobRequest
			if path, _ := cmd.Flags().GetString(flagFile); path != "" {
				loaded, err := loadJobFile(path)
				if err != nil {
					return err
				}
				req = loaded
			}

			sceneFlags, _ := cmd.Flags().GetStringArray(flagScene)
			for _, value := range sceneFlags {
				scene, err := parseSceneFlag(value)
				if err != nil {
					return err
				}
				req.Scenes = append(req.Scenes, scene)
			}
			if len(req.Scenes) == 0 {
				return fmt.Errorf("at least one scene is required, use --file or --scene")
			}

			flags := cmd.Flags()
			if flags.Changed(flagVoice) {
				req.VoiceID, _ = flags.GetString(flagVoice)
			}
			if flags.Changed(flagIdentity) {
				req.IdentityImageURL, _ = flags.GetString(flagIdentity)
			}
			if flags.Changed(flagCaptions) {
				req.CaptionsEnabled, _ = flags.GetBool(flagCaptions)
			}
			if flags.Changed(flagWordCaptions) {
				req.WordCaptions, _ = flags.GetBool(flagWordCaptions)
			}
			if flags.Changed(flagMusic) {
				req.MusicEnabled, _ = flags.GetBool(flagMusic)
			}
			if flags.Changed(flagMusicURL) {
				req.MusicURL, _ = flags.GetString(flagMusicURL)
				req.MusicEnabled = true
			}
			if flags.Changed(flagAspectRatio) {
				req.AspectRatio, _ = flags.GetString(flagAspectRatio)
			}

			c, err := getAPIClient()
			if err != nil {
				return err
			}
			resp, err := c.CreateJob(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("error creating job: %w", err)
			}
			return printJSON(cmd, resp)
		},
	}

	cmd.Flags().StringP(flagFile, "f", "", "YAML or JSON file describing the job")
	cmd.Flags().StringArray(flagScene, nil, `Scene as "kind:text", repeatable`)
	cmd.Flags().String(flagVoice, "", "Narration voice (server default when empty)")
	cmd.Flags().String(flagIdentity, "", "Identity image URL used for talking heads")
	cmd.Flags().Bool(flagCaptions, false, "Burn in captions")
	cmd.Flags().Bool(flagWordCaptions, false, "Use word-level captions")
	cmd.Flags().Bool(flagMusic, false, "Add background music")
	cmd.Flags().String(flagMusicURL, "", "Background music track (implies --music)")
	cmd.Flags().String(flagAspectRatio, "", "Output aspect ratio: 9:16, 16:9 or 1:1")
	return cmd
}

func newGetJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show the progress of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getAPIClient()
			if err != nil {
				return err
			}
			report, err := c.GetJob(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error getting job: %w", err)
			}
			return printJSON(cmd, report)
		},
	}
}

func newListJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetString(flagStatus)
			page, _ := cmd.Flags().GetInt(flagPage)

			c, err := getAPIClient()
			if err != nil {
				return err
			}
			resp, err := c.ListJobs(cmd.Context(), client.ListJobsParams{Status: status, Page: page})
			if err != nil {
				return fmt.Errorf("error listing jobs: %w", err)
			}
			return printJSON(cmd, resp)
		},
	}
	cmd.Flags().StringP(flagStatus, "s", "", "Filter by status (pending, processing, completed, failed)")
	cmd.Flags().IntP(flagPage, "p", 1, "Page number")
	return cmd
}

func newAdvanceJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance <job-id>",
		Short: "Run one pipeline invocation for a job",
		Long:  "Run one pipeline invocation for a job. Requires the trigger token when the server sets one.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getAPIClient()
			if err != nil {
				return err
			}
			resp, err := c.AdvanceJob(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error advancing job: %w", err)
			}
			return printJSON(cmd, resp)
		},
	}
}

func newRetryJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Resume a failed job at the scene it stopped on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getAPIClient()
			if err != nil {
				return err
			}
			report, err := c.RetryJob(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error retrying job: %w", err)
			}
			return printJSON(cmd, report)
		},
	}
}

func newRestartJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart <job-id>",
		Short: "Submit a new job with the input of an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getAPIClient()
			if err != nil {
				return err
			}
			resp, err := c.RestartJob(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error restarting job: %w", err)
			}
			return printJSON(cmd, resp)
		},
	}
}

func newWatchJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Follow a job until it completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration(flagInterval)
			if interval <= 0 {
				interval = DefaultWatchInterval
			}

			c, err := getAPIClient()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			var last string
			for {
				report, err := c.GetJob(ctx, args[0])
				if err != nil {
					return fmt.Errorf("error getting job: %w", err)
				}
				line := fmt.Sprintf("[%3d%%] %s", report.ProgressPercent, report.ProgressMessage)
				if line != last {
					fmt.Fprintln(cmd.OutOrStdout(), line)
					last = line
				}

				switch report.Status {
				case models.JobStatusCompleted:
					fmt.Fprintln(cmd.OutOrStdout(), report.ResultVideoURL)
					return nil
				case models.JobStatusFailed:
					return fmt.Errorf("job %s failed: %s", report.JobID, report.ErrorMessage)
				}

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().Duration(flagInterval, DefaultWatchInterval, "Polling interval")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
