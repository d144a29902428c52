package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ardanlabs/multimodal"
	"github.com/spf13/cobra"
)

var tokenizeCmd = &cobra.Command{
	Use:   "tokenize <PROMPT> <IMAGE_FILE> [IMAGE_FILE...]",
	Short: "Tokenize a prompt against one or more images and print the chunk layout",
	Long: `Tokenize a prompt against one or more images and print the chunk layout.
If the prompt does not contain the model's image marker, one marker per image
is prepended.

Environment Variables:
      MULTIMODAL_LIB_PATH        (default: $HOME/multimodal/libraries)  The path to the libraries directory
      MULTIMODAL_MODEL           (required)                             The GGUF model file
      MULTIMODAL_PROJ            (required)                             The multimodal projector file
      MULTIMODAL_CONTEXT_WINDOW  (default: model metadata)              Context window for the session`,
	Args: cobra.MinimumNArgs(2),
	RunE: runTokenize,
}

func runTokenize(cmd *cobra.Command, args []string) error {
	mm, err := newPool()
	if err != nil {
		return err
	}
	defer mm.Unload()

	prompt, images, err := promptAndImages(args)
	if err != nil {
		return err
	}

	chunks, err := mm.Tokenize(cmd.Context(), prompt, images)
	if err != nil {
		return fmt.Errorf("unable to tokenize: %w", err)
	}

	for i, chunk := range chunks {
		switch chunk.Type {
		case multimodal.ChunkTypeText:
			fmt.Printf("chunk %d: %s (%d tokens)\n", i, chunk.Type, len(chunk.Tokens))

		default:
			fmt.Printf("chunk %d: %s (%d tokens, %dx%d, n_pos %d, id %q)\n",
				i, chunk.Type, chunk.Media.TokenCount, chunk.Media.NX, chunk.Media.NY,
				chunk.Media.NPos, chunk.Media.ID)
		}
	}

	return nil
}

func newPool() (*multimodal.Multimodal, error) {
	modelFile := os.Getenv("MULTIMODAL_MODEL")
	projFile := os.Getenv("MULTIMODAL_PROJ")

	if modelFile == "" || projFile == "" {
		return nil, fmt.Errorf("MULTIMODAL_MODEL and MULTIMODAL_PROJ must be set")
	}

	if err := multimodal.Init(defaultLibPath(), multimodal.LogSilent); err != nil {
		return nil, fmt.Errorf("unable to init llamacpp: %w", err)
	}

	mm, err := multimodal.New(1, modelFile, projFile, multimodal.Config{
		ContextWindow: envInt("MULTIMODAL_CONTEXT_WINDOW"),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create session pool: %w", err)
	}

	return mm, nil
}

func promptAndImages(args []string) (string, [][]byte, error) {
	prompt := args[0]

	images := make([][]byte, 0, len(args)-1)
	for _, file := range args[1:] {
		d, err := os.ReadFile(file)
		if err != nil {
			return "", nil, fmt.Errorf("unable to read image %q: %w", file, err)
		}
		images = append(images, d)
	}

	if !strings.Contains(prompt, multimodal.DefaultMarker()) {
		markers := strings.Repeat(multimodal.DefaultMarker()+"\n", len(images))
		prompt = markers + prompt
	}

	return prompt, images, nil
}

func envInt(name string) int {
	var n int
	fmt.Sscanf(os.Getenv(name), "%d", &n)
	return n
}
