package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var evalCmd = &cobra.Command{
	Use:   "eval <PROMPT> <IMAGE_FILE> [IMAGE_FILE...]",
	Short: "Tokenize and evaluate a prompt against one or more images",
	Long: `Tokenize and evaluate a prompt against one or more images, advancing the
session's sequence position, and print the position summary.

Environment Variables:
      MULTIMODAL_LIB_PATH        (default: $HOME/multimodal/libraries)  The path to the libraries directory
      MULTIMODAL_MODEL           (required)                             The GGUF model file
      MULTIMODAL_PROJ            (required)                             The multimodal projector file
      MULTIMODAL_CONTEXT_WINDOW  (default: model metadata)              Context window for the session`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEval,
}

func runEval(cmd *cobra.Command, args []string) error {
	mm, err := newPool()
	if err != nil {
		return err
	}
	defer mm.Unload()

	prompt, images, err := promptAndImages(args)
	if err != nil {
		return err
	}

	result, err := mm.TokenizeAndEvaluate(cmd.Context(), prompt, images)
	if err != nil {
		return fmt.Errorf("unable to evaluate: %w", err)
	}

	fmt.Println("tokens processed:", result.TokensProcessed)
	fmt.Println("previous position:", result.PreviousSequenceLength)
	fmt.Println("new position     :", result.NewSequenceLength)

	return nil
}
