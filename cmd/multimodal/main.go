// Command multimodal exercises the bridge from the command line: installing
// the llama.cpp libraries, tokenizing prompts against images, and running
// the combined tokenize and evaluate operation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "multimodal",
	Short: "Multimodal tokenization and evaluation for llama.cpp models",
	Long:  "Multimodal tokenization and evaluation for llama.cpp models. The tool decodes images, tokenizes prompts that interleave text and image markers, and evaluates the resulting chunks against a model context via the yzma bindings.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
	rootCmd.SetVersionTemplate(version)

	rootCmd.AddCommand(libsCmd)
	rootCmd.AddCommand(tokenizeCmd)
	rootCmd.AddCommand(evalCmd)
}
