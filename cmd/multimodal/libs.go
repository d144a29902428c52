package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardanlabs/multimodal/install"
	"github.com/hybridgroup/yzma/pkg/download"
	"github.com/spf13/cobra"
)

var libsCmd = &cobra.Command{
	Use:   "libs",
	Short: "Install or upgrade the llama.cpp libraries",
	Long: `Install or upgrade the llama.cpp libraries

Environment Variables:
      MULTIMODAL_LIB_PATH   (default: $HOME/multimodal/libraries)  The path to the libraries directory
      MULTIMODAL_PROCESSOR  (default: cpu)                         Options: cpu, cuda, metal, vulkan`,
	RunE: runLibs,
}

func runLibs(cmd *cobra.Command, args []string) error {
	libPath := defaultLibPath()

	fmt.Println("Installing llama.cpp libraries to:", libPath)

	processor, err := processor()
	if err != nil {
		return fmt.Errorf("unable to parse processor: %w", err)
	}

	version, err := install.Libraries(libPath, processor, true)
	if err != nil {
		return fmt.Errorf("unable to install libraries: %w", err)
	}

	fmt.Println("Installed version:", version.Current)
	fmt.Println("Latest version   :", version.Latest)

	return nil
}

func defaultLibPath() string {
	if v := os.Getenv("MULTIMODAL_LIB_PATH"); v != "" {
		return v
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "libraries"
	}

	return filepath.Join(home, "multimodal", "libraries")
}

func processor() (download.Processor, error) {
	if v := os.Getenv("MULTIMODAL_PROCESSOR"); v != "" {
		return download.ParseProcessor(v)
	}

	return download.CPU, nil
}
