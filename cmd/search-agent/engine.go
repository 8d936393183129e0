// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/search-agent/internal/container"
)

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Inspect the reasoning engine environment",
}

var engineStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the container runtime and inference server image",
	Long: `Status verifies that a container runtime (docker or podman) is
available and that the configured inference server image exists locally.
Run it before long batch runs against a local engine.`,
	RunE: runEngineStatus,
}

func init() {
	engineStatusCmd.Flags().String("image", "", "inference server image to check (default from config)")

	engineCmd.AddCommand(engineStatusCmd)
	rootCmd.AddCommand(engineCmd)
}

func runEngineStatus(cmd *cobra.Command, args []string) error {
	rt, err := container.DetectRuntime()
	if err != nil {
		return err
	}
	fmt.Printf("Container runtime: %s\n", rt.Name())

	image, _ := cmd.Flags().GetString("image")
	if image == "" {
		image = viper.GetString("agent.engine.image")
	}
	if image == "" {
		fmt.Fprintln(os.Stderr, "No inference image configured; skipping image check.")
		return nil
	}

	if err := rt.ImageExists(image); err != nil {
		return err
	}
	fmt.Printf("Inference image:   %s (present)\n", image)
	return nil
}
