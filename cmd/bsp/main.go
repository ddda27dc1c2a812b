package main

import (
	"fmt"
	"os"

	"github.com/milosgajdos/go-bsp/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	// configFile is problem yaml file overlaid on the preset
	configFile string
	// preset names the base problem
	preset string
	// verbose enables debug logging
	verbose bool
	// plotPath is PNG output path; empty disables plotting
	plotPath string
	// ascii renders trajectories in the terminal
	ascii bool
	// xAxis and yAxis select plotted mean components
	xAxis int
	yAxis int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "bsp",
		Short:        "belief space planning",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "problem config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", config.LightDark, "base problem preset")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "optimize belief trajectory",
		Args:  cobra.NoArgs,
		RunE:  runPlan,
	}

	mpcCmd := &cobra.Command{
		Use:   "mpc",
		Short: "execute belief trajectory in receding horizon",
		Args:  cobra.NoArgs,
		RunE:  runMPC,
	}

	for _, cmd := range []*cobra.Command{planCmd, mpcCmd} {
		cmd.Flags().StringVar(&plotPath, "plot", "", "save trajectory plot to PNG file")
		cmd.Flags().BoolVar(&ascii, "ascii", false, "render trajectory in the terminal")
		cmd.Flags().IntVar(&xAxis, "x-axis", 0, "mean component for x-axis, -1 plots time")
		cmd.Flags().IntVar(&yAxis, "y-axis", 1, "mean component for y-axis")
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print problem config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProblem()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(p)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	saveCmd := &cobra.Command{
		Use:   "save [path]",
		Short: "save problem config to file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProblem()
			if err != nil {
				return err
			}
			return config.Save(args[0], p)
		},
	}
	configCmd.AddCommand(saveCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list problem presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.Presets() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}

	rootCmd.AddCommand(planCmd, mpcCmd, configCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadProblem returns the preset problem overlaid with the config file
func loadProblem() (*config.Problem, error) {
	p, err := config.Preset(preset)
	if err != nil {
		return nil, fmt.Errorf("%v (available: %v)", err, config.Presets())
	}

	if configFile != "" {
		if err := p.Overlay(configFile); err != nil {
			return nil, err
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.DisableStacktrace = true

	return cfg.Build()
}
