package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sigreer/partgod/internal/config"
	"github.com/sigreer/partgod/internal/discovery"
	"github.com/sigreer/partgod/internal/layout"
	"github.com/sigreer/partgod/internal/version"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "partgod",
	Short: "Disk layout planner for OS installation",
	Long: `partgod discovers the disks of a machine, lets you plan a partition
layout for them (or apply the default boot/root/swap scheme) and exports
the result as a declarative partitioning descriptor for the installer.

Disks hosting the running system are never offered.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/partgod/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(disksCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(plansCmd)
}

// loadConfig loads the configuration and sets up logging, exiting on error
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: !stderrIsTerminal()})

	return cfg
}

// collectDisks runs discovery with the configured lsblk, exiting on error
func collectDisks(cfg *config.Config) []*layout.Disk {
	lsblk, err := cfg.Discovery.LsblkPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	src := &discovery.Source{Binary: lsblk, Protected: cfg.Discovery.ProtectedMounts}
	disks, err := src.Collect(layout.NewIDs())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error discovering disks: %v\n", err)
		os.Exit(1)
	}
	logrus.WithField("count", len(disks)).Debug("Discovered disks")
	return disks
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
