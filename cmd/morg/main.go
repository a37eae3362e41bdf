package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/franz/mp3-organizer/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "morg",
		Short: "MP3 organizer - tag your music from its filenames",
		Long: `morg catalogs the MP3 files of a folder tree and their ID3 tags.

It derives title, artist, track number and album from filenames such as
"03 - Song Title - Artist.mp3", lets you edit single tag fields, clears
tags in bulk and can watch a folder to tag new files as they arrive.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.SetVerbose(viper.GetBool("verbose"))
			util.SetQuiet(viper.GetBool("quiet"))
			if viper.GetBool("no-color") {
				util.SetColors(false)
			}
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/morg.yaml)")
	rootCmd.PersistentFlags().String("db", defaultDBPath, "catalog database file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored log output")
	rootCmd.PersistentFlags().IntP("concurrency", "c", defaultConcurrency, "number of files processed in parallel")
	rootCmd.PersistentFlags().StringSlice("extensions", []string{".mp3"}, "file extensions to catalog")
	rootCmd.PersistentFlags().String("events-dir", defaultEventsDir, "directory for JSONL event logs (empty to disable)")
	rootCmd.PersistentFlags().Bool("nas-mode", false, "force network share tuning on or off (default: detect)")

	// Bind flags to viper
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))
	viper.BindPFlag("concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
	viper.BindPFlag("extensions", rootCmd.PersistentFlags().Lookup("extensions"))
	viper.BindPFlag("events-dir", rootCmd.PersistentFlags().Lookup("events-dir"))
	viper.BindPFlag("nas-mode", rootCmd.PersistentFlags().Lookup("nas-mode"))
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("morg")
		viper.SetConfigType("yaml")
	}

	// MORG_EVENTS_DIR maps to events-dir
	viper.SetEnvPrefix("MORG")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

// signalContext is cancelled on Ctrl-C so long batches stop between files
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
