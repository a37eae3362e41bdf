package util

import (
	"fmt"
	"time"
)

// NASSettings are the worker count and tag-write retry policy for one music folder
type NASSettings struct {
	Concurrency  int
	Retry        *RetryConfig
	IsNASMode    bool
	DetectedInfo *NetworkInfo
}

// nasMaxConcurrency caps workers on network shares. Every tag write rewrites
// the whole file over the wire.
const nasMaxConcurrency = 2

// NASRetryConfig is the retry policy for tag writes on a network share
func NASRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 5,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     10 * time.Second,
	}
}

// TuneForPath picks settings for the music folder at path. A non-nil nasMode
// overrides detection.
func TuneForPath(path string, nasMode *bool, baseConcurrency int) *NASSettings {
	cfg := &NASSettings{
		Concurrency: baseConcurrency,
		Retry:       DefaultRetryConfig(),
	}

	if nasMode != nil {
		if *nasMode {
			applyNASTuning(cfg)
			InfoLog("NAS mode: explicitly enabled via config/flag (%d workers)", cfg.Concurrency)
		} else {
			DebugLog("NAS mode: explicitly disabled via config/flag")
		}
		return cfg
	}

	if path == "" {
		return cfg
	}

	info, err := DetectNetworkFilesystem(path)
	if err != nil {
		WarnLog("Failed to detect filesystem for %s: %v", path, err)
		return cfg
	}
	if !info.IsNetwork {
		DebugLog("Local filesystem detected for %s", path)
		return cfg
	}

	cfg.DetectedInfo = info
	applyNASTuning(cfg)

	InfoLog("Network filesystem detected: %s mount at %s", info.Protocol, info.MountPath)
	InfoLog("  Concurrency: %d -> %d workers", baseConcurrency, cfg.Concurrency)
	InfoLog("  Tag write attempts: %d", cfg.Retry.MaxAttempts)
	InfoLog("TIP: Use --nas-mode=false to disable auto-tuning")

	return cfg
}

func applyNASTuning(cfg *NASSettings) {
	if cfg.Concurrency <= 0 || cfg.Concurrency > nasMaxConcurrency {
		cfg.Concurrency = nasMaxConcurrency
	}
	cfg.Retry = NASRetryConfig()
	cfg.IsNASMode = true
}

// String renders the settings on one line
func (cfg *NASSettings) String() string {
	if !cfg.IsNASMode {
		return fmt.Sprintf("local filesystem, %d workers", cfg.Concurrency)
	}

	protocol := "forced"
	if cfg.DetectedInfo != nil {
		protocol = cfg.DetectedInfo.Protocol
		if cfg.DetectedInfo.MountPath != "" {
			protocol += " at " + cfg.DetectedInfo.MountPath
		}
	}
	return fmt.Sprintf("network share (%s), %d workers, %d write attempts",
		protocol, cfg.Concurrency, cfg.Retry.MaxAttempts)
}
