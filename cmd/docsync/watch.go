package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/jingkaihe/docsync/pkg/pipeline"
	"github.com/jingkaihe/docsync/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// WatchConfig holds configuration for the watch command
type WatchConfig struct {
	IgnoreDirs   []string
	Verbosity    string
	DebounceTime int
	DryRun       bool
}

// NewWatchConfig creates a new WatchConfig with default values
func NewWatchConfig() *WatchConfig {
	return &WatchConfig{
		IgnoreDirs:   nil,
		Verbosity:    "normal",
		DebounceTime: 1000,
		DryRun:       false,
	}
}

// Validate validates the WatchConfig and returns an error if invalid
func (c *WatchConfig) Validate() error {
	validVerbosityLevels := []string{"quiet", "normal", "verbose"}
	if !slices.Contains(validVerbosityLevels, c.Verbosity) {
		return errors.Errorf("invalid verbosity level: %s, must be one of: %s", c.Verbosity, strings.Join(validVerbosityLevels, ", "))
	}
	if c.DebounceTime < 0 {
		return errors.Errorf("debounce time cannot be negative: %d", c.DebounceTime)
	}
	return nil
}

// FileEvent represents a file system event with additional metadata
type FileEvent struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-sync agent files whenever the project changes",
	Long: `Sync the project once, then watch the tree and sync again after every
burst of file changes. Changes to the agent files themselves are ignored.

By default the directories skipped by detection are not watched.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		config := getWatchConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}
		presenter.SetQuiet(config.Verbosity == "quiet")

		cfg := appConfig
		cfg.Ecosystem.Enabled = false
		rt, err := newRuntime(ctx, cfg)
		if err != nil {
			presenter.Error(err, "Failed to initialise docsync")
			os.Exit(1)
		}
		defer rt.Close()

		root, err := filepath.Abs(pathArg(args))
		if err != nil {
			presenter.Error(err, "Failed to resolve project root")
			os.Exit(1)
		}

		if err := runWatchMode(ctx, rt.pipeline, root, config); err != nil {
			presenter.Error(err, "Failed to watch project")
			os.Exit(1)
		}
	},
}

func init() {
	addWatchFlags(watchCmd)
}

func addWatchFlags(cmd *cobra.Command) {
	defaults := NewWatchConfig()
	cmd.Flags().StringSliceP("ignore", "i", defaults.IgnoreDirs, "Directories to ignore (default: detection.skip_dirs)")
	cmd.Flags().StringP("verbosity", "v", defaults.Verbosity, "Verbosity level (quiet, normal, verbose)")
	cmd.Flags().IntP("debounce", "d", defaults.DebounceTime, "Debounce time in milliseconds for file change events")
	cmd.Flags().Bool("dry-run", defaults.DryRun, "Report the changes without writing any file")
}

// getWatchConfigFromFlags extracts watch configuration from command flags
func getWatchConfigFromFlags(cmd *cobra.Command) *WatchConfig {
	config := NewWatchConfig()

	if ignoreDirs, err := cmd.Flags().GetStringSlice("ignore"); err == nil {
		config.IgnoreDirs = ignoreDirs
	}
	if verbosity, err := cmd.Flags().GetString("verbosity"); err == nil {
		config.Verbosity = verbosity
	}
	if debounceTime, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.DebounceTime = debounceTime
	}
	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
		config.DryRun = dryRun
	}

	if len(config.IgnoreDirs) == 0 {
		config.IgnoreDirs = appConfig.Detection.SkipDirs
	}
	return config
}

func runWatchMode(ctx context.Context, p *pipeline.Pipeline, root string, config *WatchConfig) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	agentFiles := []string{appConfig.Docs.PrimaryFile, appConfig.Docs.AliasFile}
	syncConfig := &SyncConfig{DryRun: config.DryRun}

	events := make(chan FileEvent)
	triggers := make(chan FileEvent)
	go debounceFileEvents(ctx, events, triggers, time.Duration(config.DebounceTime)*time.Millisecond)

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create != 0 {
					addNewDirectory(ctx, watcher, event.Name, config)
				}
				if !relevantEvent(event, root, agentFiles, config.IgnoreDirs) {
					continue
				}
				if config.Verbosity == "verbose" {
					logger.G(ctx).WithField("file", event.Name).WithField("operation", event.Op.String()).Debug("file change detected")
				}
				select {
				case events <- FileEvent{Path: event.Name, Op: event.Op, Time: time.Now()}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				presenter.Error(err, "File watcher error")
				logger.G(ctx).WithError(err).Error("error watching files")
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := addWatchDirs(ctx, watcher, root, config); err != nil {
		return err
	}

	runSync(ctx, p, root, syncConfig)
	presenter.Info("Watching for file changes... Press Ctrl+C to stop")

	for {
		select {
		case event := <-triggers:
			presenter.Info(fmt.Sprintf("Change detected: %s (%s)", event.Path, event.Op))
			runSync(ctx, p, root, syncConfig)
		case <-ctx.Done():
			return nil
		}
	}
}

func addWatchDirs(ctx context.Context, watcher *fsnotify.Watcher, root string, config *WatchConfig) error {
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && slices.Contains(config.IgnoreDirs, d.Name()) {
			if config.Verbosity == "verbose" {
				logger.G(ctx).WithField("directory", path).Debug("skipping ignored directory")
			}
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
	if err != nil {
		return errors.Wrap(err, "failed to watch directories")
	}
	logger.G(ctx).WithField("directories_count", len(watcher.WatchList())).Debug("file watcher initialized")
	return nil
}

func addNewDirectory(ctx context.Context, watcher *fsnotify.Watcher, path string, config *WatchConfig) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || slices.Contains(config.IgnoreDirs, info.Name()) {
		return
	}
	if err := addWatchDirs(ctx, watcher, path, config); err != nil {
		logger.G(ctx).WithError(err).WithField("directory", path).Debug("failed to watch new directory")
	}
}

// relevantEvent reports whether event may change the sync outcome. Writes
// to agent files are the sync's own output and never trigger a run.
func relevantEvent(event fsnotify.Event, root string, agentFiles, ignoreDirs []string) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if slices.Contains(agentFiles, filepath.Base(event.Name)) {
		return false
	}

	rel, err := filepath.Rel(root, event.Name)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if slices.Contains(ignoreDirs, part) {
			return false
		}
	}
	return true
}

// debounceFileEvents forwards the last event of every burst once no event
// arrived for delay. Bursts across different files collapse into one run.
func debounceFileEvents(ctx context.Context, input <-chan FileEvent, output chan<- FileEvent, delay time.Duration) {
	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending FileEvent
	)

	for {
		select {
		case event, ok := <-input:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				return
			}
			pending = event
			if timer == nil {
				timer = time.NewTimer(delay)
			} else {
				timer.Stop()
				timer.Reset(delay)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			select {
			case output <- pending:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
