// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/hooshi"
	"github.com/poiesic/hooshi/config"
	"github.com/poiesic/hooshi/snapshot"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "hooshi",
		Usage: "Real-estate chat assistant with local conversation and usage storage",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to database directory",
			},
			&cli.StringFlag{
				Name:  "snapshot-driver",
				Usage: "Fallback snapshot medium (bolt, sqlite, memory)",
			},
			&cli.StringFlag{
				Name:  "snapshot",
				Usage: "Path to fallback snapshot file",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:    "conversations",
				Aliases: []string{"conv"},
				Usage:   "Manage stored conversations",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List conversations, most recently updated first",
						Action: listConversationsCommand,
					},
					{
						Name:      "new",
						Usage:     "Create an empty conversation",
						ArgsUsage: "<title>",
						Action:    newConversationCommand,
					},
					{
						Name:      "show",
						Usage:     "Print a conversation and its messages",
						ArgsUsage: "<id>",
						Action:    showConversationCommand,
					},
					{
						Name:      "rename",
						Usage:     "Change a conversation's title",
						ArgsUsage: "<id> <title>",
						Action:    renameConversationCommand,
					},
					{
						Name:      "delete",
						Usage:     "Delete a conversation and its messages",
						ArgsUsage: "<id>",
						Action:    deleteConversationCommand,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Send a message to the assistant",
				ArgsUsage: "<message>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:    "conversation",
						Aliases: []string{"C"},
						Usage:   "Continue an existing conversation instead of starting one",
					},
				},
			},
			{
				Name:  "usage",
				Usage: "Inspect recorded API usage",
				Subcommands: []*cli.Command{
					{
						Name:   "history",
						Usage:  "List usage records, newest first",
						Action: usageHistoryCommand,
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "limit",
								Usage: "Maximum number of records (default from config)",
							},
							&cli.IntFlag{
								Name:  "offset",
								Usage: "Number of records to skip",
							},
						},
					},
					{
						Name:   "summary",
						Usage:  "Summarize usage over a period",
						Action: usageSummaryCommand,
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "days",
								Usage: "Number of days to summarize (default from config)",
							},
						},
					},
					{
						Name:   "cleanup",
						Usage:  "Delete usage records older than the retention period",
						Action: usageCleanupCommand,
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "days",
								Usage: "Retention period in days (default from config)",
							},
						},
					},
				},
			},
			{
				Name:  "settings",
				Usage: "Read and write user settings",
				Subcommands: []*cli.Command{
					{
						Name:      "get",
						Usage:     "Print all settings or one key",
						ArgsUsage: "[key]",
						Action:    getSettingsCommand,
					},
					{
						Name:      "set",
						Usage:     "Set one or more settings; values are parsed as JSON when possible",
						ArgsUsage: "<key=value>...",
						Action:    setSettingsCommand,
					},
				},
			},
			{
				Name:   "reset",
				Usage:  "Delete every conversation, message, usage record and setting",
				Action: resetCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm the reset",
					},
				},
			},
			{
				Name:   "init-config",
				Usage:  "Write the effective configuration to the config file",
				Action: initConfigCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
			},
		},
	}
}

// setup loads the configuration and configures logging.
func setup(c *cli.Context) error {
	path := c.String("config")
	required := path != ""
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}

	cfg, err := config.Load(path, required)
	if err != nil {
		return err
	}
	if c.IsSet("db") {
		cfg.Database.Path = c.String("db")
	}
	if c.IsSet("snapshot-driver") {
		cfg.Database.SnapshotDriver = c.String("snapshot-driver")
	}
	if c.IsSet("snapshot") {
		cfg.Database.SnapshotPath = c.String("snapshot")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[configKey] = cfg
	c.App.Metadata["config-path"] = path

	return setupLogger(c, cfg.LogLevel)
}

func setupLogger(c *cli.Context, levelStr string) error {
	// Normalize to lowercase
	levelStr = strings.ToLower(levelStr)

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func configFrom(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// openDatabase opens the database described by the configuration.
func openDatabase(c *cli.Context) (*hooshi.Database, error) {
	cfg := configFrom(c).Database
	driver := cfg.SnapshotDriver
	if driver == "" {
		driver = snapshot.DriverBolt
	}

	opts := []hooshi.DatabaseOption{
		hooshi.WithLogger(slog.Default()),
		hooshi.WithInitWait(cfg.InitAttempts, time.Duration(cfg.InitDelayMS)*time.Millisecond),
	}

	if driver != snapshot.DriverBolt || cfg.SnapshotPath != "" {
		path := cfg.SnapshotPath
		if path == "" && cfg.Path != "" {
			path = filepath.Join(cfg.Path, "fallback."+driver)
		}
		if path == "" {
			driver = snapshot.DriverMemory
		}
		if driver != snapshot.DriverMemory {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
			}
		}
		medium, err := snapshot.Open(driver, path)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot: %w", err)
		}
		opts = append(opts, hooshi.WithSnapshotMedium(medium))
	}

	db, err := hooshi.NewDatabase(cfg.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func closeDatabase(db *hooshi.Database) {
	if err := db.Close(); err != nil {
		slog.Error("failed to close database", "err", err)
	}
}
