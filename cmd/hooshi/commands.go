package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/hooshi/config"
	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/storage"
	"github.com/urfave/cli/v2"
)

const timeLayout = "2006-01-02 15:04"

func parseID(s string) (core.ID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return core.ID(n), nil
}

func listConversationsCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	convs, err := db.GetConversations(c.Context)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}
	out := c.App.Writer
	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations")
		return nil
	}
	for _, conv := range convs {
		fmt.Fprintf(out, "%d\t%s\t%s\n", conv.ID, conv.UpdatedAt.Local().Format(timeLayout), conv.Title)
	}
	return nil
}

func newConversationCommand(c *cli.Context) error {
	title := strings.Join(c.Args().Slice(), " ")
	if title == "" {
		return errors.New("title is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	id, err := db.CreateConversation(c.Context, title)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	fmt.Fprintln(c.App.Writer, id)
	return nil
}

func showConversationCommand(c *cli.Context) error {
	id, err := parseID(c.Args().First())
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	detail, err := db.GetConversationByID(c.Context, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("conversation %d not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	out := c.App.Writer
	fmt.Fprintf(out, "# %s\n", detail.Title)
	for _, msg := range detail.Messages {
		fmt.Fprintf(out, "[%s] %s: %s\n", msg.CreatedAt.Local().Format(timeLayout), msg.Role, msg.Content)
	}
	return nil
}

func renameConversationCommand(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.New("usage: conversations rename <id> <title>")
	}
	id, err := parseID(c.Args().First())
	if err != nil {
		return err
	}
	title := strings.Join(c.Args().Tail(), " ")

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	ok, err := db.UpdateConversationTitle(c.Context, id, title)
	if err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	if !ok {
		return fmt.Errorf("conversation %d not found", id)
	}
	return nil
}

func deleteConversationCommand(c *cli.Context) error {
	id, err := parseID(c.Args().First())
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	ok, err := db.DeleteConversation(c.Context, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if !ok {
		return fmt.Errorf("conversation %d not found", id)
	}
	return nil
}

func usageHistoryCommand(c *cli.Context) error {
	limit := c.Int("limit")
	if limit <= 0 {
		limit = configFrom(c).Usage.HistoryLimit
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	records, err := db.GetAPIUsageHistory(c.Context, limit, c.Int("offset"))
	if err != nil {
		return fmt.Errorf("failed to read usage history: %w", err)
	}
	out := c.App.Writer
	for _, r := range records {
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\t%s\t%d tokens\t$%.6f\n",
			r.ID, r.Timestamp.Local().Format(timeLayout), r.Endpoint, r.ResponseType, r.Model, r.TotalTokens, r.Cost)
	}
	return nil
}

func usageSummaryCommand(c *cli.Context) error {
	days := c.Int("days")
	if days <= 0 {
		days = configFrom(c).Usage.SummaryDays
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	end := time.Now()
	start := end.Add(-time.Duration(days) * 24 * time.Hour)
	summary, err := db.GetAPIUsageSummary(c.Context, start, end)
	if err != nil {
		return fmt.Errorf("failed to summarize usage: %w", err)
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Period: %s to %s\n", summary.Start.Local().Format(timeLayout), summary.End.Local().Format(timeLayout))
	fmt.Fprintf(out, "Requests: %d\n", summary.TotalRequests)
	fmt.Fprintf(out, "Tokens: %d (prompt %d, completion %d)\n", summary.TotalTokens, summary.PromptTokens, summary.CompletionTokens)
	fmt.Fprintf(out, "Audio: %.1fs\n", summary.AudioSeconds)
	fmt.Fprintf(out, "TTS characters: %d\n", summary.TTSChars)
	fmt.Fprintf(out, "Cost: $%.6f\n", summary.TotalCost)
	for _, model := range slices.Sorted(maps.Keys(summary.ByModel)) {
		b := summary.ByModel[model]
		fmt.Fprintf(out, "  %s\t%d requests\t%d tokens\t$%.6f\n", model, b.Requests, b.Tokens, b.Cost)
	}
	return nil
}

func usageCleanupCommand(c *cli.Context) error {
	days := c.Int("days")
	if days <= 0 {
		days = configFrom(c).Usage.RetentionDays
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	n, err := db.CleanupOldAPIUsageRecords(c.Context, days)
	if err != nil {
		return fmt.Errorf("failed to clean up usage records: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Deleted %d usage records older than %d days\n", n, days)
	return nil
}

func getSettingsCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	settings, err := db.GetSettings(c.Context)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	out := c.App.Writer
	if key := c.Args().First(); key != "" {
		value, ok := settings[key]
		if !ok {
			return fmt.Errorf("setting %q not set", key)
		}
		return printValue(c, value)
	}
	for _, key := range slices.Sorted(maps.Keys(settings)) {
		fmt.Fprintf(out, "%s=", key)
		if err := printValue(c, settings[key]); err != nil {
			return err
		}
	}
	return nil
}

func printValue(c *cli.Context, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting: %w", err)
	}
	fmt.Fprintln(c.App.Writer, string(data))
	return nil
}

func setSettingsCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("usage: settings set <key=value>...")
	}
	updates := make(map[string]any, c.NArg())
	for _, arg := range c.Args().Slice() {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid setting %q: expected key=value", arg)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		updates[key] = value
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	settings, err := db.GetSettings(c.Context)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	if settings == nil {
		settings = make(map[string]any, len(updates))
	}
	maps.Copy(settings, updates)

	if err := db.SaveSettings(c.Context, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func resetCommand(c *cli.Context) error {
	if !c.Bool("yes") {
		return errors.New("reset deletes all data; pass --yes to confirm")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	if err := db.ResetDatabase(c.Context); err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "Database reset")
	return nil
}

func initConfigCommand(c *cli.Context) error {
	path, _ := c.App.Metadata["config-path"].(string)
	if path == "" {
		return errors.New("no config path")
	}
	if !c.Bool("force") {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists; pass --force to overwrite", path)
		}
	}
	if err := config.SaveTOML(configFrom(c), path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}
