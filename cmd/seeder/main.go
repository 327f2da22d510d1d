package main

import (
	"bufio"
	"context"
	"flag"
	"iter"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/hooshi"
	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/usage"
)

// dialogue is one seeded conversation: a title and alternating user and
// assistant turns, user first.
type dialogue struct {
	title string
	turns []string
}

var dialogues = []dialogue{
	{"آپارتمان در ونک", []string{
		"سلام، دنبال یک آپارتمان دو خوابه در ونک هستم.",
		"سلام! برای ونک بگو بودجه‌ت حدوداً چقدره و چند متر مد نظرته؟",
		"حدود ۱۰۰ متر و بودجه‌م تا ۱۵ میلیارد.",
		"با این بودجه تو ونک گزینه‌های نوساز کمتر پیدا می‌شه، ولی بناهای ۱۰ ساله با پارکینگ و انباری در دسترسه.",
	}},
	{"رهن و اجاره در شهرک غرب", []string{
		"برای رهن کامل یک واحد ۸۰ متری در شهرک غرب چقدر باید کنار بذارم؟",
		"برای رهن کامل در شهرک غرب بسته به سن بنا باید چند میلیارد ودیعه در نظر بگیری. ترجیح می‌دی بخشی رو اجاره ماهانه بدی؟",
		"آره، نصف رهن و نصف اجاره بهتره.",
		"پس بهتره با دو سه مشاور محله صحبت کنی و قرارداد رو حتماً با کد رهگیری ببندی.",
	}},
	{"فروش ویلا در شمال", []string{
		"می‌خوام ویلام در نوشهر رو بفروشم، از کجا شروع کنم؟",
		"اول سند و پایان کار رو آماده کن و قیمت ویلاهای مشابه اطراف رو بررسی کن. سند ویلا تک‌برگه است؟",
		"بله، سند تک‌برگ داره.",
		"عالیه، سند تک‌برگ فروش رو راحت‌تر می‌کنه. عکس‌های خوب و آگهی در چند سایت معتبر هم خیلی کمک می‌کنه.",
	}},
	{"وام مسکن", []string{
		"وام مسکن زوجین چقدره و چطور می‌شه گرفت؟",
		"سقف وام و شرایطش هر سال تغییر می‌کنه. بهتره از بانک عامل استعلام بگیری و مدارک ازدواج و سند ملک رو آماده کنی.",
	}},
	{"زمین در کرج", []string{
		"خرید زمین مسکونی در کرج الان به صرفه است؟",
		"زمین در مناطق در حال توسعه کرج می‌تونه سرمایه‌گذاری خوبی باشه. حتماً کاربری و استعلام شهرداری رو قبل از خرید بگیر.",
	}},
}

var (
	dbPath       = flag.String("db", "./hooshi_db", "database directory")
	seedFileName = flag.String("src", "", "file of seed dialogues: turns one per line, a blank line between conversations, an optional '# ' title line")
	usageDays    = flag.Int("days", 30, "spread seeded usage records over this many past days")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// dialoguesFromFile returns an iterator over dialogues in a file.
func dialoguesFromFile(filename string) (iter.Seq[dialogue], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(dialogue) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		var current dialogue
		flush := func() bool {
			if len(current.turns) == 0 {
				return true
			}
			if current.title == "" {
				current.title = usage.Summarize(current.turns[0])
			}
			ok := yield(current)
			current = dialogue{}
			return ok
		}
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "":
				if !flush() {
					return
				}
			case strings.HasPrefix(line, "# "):
				current.title = strings.TrimPrefix(line, "# ")
			default:
				current.turns = append(current.turns, line)
			}
		}
		flush()
	}, nil
}

// dialoguesFromSlice returns an iterator over a slice of dialogues.
func dialoguesFromSlice(ds []dialogue) iter.Seq[dialogue] {
	return func(yield func(dialogue) bool) {
		for _, d := range ds {
			if !yield(d) {
				return
			}
		}
	}
}

// seed stores each dialogue with a usage record per assistant turn. Usage
// timestamps are spread backwards over days so summaries have history.
func seed(ctx context.Context, db *hooshi.Database, source iter.Seq[dialogue], days int) error {
	now := time.Now()
	step := time.Hour
	n := 0
	for d := range source {
		convID, err := db.CreateConversation(ctx, d.title)
		if err != nil {
			return err
		}
		for i, turn := range d.turns {
			role := core.RoleUser
			if i%2 == 1 {
				role = core.RoleAssistant
			}
			if _, err := db.SaveMessage(ctx, convID, role, turn); err != nil {
				return err
			}
			if role != core.RoleAssistant {
				continue
			}

			request := d.turns[i-1]
			prompt, completion := usage.EstimateSimulatedTokens(request + turn)
			records := []*core.UsageRecord{
				usage.ChatRecord(core.IDPtr(convID), usage.DefaultChatModel, request, turn, prompt, completion, 1200*time.Millisecond),
			}
			if n%3 == 0 {
				records = append(records,
					usage.TranscriptionRecord(core.IDPtr(convID), int64(len(request))*2048, request, 800*time.Millisecond, nil),
					usage.SpeechRecord(core.IDPtr(convID), usage.SpeechModel, turn, 600*time.Millisecond, nil),
				)
			}
			for _, record := range records {
				if days > 0 {
					record.Timestamp = now.Add(-time.Duration(n) * step).Add(-time.Duration(n%days) * 24 * time.Hour)
				}
				if _, err := db.RecordAPIUsage(ctx, record); err != nil {
					return err
				}
			}
			n++
		}
		slog.Info("seeded conversation", "id", convID, "title", d.title, "turns", len(d.turns))
	}
	return nil
}

func main() {
	flag.Parse()

	db, err := hooshi.NewDatabase(*dbPath)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ctx := context.Background()

	// Determine source of seed data
	var source iter.Seq[dialogue]
	if seedFileName != nil && *seedFileName != "" {
		source, err = dialoguesFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	} else {
		source = dialoguesFromSlice(dialogues)
	}

	if err := seed(ctx, db, source, *usageDays); err != nil {
		panic(err)
	}
}
