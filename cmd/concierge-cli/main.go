// ABOUTME: Operator CLI for invoking concierge capabilities through the typed client.
// ABOUTME: One subcommand per capability plus a catalogue listing, with colored output.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/murmurchat/concierge/internal/client"
)

const usage = `Usage: concierge-cli [flags] <command>

Flags:
  --server URL   Server base URL (default http://localhost:8080, or CONCIERGE_SERVER)
  --token TOKEN  Bearer token (or CONCIERGE_TOKEN)

Commands:
  capabilities                                    List the capability catalogue
  search      --query Q [--thread T] [--limit N]  Semantic message search
  summarize   --thread T [--points N]             Summarize a thread
  actions     --thread T                          Extract action items
  decisions   --thread T                          Extract decisions
  categorize  --message M                         Categorize one message
  scheduling  --thread T [--lookback N]           Detect scheduling intent
  calendar    --user U --from T --to T            Free/busy for a user
  suggest     --participants A,B --duration N --from T --to T [--max N]
                                                  Suggest meeting times
`

func main() {
	server := os.Getenv("CONCIERGE_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	token := os.Getenv("CONCIERGE_TOKEN")

	args := os.Args[1:]
	for len(args) > 0 && strings.HasPrefix(args[0], "--") {
		switch args[0] {
		case "--server":
			if len(args) < 2 {
				fail("--server requires a value")
			}
			server, args = args[1], args[2:]
		case "--token":
			if len(args) < 2 {
				fail("--token requires a value")
			}
			token, args = args[1], args[2:]
		default:
			fail("unknown flag %q", args[0])
		}
	}

	if len(args) == 0 {
		fmt.Print(usage)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cl := client.New(server, token)

	var err error
	switch args[0] {
	case "capabilities":
		err = runCapabilities(ctx, cl)
	case "search":
		err = runSearch(ctx, cl, args[1:])
	case "summarize":
		err = runSummarize(ctx, cl, args[1:])
	case "actions":
		err = runActions(ctx, cl, args[1:])
	case "decisions":
		err = runDecisions(ctx, cl, args[1:])
	case "categorize":
		err = runCategorize(ctx, cl, args[1:])
	case "scheduling":
		err = runScheduling(ctx, cl, args[1:])
	case "calendar":
		err = runCalendar(ctx, cl, args[1:])
	case "suggest":
		err = runSuggest(ctx, cl, args[1:])
	default:
		fmt.Print(usage)
		os.Exit(1)
	}

	if err != nil {
		var callErr *client.CallError
		if errors.As(err, &callErr) {
			color.Red("%s: %s", callErr.Code, callErr.Message)
			for _, v := range callErr.Details {
				color.Yellow("  %s: %s", v.Field, v.Reason)
			}
			os.Exit(1)
		}
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func fail(format string, args ...any) {
	color.Red(format+"\n", args...)
	os.Exit(1)
}

func runCapabilities(ctx context.Context, cl *client.Client) error {
	caps, err := cl.Capabilities(ctx)
	if err != nil {
		return err
	}
	cyan := color.New(color.FgCyan)
	for _, c := range caps {
		cyan.Printf("%-22s", c.Name)
		fmt.Println(c.Description)
	}
	return nil
}

func runSearch(ctx context.Context, cl *client.Client, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	query := fs.String("query", "", "search query")
	thread := fs.String("thread", "", "thread scope")
	limit := fs.Int("limit", 0, "max results")
	fs.Parse(args)

	res, err := cl.SearchMessages(ctx, client.SearchMessagesParams{
		Query:    *query,
		ThreadID: *thread,
		Limit:    *limit,
	})
	if err != nil {
		return err
	}
	if len(res.Matches) == 0 {
		fmt.Println("no matches")
		return nil
	}
	green := color.New(color.FgGreen)
	for _, m := range res.Matches {
		green.Printf("%.3f ", m.Score)
		fmt.Printf("[%s/%s] %s\n", m.ThreadID, m.MessageID, m.Snippet)
	}
	return nil
}

func runSummarize(ctx context.Context, cl *client.Client, args []string) error {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	thread := fs.String("thread", "", "thread id")
	points := fs.Int("points", 0, "max key points")
	fs.Parse(args)

	res, err := cl.SummarizeThread(ctx, client.SummarizeThreadParams{
		ThreadID:  *thread,
		MaxPoints: *points,
	})
	if err != nil {
		return err
	}
	fmt.Println(res.Summary)
	if len(res.KeyPoints) > 0 {
		fmt.Println()
		for _, p := range res.KeyPoints {
			color.New(color.FgGreen).Print("  • ")
			fmt.Println(p)
		}
	}
	color.New(color.FgHiBlack).Printf("participants: %s\n", strings.Join(res.Participants, ", "))
	return nil
}

func runActions(ctx context.Context, cl *client.Client, args []string) error {
	fs := flag.NewFlagSet("actions", flag.ExitOnError)
	thread := fs.String("thread", "", "thread id")
	fs.Parse(args)

	res, err := cl.ExtractActionItems(ctx, client.ExtractActionItemsParams{ThreadID: *thread})
	if err != nil {
		return err
	}
	if len(res.Items) == 0 {
		fmt.Println("no action items")
		return nil
	}
	for _, item := range res.Items {
		color.New(color.FgGreen).Print("☐ ")
		fmt.Print(item.Description)
		if item.Assignee != "" {
			color.New(color.FgCyan).Printf(" @%s", item.Assignee)
		}
		if item.DueHint != "" {
			color.New(color.FgYellow).Printf(" (%s)", item.DueHint)
		}
		color.New(color.FgHiBlack).Printf("  [%s]\n", item.SourceMessageID)
	}
	return nil
}

func runDecisions(ctx context.Context, cl *client.Client, args []string) error {
	fs := flag.NewFlagSet("decisions", flag.ExitOnError)
	thread := fs.String("thread", "", "thread id")
	fs.Parse(args)

	res, err := cl.TrackDecisions(ctx, client.TrackDecisionsParams{ThreadID: *thread})
	if err != nil {
		return err
	}
	if len(res.Decisions) == 0 {
		fmt.Println("no decisions")
		return nil
	}
	for _, d := range res.Decisions {
		color.New(color.FgGreen).Print("✓ ")
		fmt.Print(d.Statement)
		if d.DecidedBy != "" {
			color.New(color.FgCyan).Printf(" — %s", d.DecidedBy)
		}
		color.New(color.FgHiBlack).Printf("  [%s]\n", d.SourceMessageID)
	}
	return nil
}

func runCategorize(ctx context.Context, cl *client.Client, args []string) error {
	fs := flag.NewFlagSet("categorize", flag.ExitOnError)
	message := fs.String("message", "", "message id")
	fs.Parse(args)

	res, err := cl.CategorizeMessage(ctx, client.CategorizeMessageParams{MessageID: *message})
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Println(res.Category)
	color.New(color.FgHiBlack).Printf("source: %s\n", res.Source)
	return nil
}

func runScheduling(ctx context.Context, cl *client.Client, args []string) error {
	fs := flag.NewFlagSet("scheduling", flag.ExitOnError)
	thread := fs.String("thread", "", "thread id")
	lookback := fs.Int("lookback", 0, "messages to scan")
	fs.Parse(args)

	res, err := cl.DetectSchedulingNeed(ctx, client.DetectSchedulingNeedParams{
		ThreadID: *thread,
		Lookback: *lookback,
	})
	if err != nil {
		return err
	}
	if !res.Detected {
		fmt.Println("no scheduling intent detected")
		return nil
	}
	color.Green("scheduling intent detected")
	fmt.Printf("participants: %s\n", strings.Join(res.Intent.Participants, ", "))
	if res.Intent.WindowHint != "" {
		fmt.Printf("window hint:  %s\n", res.Intent.WindowHint)
	}
	color.New(color.FgHiBlack).Printf("source: %s\n", res.Intent.SourceMessageID)
	return nil
}

func runCalendar(ctx context.Context, cl *client.Client, args []string) error {
	fs := flag.NewFlagSet("calendar", flag.ExitOnError)
	user := fs.String("user", "", "user id")
	from := fs.String("from", "", "range start (RFC3339)")
	to := fs.String("to", "", "range end (RFC3339)")
	fs.Parse(args)

	res, err := cl.CheckCalendar(ctx, client.CheckCalendarParams{
		UserID: *user,
		From:   *from,
		To:     *to,
	})
	if err != nil {
		return err
	}
	printIntervals("busy", res.Busy, color.New(color.FgRed))
	printIntervals("free", res.Free, color.New(color.FgGreen))
	return nil
}

func printIntervals(label string, intervals []client.CalendarInterval, c *color.Color) {
	c.Printf("%s:\n", label)
	if len(intervals) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, iv := range intervals {
		fmt.Printf("  %s — %s\n", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
	}
}

func runSuggest(ctx context.Context, cl *client.Client, args []string) error {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	participants := fs.String("participants", "", "comma-separated user ids")
	duration := fs.Int("duration", 30, "meeting length in minutes")
	from := fs.String("from", "", "window start (RFC3339)")
	to := fs.String("to", "", "window end (RFC3339)")
	max := fs.Int("max", 0, "max suggestions")
	fs.Parse(args)

	res, err := cl.SuggestMeetingTimes(ctx, client.SuggestMeetingTimesParams{
		ParticipantIDs:  strings.Split(*participants, ","),
		DurationMinutes: *duration,
		From:            *from,
		To:              *to,
		MaxSuggestions:  *max,
	})
	if err != nil {
		return err
	}
	if len(res.Slots) == 0 {
		fmt.Println("no slot satisfies the constraints")
		return nil
	}
	for i, slot := range res.Slots {
		color.New(color.FgGreen).Printf("%d. ", i+1)
		fmt.Printf("%s — %s", slot.Start.Format(time.RFC3339), slot.End.Format(time.RFC3339))
		color.New(color.FgHiBlack).Printf("  (score %.2f)\n", slot.Score)
	}
	return nil
}
