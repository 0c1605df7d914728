package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"ai-health-navigator/internal/app"
	"ai-health-navigator/internal/config"
	"ai-health-navigator/internal/notify"
	"ai-health-navigator/internal/recovery"
	"ai-health-navigator/internal/triage"
)

const defaultUser = "cli"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	notifier := notify.Func(func(_ context.Context, n notify.Notice) {
		fmt.Printf("[%s] %s: %s\n", n.Level, n.Title, n.Message)
	})
	application, cleanup, err := app.Bootstrap(ctx, cfg, notifier)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer cleanup()

	cmd, args := os.Args[1], os.Args[2:]
	if err := run(ctx, application, cmd, args); err != nil {
		cleanup()
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

func run(ctx context.Context, a *app.App, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	user := fs.String("user", defaultUser, "User id the plan belongs to")

	switch cmd {
	case "plan":
		var p recovery.HealthProfile
		fs.StringVar(&p.Symptoms, "symptoms", "", "Symptoms or health concerns (required)")
		fs.StringVar(&p.Weight, "weight", "", "Weight in kg")
		fs.StringVar(&p.Height, "height", "", "Height in cm")
		fs.StringVar(&p.Age, "age", "", "Age in years")
		fs.StringVar(&p.Gender, "gender", "", "Gender")
		fs.StringVar(&p.MedicalHistory, "history", "", "Medical history")
		fs.StringVar(&p.Lifestyle, "lifestyle", "", "Lifestyle")
		fs.Parse(args)
		return a.StartPlan(ctx, *user, p)
	case "status":
		fs.Parse(args)
		return a.PrintStatus(ctx, *user)
	case "toggle":
		task := fs.Int("task", 0, "Task id to toggle")
		fs.Parse(args)
		return a.ToggleTask(ctx, *user, *task)
	case "next":
		fs.Parse(args)
		return a.NextDay(ctx, *user)
	case "condition":
		fs.Parse(args)
		c, err := app.ParseCondition(fs.Arg(0))
		if err != nil {
			return err
		}
		return a.ReportCondition(ctx, *user, c)
	case "check":
		fs.Parse(args)
		return a.CheckSymptoms(ctx, *user, strings.Join(fs.Args(), " "))
	case "voice":
		fs.Parse(args)
		return a.AnalyzeTranscript(ctx, *user, strings.Join(fs.Args(), " "))
	case "checkin":
		mood := fs.String("mood", "", "Mood (default neutral)")
		sleep := fs.String("sleep", "", "Hours of sleep, 0-24")
		stress := fs.String("stress", "", "Stress level (default moderate)")
		fs.Parse(args)
		hours, err := triage.ParseSleep(*sleep)
		if err != nil {
			return err
		}
		return a.SubmitCheckin(ctx, triage.Checkin{UserID: *user, Mood: *mood, Sleep: hours, Stress: *stress})
	case "metrics":
		days := fs.Int("days", 7, "Report the last N days")
		fs.Parse(args)
		return a.PrintMetrics(*days)
	case "metrics-cleanup":
		days := fs.Int("days", 30, "Keep records for the last N days")
		fs.Parse(args)
		return a.CleanupMetrics(*days)
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: health-navigator <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  plan               Start a recovery plan (-symptoms, -age, -weight, ...)")
	fmt.Println("  status             Show the current plan and progress")
	fmt.Println("  toggle             Mark a task done or undone (-task N)")
	fmt.Println("  next               Load the next day")
	fmt.Println("  condition          Report how you feel: better, worse or different")
	fmt.Println("  check              Get triage advice for symptoms")
	fmt.Println("  voice              Analyze stress in a spoken transcript")
	fmt.Println("  checkin            Save a mood/sleep/stress check-in")
	fmt.Println("  metrics            Show LLM token usage")
	fmt.Println("  metrics-cleanup    Remove old metric records")
}
