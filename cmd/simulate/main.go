package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ttacon/chalk"
	"github.com/urfave/cli"

	"matchday/internal/config"
	"matchday/internal/match"
	"matchday/internal/match/neural"
	"matchday/internal/roster"
	"matchday/internal/runner"
)

func main() {
	godotenv.Load()

	app := makeapp()
	if err := app.Run(os.Args); err != nil {
		fmt.Println(chalk.Red, "error:", err, chalk.Reset)
		os.Exit(1)
	}
}

func makeapp() *cli.App {
	app := cli.NewApp()
	app.Name = "simulate"
	app.Usage = "Play football matches from the command line"

	app.Commands = []cli.Command{
		{
			Name:    "run",
			Aliases: []string{"r"},
			Usage:   "Play a batch of matches and print the results",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "count", Value: 1, Usage: "Number of matches"},
				cli.Uint64Flag{Name: "seed", Value: 1, Usage: "Seed of the first match; the rest count up"},
				cli.IntFlag{Name: "workers", Value: 4, Usage: "Matches played at the same time"},
				cli.Float64Flag{Name: "half", Value: 0, Usage: "Half length in minutes (0 = configured)"},
				cli.BoolFlag{Name: "sequential", Usage: "Evaluate the agents of a tick one after another"},
				cli.BoolFlag{Name: "no-networks", Usage: "Disable the slow decision path"},
				cli.StringFlag{Name: "tactics", Usage: "YAML file overlaying pitch and tactics settings"},
				cli.StringFlag{Name: "home", Usage: "JSON team sheet for the home side"},
				cli.StringFlag{Name: "away", Usage: "JSON team sheet for the away side"},
				cli.IntFlag{Name: "top", Value: 3, Usage: "Top performers listed per match"},
				cli.BoolFlag{Name: "json", Usage: "Print full results as JSON"},
			},
			Action: runAction,
		},
		{
			Name:    "lineup",
			Aliases: []string{"l"},
			Usage:   "Generate a team sheet",
			Flags: []cli.Flag{
				cli.Uint64Flag{Name: "seed", Value: 1},
				cli.StringFlag{Name: "name", Value: "Home"},
				cli.StringFlag{Name: "formation", Value: roster.DefaultFormation},
			},
			Action: func(c *cli.Context) error {
				sheet, err := roster.Generate(c.Uint64("seed"), c.String("name"), c.String("formation"))
				if err != nil {
					return err
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(sheet)
			},
		},
	}

	return app
}

func runAction(c *cli.Context) error {
	appConfig, err := config.Load()
	if err != nil {
		return err
	}
	if path := c.String("tactics"); path != "" {
		overlay, err := config.LoadTacticsFile(path)
		if err != nil {
			return err
		}
		if err := overlay.Apply(&appConfig.Field, &appConfig.Tactics); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	opts := match.Options{
		Engine:  appConfig.Engine,
		Field:   appConfig.Field,
		Tactics: appConfig.Tactics,
	}
	if m := c.Float64("half"); m > 0 {
		opts.Engine.HalfLength = time.Duration(m * float64(time.Minute))
	}
	if c.Bool("sequential") {
		opts.Engine.ParallelAgents = false
	}
	if !c.Bool("no-networks") {
		registry, err := neural.LoadBundled()
		if err != nil {
			return err
		}
		opts.Evaluator = registry
	}

	home, err := readSheet(c.String("home"))
	if err != nil {
		return err
	}
	away, err := readSheet(c.String("away"))
	if err != nil {
		return err
	}

	count := c.Int("count")
	if count < 1 {
		count = 1
	}
	seed := c.Uint64("seed")
	reqs := make([]runner.Request, count)
	for i := range reqs {
		reqs[i] = runner.Request{
			Label: fmt.Sprintf("match-%d", i+1),
			Seed:  seed + uint64(i),
			Home:  home,
			Away:  away,
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	outcomes, err := runner.RunBatch(ctx, reqs, opts, c.Int("workers"))
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes)
	}

	var homeWins, awayWins, draws, failed int
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			fmt.Print(chalk.Red)
			fmt.Printf("seed %d: %v", o.Request.Seed, o.Err)
			fmt.Println(chalk.Reset)
			continue
		}
		printOutcome(o, c.Int("top"))
		switch s := o.Result.Score; {
		case s.Home > s.Away:
			homeWins++
		case s.Away > s.Home:
			awayWins++
		default:
			draws++
		}
	}

	if len(outcomes) > 1 {
		fmt.Println("")
		fmt.Print(chalk.Bold.TextStyle(fmt.Sprintf("%d matches in %v", len(outcomes), time.Since(start).Round(time.Millisecond))))
		fmt.Printf(": home %d, away %d, draws %d", homeWins, awayWins, draws)
		if failed > 0 {
			fmt.Print(chalk.Red, fmt.Sprintf(", %d failed", failed), chalk.Reset)
		}
		fmt.Println("")
	}
	return nil
}

func printOutcome(o runner.Outcome, top int) {
	res := o.Result
	home, away := res.Possession()

	fmt.Print(chalk.Cyan)
	fmt.Printf("%-12s", o.Request.Label)
	fmt.Print(chalk.Reset)
	fmt.Printf(" seed %-6d ", res.Seed)
	fmt.Print(chalk.Yellow)
	fmt.Printf("%s %d - %d %s", o.Request.Home.Name, res.Score.Home, res.Score.Away, o.Request.Away.Name)
	fmt.Print(chalk.Reset)
	fmt.Printf("  possession %.0f%%/%.0f%%  %d ticks", home*100, away*100, res.Ticks)
	if !res.Completed {
		fmt.Print(chalk.Red, " (stopped: ", res.Reason, ")", chalk.Reset)
	}
	fmt.Println("")

	for _, a := range res.TopPerformers(top) {
		fmt.Printf("    %-24s %-4s %-10s goals %d  shots on target %d  tackles won %d  passes %d/%d\n",
			a.Name, a.Side, a.Role, a.Stats.Goals, a.Stats.ShotsOnTarget, a.Stats.TacklesWon,
			a.Stats.PassesCompleted, a.Stats.Passes)
	}
}

func readSheet(path string) (roster.TeamSheet, error) {
	var sheet roster.TeamSheet
	if path == "" {
		return sheet, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return sheet, err
	}
	if err := json.Unmarshal(data, &sheet); err != nil {
		return sheet, fmt.Errorf("%s: %w", path, err)
	}
	return sheet, sheet.Validate()
}
