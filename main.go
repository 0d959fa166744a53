package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"nn_ratios/logx"
)

var (
	version = "v0.1.0-default"
	commit  = ""
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to the strategy YAML config (optional, defaults apply)",
		Value: "strategy.yaml",
	}

	dbFlag = &cli.StringFlag{
		Name:    "db",
		Usage:   "Path to the SQLite panel database",
		EnvVars: []string{"NN_RATIOS_DB"},
		Value:   "panel.db",
	}

	csvFlag = &cli.StringFlag{
		Name:  "csv",
		Usage: "Path to a panel CSV file (ticker,date,price,<ratios...>)",
	}

	ruleFlag = &cli.StringFlag{
		Name:  "rule",
		Usage: "Decision rule override: median, quartile or octile",
	}

	seedFlag = &cli.Int64Flag{
		Name:  "seed",
		Usage: "Random seed override (nonzero = reproducible)",
	}

	availableFlag = &cli.StringFlag{
		Name:  "available",
		Usage: "Comma-separated tickers eligible for the portfolio (default: all)",
	}

	saveFlag = &cli.BoolFlag{
		Name:  "save",
		Usage: "Persist the result into the database",
	}

	verboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "Print one line per rebalance period",
	}

	dashboardFlag = &cli.StringFlag{
		Name:    "dashboard",
		Usage:   "Serve live progress on this address (e.g. 127.0.0.1:8377)",
		EnvVars: []string{"NN_RATIOS_ADDR"},
	}
)

func main() {
	// .env is optional; absence is the normal case
	godotenv.Load()

	app := &cli.App{
		Name:    "nn-ratios",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Usage:   "long/short allocation from a neural-net forecast of accounting ratios",
		Flags: []cli.Flag{
			configFlag,
			dbFlag,
		},
		Commands: []*cli.Command{
			importCmd,
			trainCmd,
			allocateCmd,
			backtestCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", logx.Error("fatal:"), err)
		os.Exit(1)
	}
}

var importCmd = &cli.Command{
	Name:  "import",
	Usage: "Import a panel CSV into the SQLite database",
	Flags: []cli.Flag{csvFlag},
	Action: func(c *cli.Context) error {
		csvPath := c.String(csvFlag.Name)
		if csvPath == "" {
			return fmt.Errorf("--csv is required")
		}

		panel, err := LoadPanelCSV(csvPath)
		if err != nil {
			return fmt.Errorf("load %s: %w", csvPath, err)
		}
		logx.LogPanelLoaded(csvPath, len(panel.Obs), len(panel.Tickers()), len(panel.Dates()))

		store, err := OpenStore(c.String(dbFlag.Name))
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.SavePanel(panel); err != nil {
			return fmt.Errorf("save panel: %w", err)
		}
		fmt.Printf("%s imported %s rows into %s\n",
			logx.Checkmark(true), logx.FormatNumberSimple(len(panel.Obs)), c.String(dbFlag.Name))
		return nil
	},
}

var trainCmd = &cli.Command{
	Name:  "train",
	Usage: "Fit the model on the stored panel and write the best checkpoint",
	Flags: []cli.Flag{csvFlag, seedFlag, dashboardFlag},
	Action: func(c *cli.Context) error {
		cfg, panel, hub, err := setup(c)
		if err != nil {
			return err
		}

		s, err := NewNNRatios(cfg, hub)
		if err != nil {
			return err
		}

		report, err := s.Train(panel)
		if err != nil {
			return err
		}
		fmt.Printf("%s best_val_loss=%.6f checkpoint=%s\n",
			logx.Checkmark(true), report.BestValLoss, report.Checkpoint)
		return nil
	},
}

var allocateCmd = &cli.Command{
	Name:  "allocate",
	Usage: "Score the latest cross-section and print portfolio weights",
	Flags: []cli.Flag{csvFlag, ruleFlag, seedFlag, availableFlag, saveFlag, dashboardFlag},
	Action: func(c *cli.Context) error {
		cfg, panel, hub, err := setup(c)
		if err != nil {
			return err
		}

		s, err := NewNNRatios(cfg, hub)
		if err != nil {
			return err
		}

		weights, err := s.CreatePortfolio(panel, availableTickers(c))
		if err != nil {
			return err
		}
		if err := assertPortfolioInvariants(weights, defaultPortfolioInvariants); err != nil {
			return err
		}

		asOf := panel.LatestDate()
		long, short, flat := countSides(weights)
		logx.LogAllocation(asOf, cfg.DecisionRule, long, short, flat)
		logx.PrintWeightsTable(asOf, cfg.DecisionRule, weights)
		hub.BroadcastAllocation(asOf, cfg.DecisionRule, weights)

		if c.Bool(saveFlag.Name) {
			store, err := OpenStore(c.String(dbFlag.Name))
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.SaveAllocation(asOf, cfg.DecisionRule, weights); err != nil {
				return fmt.Errorf("save allocation: %w", err)
			}
		}
		return nil
	},
}

var backtestCmd = &cli.Command{
	Name:  "backtest",
	Usage: "Walk the panel forward, rebalancing each period with the frozen model",
	Flags: []cli.Flag{csvFlag, ruleFlag, seedFlag, availableFlag, saveFlag, verboseFlag, dashboardFlag},
	Action: func(c *cli.Context) error {
		cfg, panel, hub, err := setup(c)
		if err != nil {
			return err
		}

		s, err := NewNNRatios(cfg, hub)
		if err != nil {
			return err
		}

		res, err := RunBacktest(s, panel, availableTickers(c), c.Bool(verboseFlag.Name))
		if err != nil {
			return err
		}
		hub.BroadcastBacktest(res)

		if c.Bool(saveFlag.Name) {
			store, err := OpenStore(c.String(dbFlag.Name))
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.SaveBacktestRun(res); err != nil {
				return fmt.Errorf("save backtest run: %w", err)
			}
		}
		return nil
	},
}

// setup loads the config (with CLI overrides), the panel (CSV when given,
// otherwise the database), and starts the dashboard hub if requested.
func setup(c *cli.Context) (Config, Panel, *WSHub, error) {
	cfg, err := LoadConfig(c.String(configFlag.Name))
	if err != nil {
		return cfg, Panel{}, nil, err
	}
	if rule := c.String(ruleFlag.Name); rule != "" {
		cfg.DecisionRule = rule
	}
	if seed := c.Int64(seedFlag.Name); seed != 0 {
		cfg.Seed = seed
	}
	if err := cfg.Validate(); err != nil {
		return cfg, Panel{}, nil, err
	}

	panel, err := loadPanel(c)
	if err != nil {
		return cfg, Panel{}, nil, err
	}
	if len(panel.Obs) == 0 {
		return cfg, Panel{}, nil, fmt.Errorf("panel is empty; run import first or pass --csv")
	}

	var hub *WSHub
	if addr := c.String(dashboardFlag.Name); addr != "" {
		hub = NewWSHub()
		if err := hub.StartWebServer(addr); err != nil {
			return cfg, Panel{}, nil, err
		}
	}
	return cfg, panel, hub, nil
}

func loadPanel(c *cli.Context) (Panel, error) {
	if csvPath := c.String(csvFlag.Name); csvPath != "" {
		panel, err := LoadPanelCSV(csvPath)
		if err != nil {
			return Panel{}, err
		}
		logx.LogPanelLoaded(csvPath, len(panel.Obs), len(panel.Tickers()), len(panel.Dates()))
		return panel, nil
	}

	store, err := OpenStore(c.String(dbFlag.Name))
	if err != nil {
		return Panel{}, err
	}
	defer store.Close()

	panel, err := store.LoadPanel()
	if err != nil {
		return Panel{}, err
	}
	logx.LogPanelLoaded(c.String(dbFlag.Name), len(panel.Obs), len(panel.Tickers()), len(panel.Dates()))
	return panel, nil
}

func availableTickers(c *cli.Context) []string {
	raw := c.String(availableFlag.Name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
