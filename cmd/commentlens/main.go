package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/config"
	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/domain/group"
	"github.com/kailas-cloud/commentlens/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/commentlens/internal/logger"
	"github.com/kailas-cloud/commentlens/internal/metrics"
	"github.com/kailas-cloud/commentlens/internal/repository/dataset"
	"github.com/kailas-cloud/commentlens/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed, color.Bold).Sprint("error: ")+err.Error())
		os.Exit(1)
	}
}

// app carries state from the Before hook into command actions.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
}

func newApp() *cli.App {
	a := &app{logger: zap.NewNop()}
	return &cli.App{
		Name:    "commentlens",
		Usage:   "Recover orphaned comments and run hybrid semantic searches per group",
		Version: fmt.Sprintf("%s (%s, %s)", version.Version, version.Commit, version.Date),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Config environment (selects config/<env>.yaml)",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "ops-addr",
				Usage: "Serve /health, /metrics and /stats on this address",
			},
		},
		Before: a.setup,
		After:  a.teardown,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Recover orphans, embed every group and run all search specs",
				Action: a.runCommand,
				Flags: []cli.Flag{
					dataFlag(),
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-encode items even when the cache has their vectors",
					},
					&cli.BoolFlag{
						Name:  "serve",
						Usage: "Keep the ops listener up after the run until interrupted",
					},
				},
			},
			{
				Name:   "reassign",
				Usage:  "Only recover orphaned items and report where they went",
				Action: a.reassignCommand,
				Flags:  []cli.Flag{dataFlag()},
			},
			{
				Name:   "search",
				Usage:  "Run one ad-hoc query against a single group",
				Action: a.searchCommand,
				Flags: []cli.Flag{
					dataFlag(),
					&cli.StringFlag{
						Name:     "group",
						Aliases:  []string{"g"},
						Usage:    "Group id to search",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Natural language query",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of results (default: search.default_top_k)",
					},
					&cli.StringSliceFlag{
						Name:  "extract",
						Usage: "Insight fields to extract (sentiment, topics, suggestions, question_category)",
					},
				},
			},
			{
				Name:  "cache",
				Usage: "Inspect or reset the embedding cache",
				Subcommands: []*cli.Command{
					{
						Name:   "stats",
						Usage:  "Show the number of cached vectors",
						Action: a.cacheStatsCommand,
					},
					{
						Name:   "clear",
						Usage:  "Delete every cached vector and the stored snapshot",
						Action: a.cacheClearCommand,
					},
				},
			},
		},
	}
}

func dataFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "data",
		Aliases:  []string{"d"},
		Usage:    "Path to the JSON dataset (groups, orphans, search specs)",
		Required: true,
	}
}

func (a *app) setup(c *cli.Context) error {
	a.env = c.String("env")
	cfg, err := config.Load(a.env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr := c.String("ops-addr"); addr != "" {
		cfg.Ops.Addr = addr
	}
	level := cfg.Logging.Level
	if l := c.String("log-level"); l != "" {
		level = l
	}

	logger, err := logpkg.NewLogger(a.env, level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.cfg, a.logger = cfg, logger

	// Register metrics explicitly (no init())
	metrics.RegisterMetrics()

	logger.Info("Starting commentlens",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", a.env),
		zap.String("provider", cfg.Provider.Driver),
		zap.String("cache_driver", cfg.Cache.Driver),
	)
	return nil
}

func (a *app) teardown(_ *cli.Context) error {
	_ = a.logger.Sync()
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// open wires storage and services; the returned func releases the store.
func (a *app) open(ctx context.Context) (*services, func(), error) {
	st, err := openStorage(ctx, &a.cfg, a.logger)
	if err != nil {
		return nil, nil, err
	}
	svc, err := buildServices(ctx, &a.cfg, st, a.logger)
	if err != nil {
		st.close()
		return nil, nil, err
	}
	return svc, st.close, nil
}

func (a *app) runCommand(c *cli.Context) error {
	ctx, stop := signalContext(c.Context)
	defer stop()

	ds, err := dataset.Load(c.String("data"))
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	svc, closeStore, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	runner, err := svc.newRunner(&a.cfg, c.Bool("force"), a.logger)
	if err != nil {
		return err
	}

	stats := newOpsStats(svc.limiter, svc.budget)
	stats.publishCache(svc.cache.Stats())
	stopOps := startOps(&a.cfg, svc, stats, a.logger)
	defer stopOps()

	rep, err := runner.Run(ctx, ds)
	stats.publishCache(svc.cache.Stats())
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}
	stats.publishRun(rep, time.Now())
	printRun(c.App.Writer, rep)

	if c.Bool("serve") && a.cfg.Ops.Addr != "" {
		a.logger.Info("Run finished, ops listener stays up until interrupted")
		<-ctx.Done()
	}
	return nil
}

func (a *app) reassignCommand(c *cli.Context) error {
	ctx, stop := signalContext(c.Context)
	defer stop()

	ds, err := dataset.Load(c.String("data"))
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	svc, closeStore, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	if svc.reassign == nil {
		return fmt.Errorf("%w: reassign.enabled is false", domain.ErrInvalidConfig)
	}

	ctx, log := logpkg.ContextWithRun(ctx, a.logger, uuid.NewString())
	ctx, usage := domain.NewContextWithUsage(ctx)
	defer checkpoint(ctx, svc, log)

	out, err := svc.reassign.Reassign(ctx, ds.Groups, ds.Orphans)
	if err != nil {
		return fmt.Errorf("reassign orphans: %w", err)
	}

	w := c.App.Writer
	printRecovery(w, out.Stats)
	printReassigned(w, out.Groups)
	if n := len(out.Remaining); n > 0 {
		fmt.Fprintln(w, yellow(fmt.Sprintf("  %d orphans left unowned", n)))
	}
	printUsage(w, usage.Snapshot())
	return nil
}

func (a *app) searchCommand(c *cli.Context) error {
	ctx, stop := signalContext(c.Context)
	defer stop()

	topK := c.Int("top-k")
	if topK == 0 {
		topK = a.cfg.Search.DefaultTopK
	}
	req, err := request.Parse(c.String("query"), topK, nil, c.StringSlice("extract"),
		request.WithName("adhoc"), request.Dynamic("command line query"))
	if err != nil {
		return fmt.Errorf("parse query: %w", err)
	}

	ds, err := dataset.Load(c.String("data"))
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	svc, closeStore, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, log := logpkg.ContextWithRun(ctx, a.logger, uuid.NewString())
	ctx, usage := domain.NewContextWithUsage(ctx)
	defer checkpoint(ctx, svc, log)

	// Orphans belonging to the target group only show up after recovery.
	groups := ds.Groups
	if svc.reassign != nil {
		out, err := svc.reassign.Reassign(ctx, ds.Groups, ds.Orphans)
		if err != nil {
			return fmt.Errorf("reassign orphans: %w", err)
		}
		groups = out.Groups
	}
	g, err := findGroup(groups, c.String("group"))
	if err != nil {
		return err
	}

	if _, err := svc.embedder.EmbedMany(ctx, g.Items(), false); err != nil {
		return fmt.Errorf("embed group %s: %w", g.ID(), err)
	}
	res, err := svc.search.Execute(ctx, g, req)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	printResult(c.App.Writer, g, res)
	printUsage(c.App.Writer, usage.Snapshot())
	return nil
}

func (a *app) cacheStatsCommand(c *cli.Context) error {
	st, err := openStorage(c.Context, &a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer st.close()

	printCache(c.App.Writer, a.cfg.Cache.Driver, st.cache.Stats())
	return nil
}

func (a *app) cacheClearCommand(c *cli.Context) error {
	st, err := openStorage(c.Context, &a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer st.close()

	n := st.cache.Len()
	if err := st.cache.Clear(c.Context); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s %d vectors removed\n", boldGreen("Embedding cache cleared:"), n)
	return nil
}

// checkpoint saves the cache on every exit path, cancellation included.
func checkpoint(ctx context.Context, svc *services, log *zap.Logger) {
	if err := svc.embedder.Checkpoint(context.WithoutCancel(ctx)); err != nil {
		log.Warn("Embedding cache checkpoint failed", zap.Error(err))
	}
}

func findGroup(groups []*group.Group, id string) (*group.Group, error) {
	for _, g := range groups {
		if g.ID() == id {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrGroupNotFound, id)
}
