package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"muster/pkg/bus"
	ec2inv "muster/pkg/ec2"
	"muster/pkg/render"
	gos3 "muster/pkg/s3"
	ssmchan "muster/pkg/ssm"
	"muster/pkg/telemetry"
	"muster/services/dispatch"
	"muster/services/report"
)

var errAborted = errors.New("operation cancelled")

// pipeline holds the collaborators every subcommand needs.
type pipeline struct {
	cfg         dispatch.Config
	tel         *telemetry.Telemetry
	middleware  func(http.Handler) http.Handler
	inv         *ec2inv.Inventory
	ch          *ssmchan.Channel
	bus         *bus.Bus
	renderer    *render.Engine
	shutdownTel func(context.Context) error
}

func newPipeline(ctx context.Context) (*pipeline, error) {
	cfg, err := dispatch.LoadConfig()
	if err != nil {
		return nil, err
	}

	shutdownTel, middleware, tel, err := telemetry.Init(ctx, "musterctl")
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	inv, err := ec2inv.NewInventoryFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("inventory client: %w", err)
	}

	ch, err := ssmchan.NewChannelFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("execution channel client: %w", err)
	}

	renderer, err := render.New()
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		cfg:         cfg,
		tel:         tel,
		middleware:  middleware,
		inv:         inv,
		ch:          ch,
		renderer:    renderer,
		shutdownTel: shutdownTel,
	}

	if cfg.NATSURL != "" {
		p.bus, err = bus.New(cfg.NATSURL)
		if err != nil {
			return nil, fmt.Errorf("connect event bus: %w", err)
		}
	}

	return p, nil
}

func (p *pipeline) Close() {
	if p.bus != nil {
		p.bus.Close()
	}
	if p.shutdownTel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.shutdownTel(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown error: %v\n", err)
		}
	}
}

// batchFlags are the dispatch/convergence options shared by run and passwd.
type batchFlags struct {
	pollInterval  time.Duration
	maxAttempts   int
	opsAddr       string
	archiveBucket string
	yes           bool
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.pollInterval, "poll-interval", 0, "Delay between convergence polling rounds (default from MUSTER_POLL_INTERVAL or 10s)")
	cmd.Flags().IntVar(&f.maxAttempts, "max-attempts", 0, "Maximum polling rounds before targets time out (default from MUSTER_MAX_ATTEMPTS or 30)")
	cmd.Flags().StringVar(&f.opsAddr, "ops-addr", "", "Optional listen address for health and metrics during the run")
	cmd.Flags().StringVar(&f.archiveBucket, "archive-bucket", "", "Optional S3 bucket for the signed report archive")
	cmd.Flags().BoolVar(&f.yes, "yes", false, "Skip the pre-dispatch confirmation prompt")
}

// executeBatch runs the full pipeline for the given specs and command,
// prints the report and returns a non-nil error when the batch cannot be
// considered fully successful.
func executeBatch(ctx context.Context, p *pipeline, specs []dispatch.TargetSpec, cmd dispatch.Command, flags batchFlags) error {
	opts := dispatch.RunnerOptions{
		PollInterval: flags.pollInterval,
		MaxAttempts:  flags.maxAttempts,
		PollWorkers:  p.cfg.PollWorkers,
		Logger:       p.tel.Logger,
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = p.cfg.PollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = p.cfg.MaxAttempts
	}
	if p.bus != nil {
		opts.Bus = p.bus
	}
	if !flags.yes {
		opts.Confirm = confirmDispatch
	}

	runner, err := dispatch.NewRunner(p.inv, p.ch, opts)
	if err != nil {
		return err
	}

	opsAddr := flags.opsAddr
	if opsAddr == "" {
		opsAddr = p.cfg.OpsAddr
	}
	var ops *dispatch.OpsServer
	if opsAddr != "" {
		ops, err = dispatch.NewOpsServer(opsAddr, p.tel.Logger, p.middleware)
		if err != nil {
			return err
		}
		ops.Start(ctx)
	}

	rep, runErr := runner.RunBatch(ctx, specs, cmd)

	if rep != nil {
		if ops != nil {
			ops.SetReport(rep)
		}
		if err := printSummary(p.renderer, rep); err != nil {
			return err
		}
		if err := archiveReport(ctx, p, rep, flags.archiveBucket); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}
	if rep.Failed > 0 {
		return fmt.Errorf("%d of %d resolved targets failed", rep.Failed, rep.Resolved)
	}
	return nil
}

func confirmDispatch(available []dispatch.ResolvedTarget, availability map[string]bool, unresolved []dispatch.TargetSpec) error {
	fmt.Fprintf(os.Stderr, "\nReady to dispatch to %d targets:\n", len(available))
	for _, t := range available {
		fmt.Fprintf(os.Stderr, "  - %s (%s)\n", t.Label, t.CanonicalID)
	}

	unavailable := len(availability) - len(available)
	if unavailable > 0 {
		fmt.Fprintf(os.Stderr, "\nWarning: %d resolved targets are not reachable and will be skipped.\n", unavailable)
	}
	if len(unresolved) > 0 {
		fmt.Fprintf(os.Stderr, "\nWarning: %d selectors did not resolve:\n", len(unresolved))
		for _, spec := range unresolved {
			fmt.Fprintf(os.Stderr, "  - %s\n", spec)
		}
	}

	fmt.Fprint(os.Stderr, "\nProceed? (y/n): ")
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(answer), "y") {
		return errAborted
	}
	return nil
}

func printSummary(renderer *render.Engine, rep *dispatch.BatchReport) error {
	view := struct {
		Report     *dispatch.BatchReport
		Unresolved []string
		Failures   []dispatch.TargetOutcome
	}{Report: rep}

	for _, spec := range rep.Unresolved {
		view.Unresolved = append(view.Unresolved, spec.String())
	}
	for _, out := range rep.PerTarget {
		if out.Status != dispatch.StatusSucceeded {
			view.Failures = append(view.Failures, out)
		}
	}

	text, err := renderer.Render("summary.tmpl", view)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func archiveReport(ctx context.Context, p *pipeline, rep *dispatch.BatchReport, bucket string) error {
	if bucket == "" {
		bucket = p.cfg.ArchiveBucket
	}
	if bucket == "" {
		return nil
	}

	client, err := gos3.NewClientFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("s3 client: %w", err)
	}

	var signer *report.Signer
	if os.Getenv("MUSTER_SIGNING_KEY") != "" || os.Getenv("MUSTER_SIGNING_PUBLIC_KEY") != "" {
		signer, err = report.NewSignerFromEnv()
		if err != nil {
			return err
		}
	}

	archiver, err := report.NewArchiver(client, bucket, signer, p.tel.Logger)
	if err != nil {
		return err
	}

	reportKey, manifestKey, err := archiver.Archive(ctx, rep)
	if err != nil {
		return err
	}
	fmt.Printf("report archived: s3://%s/%s (manifest %s)\n", bucket, reportKey, manifestKey)
	return nil
}
