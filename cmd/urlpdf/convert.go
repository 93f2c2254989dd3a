package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	urlpdf "github.com/porticus-lab/go-url-pdf"
	"github.com/porticus-lab/go-url-pdf/internal/console"
)

// convert runs one batch for the root and courses commands.
func (a *app) convert(cmd *cobra.Command, args []string, req urlpdf.Request) error {
	defer a.waitForEnter(cmd)

	label := "Input file (one URL per line)"
	if req.Mode == urlpdf.ModeCourses {
		label = "Input file (one course code per line)"
	}
	input, output, err := a.paths(cmd, args, label)
	if err != nil {
		return err
	}
	req.InputPath = input
	req.OutputDir = output
	if err := req.Validate(afero.NewOsFs()); err != nil {
		return fmt.Errorf("cannot start: %w", err)
	}

	ctx := cmd.Context()
	conv, release, err := a.converter(ctx)
	if err != nil {
		return err
	}
	defer release()
	defer a.serveMetrics()()

	p := a.printer(cmd)
	sum, err := a.batch(ctx, conv, req, p)
	if err != nil {
		return err
	}
	p.Summary(sum)
	return failedErr(sum.Failed)
}

// batch starts a run, prints its events and handles interrupts: the first
// signal asks the run to stop after the current item, a second one cancels
// the item in progress.
func (a *app) batch(ctx context.Context, conv *urlpdf.Converter, req urlpdf.Request, p *console.Printer) (urlpdf.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	run, err := conv.Start(ctx, req)
	if err != nil {
		return urlpdf.Summary{}, fmt.Errorf("cannot start: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		p.Drain(run.Events())
		return nil
	})
	g.Go(func() error {
		interrupts := 0
		for {
			select {
			case <-run.Done():
				return nil
			case s := <-sigs:
				interrupts++
				if interrupts == 1 {
					a.log.Warn("stopping after the current item, interrupt again to abort", "signal", s.String())
					run.Stop()
					continue
				}
				a.log.Warn("aborting the current item", "signal", s.String())
				cancel()
			}
		}
	})
	_ = g.Wait()

	return run.Wait()
}
