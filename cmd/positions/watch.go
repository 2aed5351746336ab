package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionScope/internal/aggregate"
	"positionScope/internal/config"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	return watch(ctx, aggregate.NewLatest(rt.pipeline), os.Stdin, os.Stdout, logger)
}

// watch starts one snapshot per input line and prints each delivered
// snapshot as a JSON line. A newer line cancels the older run.
func watch(ctx context.Context, latest *aggregate.Latest, in io.Reader, out io.Writer, logger *zap.Logger) error {
	var (
		wg    sync.WaitGroup
		outMu sync.Mutex
	)
	defer wg.Wait()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		wallet := strings.TrimSpace(scanner.Text())
		if wallet == "" {
			continue
		}

		done := latest.Start(ctx, wallet)
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome := <-done
			snap, err := outcome.Snapshot, outcome.Err
			switch {
			case errors.Is(err, aggregate.ErrSuperseded):
				logger.Debug("snapshot superseded", zap.String("wallet", wallet))
				return
			case err != nil:
				logger.Error("snapshot failed", zap.String("wallet", wallet), zap.Error(err))
				return
			}

			line, err := json.Marshal(snap)
			if err != nil {
				logger.Error("encode snapshot", zap.Error(err))
				return
			}
			outMu.Lock()
			defer outMu.Unlock()
			_, _ = out.Write(append(line, '\n'))
		}()
	}
	return scanner.Err()
}
