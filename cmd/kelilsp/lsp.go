package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kelilsp/internal/completion"
	"kelilsp/internal/lsp"
)

var lspCmd = &cobra.Command{
	Use:          "lsp",
	Short:        "Run the Keli language server over stdio",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runLSP,
}

func runLSP(cmd *cobra.Command, _ []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	sess, err := newSession(cmd, wd, "kelilsp")
	if err != nil {
		return err
	}
	defer sess.log.Sync() //nolint:errcheck

	logger := sess.log.Zap()
	aggregator := completion.New(sess.svc, logger.Named("completion"))
	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		Debounce:    sess.cfg.LSP.Debounce.Duration,
		MaxProblems: sess.cfg.LSP.MaxProblems,
		Analyze:     sess.svc.Analyze,
		Complete:    aggregator.Complete,
		Run:         sess.svc.Run,
		Logger:      logger,
	})
	sess.log.Sugar().Infof("serving with compiler %s", sess.bridge.Compiler())
	if err := server.Run(cmd.Context()); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}
