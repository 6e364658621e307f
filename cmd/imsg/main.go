package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/matheus3301/imsg/internal/app"
	"github.com/matheus3301/imsg/internal/config"
	"github.com/matheus3301/imsg/internal/lock"
	"github.com/matheus3301/imsg/internal/paths"
	"github.com/matheus3301/imsg/internal/store"
	"github.com/matheus3301/imsg/internal/tui"
)

var (
	cfgFile       string
	chatDB        string
	otherServices bool
	initConfig    bool
)

var rootCmd = &cobra.Command{
	Use:   "imsg",
	Short: "Read and send iMessages from the terminal",
	Long: `imsg reads ~/Library/Messages/chat.db and shows your conversations in a
terminal UI. Messages are sent through Messages.app.

The terminal needs Full Disk Access to read chat.db, and Accessibility
access to send.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default ~/.imsg/config.toml)")
	rootCmd.Flags().StringVar(&chatDB, "db", "", "path to chat.db")
	rootCmd.Flags().BoolVar(&otherServices, "other-services", false, "include SMS and other services at startup")
	rootCmd.Flags().BoolVar(&initConfig, "init-config", false, "write a starter config file and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	path := cfgFile
	if path == "" {
		path = paths.ConfigPath()
	}

	if initConfig {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Save(path, config.Default()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return errors.New("imsg needs a terminal; use imsgctl from scripts")
	}

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if chatDB != "" {
		cfg.ChatDB = chatDB
	}
	if cmd.Flags().Changed("other-services") {
		cfg.Sync.OtherServices = otherServices
	}

	var rt *app.Runtime
	fxApp := fx.New(
		app.Module(app.Params{Config: cfg}),
		fx.Populate(&rt),
		fx.NopLogger,
	)
	if err := fxApp.Err(); err != nil {
		return explain(err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return explain(err)
	}

	ui := tui.NewApp(tui.Deps{
		Bus:        rt.Bus,
		Loop:       rt.Loop,
		Names:      rt.Names,
		Messenger:  rt.Sender,
		Automation: rt.Bridge,
		Status:     rt.Machine.Current,
		ChatDB:     rt.Config.ChatDB,
		Logger:     rt.Logger.Named("tui"),
	})
	runErr := ui.Run()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := fxApp.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// explain turns startup failures into something the user can act on.
func explain(err error) error {
	var openErr *store.OpenError
	if errors.As(err, &openErr) {
		return fmt.Errorf("%w\n\n%s", openErr, openErr.Remediation())
	}
	var held *lock.HeldError
	if errors.As(err, &held) {
		return fmt.Errorf("imsg is already running (pid %d)", held.PID)
	}
	return err
}
