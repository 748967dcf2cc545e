package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v3"

	"github.com/cvdub/mr-rippah/config"
	"github.com/cvdub/mr-rippah/constant"
	"github.com/cvdub/mr-rippah/log"
	"github.com/cvdub/mr-rippah/spotify"
	"github.com/cvdub/mr-rippah/spotify/types"
	"github.com/cvdub/mr-rippah/updatecheck"
)

func main() {
	logger := log.NewDefault()

	//nolint:exhaustruct
	app := &cli.Command{
		Name:    "mr-rippah",
		Version: constant.Version,
		Metadata: map[string]any{
			"compiled_at": constant.CompileTime,
		},
		Suggest:                    true,
		Usage:                      "Spotify playlist ripper",
		EnableShellCompletion:      true,
		ShellCompletionCommandName: "shell-completion",
		AllowExtFlags:              false,
		Flags: []cli.Flag{
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Config file path",
				Required: false,
			},
			//nolint:exhaustruct
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			//nolint:exhaustruct
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only log errors",
			},
		},
		Commands: []*cli.Command{
			//nolint:exhaustruct
			{
				Name:      "rip",
				Usage:     "Rip a playlist or a single track",
				ArgsUsage: "<playlist or track URL/URI>",
				Action:    rip,
			},
			//nolint:exhaustruct
			{
				Name:  "auth",
				Usage: "Authentication commands",
				Commands: []*cli.Command{
					//nolint:exhaustruct
					{
						Name:   "login",
						Usage:  "Login to Spotify",
						Action: authLogin,
					},
					//nolint:exhaustruct
					{
						Name:   "clear",
						Usage:  "Forget stored credentials",
						Action: authClear,
					},
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); nil != err {
		if errors.Is(err, context.Canceled) {
			logger.Trace().Msg("Application was canceled")
			os.Exit(1)
		}

		var exitCode exitCodeError
		if errors.As(err, &exitCode) {
			os.Exit(int(exitCode))
		}

		logger.Error().Err(err).Msg("Application exited with error")
		os.Exit(10)
	}
}

type exitCodeError int

func (e exitCodeError) Error() string {
	return "error with exit code: " + strconv.Itoa(int(e))
}

func setup(cmd *cli.Command) (zerolog.Logger, *config.Config, error) {
	logger := log.NewDefault()

	if err := godotenv.Load(); nil != err {
		if !errors.Is(err, os.ErrNotExist) {
			return logger, nil, fmt.Errorf("load .env file: %v", err)
		}
		logger.Debug().Msg(".env file was not found")
	} else {
		logger.Debug().Msg(".env file was loaded")
	}

	conf, err := config.Load(cmd.String("config"))
	if nil != err {
		return logger, nil, fmt.Errorf("load config: %v", err)
	}

	switch {
	case cmd.Bool("verbose"):
		conf.Log.Level = "debug"
	case cmd.Bool("quiet"):
		conf.Log.Level = "error"
	}

	logger = log.FromConfig(conf.Log)

	logger.Debug().Dict("config", conf.ToDict()).Msg("Config loaded")

	return logger, conf, nil
}

func rip(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	arg := cmd.Args().First()
	if arg == "" {
		return errors.New("a playlist or track URL/URI argument is required")
	}

	if !conf.Update.Disabled {
		checker := updatecheck.New(conf.Spotify.CredsDir, constant.Version)
		if notice := checker.Notice(ctx, logger); notice != "" {
			logger.Info().Msg(notice)
		}
	}

	client, err := spotify.NewClient(logger, conf.Spotify)
	if nil != err {
		return fmt.Errorf("create spotify client: %v", err)
	}
	defer func() {
		if err := client.Close(); nil != err {
			logger.Error().Err(err).Msg("close spotify client")
		}
	}()

	if _, err := types.ParsePlaylistURI(arg); nil == err {
		return ripPlaylist(ctx, logger, client, arg)
	}

	if _, err := types.ParseTrackURI(arg); nil == err {
		return ripTrack(ctx, logger, client, arg)
	}

	logger.Error().Str("input", arg).Msg("Not a valid playlist or track URL/URI")

	return exitCodeError(4)
}

func ripPlaylist(ctx context.Context, logger zerolog.Logger, client *spotify.Client, arg string) error {
	outcome, err := client.RipPlaylist(ctx, logger, arg)
	if nil != err {
		switch {
		case errors.Is(err, spotify.ErrInvalidIdentifier):
			logger.Error().Str("input", arg).Msg("Not a valid playlist URL or URI")
			return exitCodeError(4)
		case errors.Is(err, spotify.ErrLoginRequired):
			logger.Error().Msg("Not logged in. Run `mr-rippah auth login` first.")
			return exitCodeError(2)
		case errors.Is(err, context.Canceled):
			if outcome != nil {
				renderFailures(outcome.Failures())
			}
			return context.Canceled
		default:
			return fmt.Errorf("rip playlist: %w", err)
		}
	}

	if failures := outcome.Failures(); len(failures) > 0 {
		renderFailures(failures)
		return exitCodeError(1)
	}

	return nil
}

func ripTrack(ctx context.Context, logger zerolog.Logger, client *spotify.Client, arg string) error {
	res, err := client.RipTrack(ctx, logger, arg)
	if nil != err {
		switch {
		case errors.Is(err, spotify.ErrLoginRequired):
			logger.Error().Msg("Not logged in. Run `mr-rippah auth login` first.")
			return exitCodeError(2)
		case errors.Is(err, context.Canceled):
			return context.Canceled
		default:
			return fmt.Errorf("rip track: %w", err)
		}
	}

	if !res.Success && !res.Skipped {
		renderFailures([]types.TrackRipResult{res})
		return exitCodeError(1)
	}

	return nil
}

func renderFailures(failures []types.TrackRipResult) {
	if len(failures) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("Failed to rip %d tracks", len(failures)))
	t.AppendHeader(table.Row{"Reason", "Title", "URI"})
	for _, f := range failures {
		t.AppendRow(table.Row{f.FailureReason, f.Title, f.URI})
	}
	t.Render()
}

func authLogin(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	client, err := spotify.NewClient(logger, conf.Spotify)
	if nil != err {
		return fmt.Errorf("create spotify client: %v", err)
	}
	defer func() {
		if err := client.Close(); nil != err {
			logger.Error().Err(err).Msg("close spotify client")
		}
	}()

	link, wait, err := client.InitiateLoginFlow(ctx)
	if nil != err {
		return fmt.Errorf("initiate login flow: %w", err)
	}

	if qr, err := qrcode.New(link.URL, qrcode.Medium); nil == err {
		fmt.Print(qr.ToSmallString(false))
	}
	fmt.Printf("Open %s and enter code %s within %s\n", link.URL, link.UserCode, link.ExpiresIn)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-wait:
		if err := res.Err(); nil != err {
			if errors.Is(err, spotify.ErrLoginLinkExpired) {
				logger.Error().Msg("Login link expired. Run the command again.")
				return exitCodeError(3)
			}

			return fmt.Errorf("wait for login flow: %w", err)
		}
	}

	logger.Info().Msg("Logged in successfully")

	return nil
}

func authClear(ctx context.Context, cmd *cli.Command) error {
	_, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	client, err := spotify.NewClient(logger, conf.Spotify)
	if nil != err {
		return fmt.Errorf("create spotify client: %v", err)
	}

	if err := client.ClearAuth(); nil != err {
		return fmt.Errorf("clear auth: %w", err)
	}

	logger.Info().Msg("Credentials cleared")

	return nil
}
