package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/leeineian/hibiki/src/cmd"
	"github.com/leeineian/hibiki/src/proc"
	"github.com/leeineian/hibiki/src/sys"
)

const pidFile = ".bot.pid"

func main() {
	silent := flag.Bool("silent", false, "Disable all log output")
	logToFile := flag.Bool("log", false, "Also write logs to a file")
	flag.Parse()

	sys.InitLogger(*silent, *logToFile)

	// Take over from a previous instance if one is still running.
	if pidData, err := os.ReadFile(pidFile); err == nil {
		if oldPid, err := strconv.Atoi(string(pidData)); err == nil && oldPid != os.Getpid() {
			if process, err := os.FindProcess(oldPid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					sys.LogInfo(sys.MsgBotKillingOld, oldPid)
					if err := process.Signal(syscall.SIGTERM); err == nil {
						for range 50 {
							if err := process.Signal(syscall.Signal(0)); err != nil {
								break
							}
							time.Sleep(100 * time.Millisecond)
						}
						sys.LogInfo(sys.MsgBotOldTerminated)
					} else {
						sys.LogWarn(sys.MsgBotKillFail, err)
					}
				}
			}
		}
	}

	pid := os.Getpid()
	if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", pid)), 0644); err != nil {
		sys.LogWarn("Failed to write PID file: %v", err)
	}
	defer os.Remove(pidFile)

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)

	if err := run(sc, *silent); err != nil {
		sys.LogFatal(sys.MsgGenericError, err)
	}
}

func run(shutdownChan <-chan os.Signal, silent bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sys.SetAppContext(ctx)

	cfg, err := sys.LoadConfig()
	if err != nil {
		return fmt.Errorf(sys.MsgConfigFailedToLoad, err)
	}

	if err := sys.InitDatabase(ctx, cfg.DatabasePath); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer sys.CloseDatabase()

	client, err := sys.CreateClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create Discord client: %w", err)
	}
	defer client.Close(context.Background())

	// Assemble the playback coordinator and hand it to the command layer.
	provider := proc.NewVoiceProvider(client, cfg.YouTubeProxy)
	manager := proc.NewMusicManager(proc.Deps{
		Provider:     provider,
		Resolver:     proc.NewResolver(cfg.YouTubeProxy),
		Sink:         proc.NewDiscordSink(client),
		Presence:     provider,
		History:      proc.NewSQLiteHistory(),
		PollInterval: cfg.IdlePollInterval,
		IdleTimeout:  cfg.IdleTimeout,
	})
	provider.SetEvents(manager)
	provider.OnForcedDisconnect = manager.OnForcedDisconnect
	cmd.Bind(manager, provider)

	sys.LogInfo(sys.MsgBotStarting, sys.GetProjectName())
	if err := client.OpenGateway(ctx); err != nil {
		return fmt.Errorf(sys.MsgBotGatewayFail, err)
	}

	go func() {
		if err := sys.RegisterCommands(client, cfg.GuildID); err != nil {
			sys.LogError(sys.MsgBotRegisterFail, err)
		}
	}()

	<-shutdownChan
	if !silent {
		fmt.Println()
	}
	sys.LogInfo(sys.MsgBotShutdown, sys.GetProjectName())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	sys.ShutdownDaemons(shutdownCtx)

	return nil
}
