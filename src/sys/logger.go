package sys

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	// Style definitions
	infoColor     = color.New(color.FgHiBlack)
	warnColor     = color.New(color.FgHiYellow)
	errorColor    = color.New(color.FgHiRed)
	fatalColor    = color.New(color.FgHiRed, color.Bold)
	databaseColor = color.New(color.FgHiBlack)
	voiceColor    = color.New(color.FgHiMagenta)
	monitorColor  = color.New(color.FgHiMagenta)
	enqueueColor  = color.New(color.FgHiMagenta)

	IsSilent  = false
	LogToFile = false

	// Global default logger
	Logger *slog.Logger

	// Log file handling
	logFile *os.File
	logMu   sync.Mutex
)

func init() {
	InitLogger(false, false)
}

// InitLogger initializes the global structured logger
func InitLogger(silent bool, saveToFile bool) {
	logMu.Lock()
	defer logMu.Unlock()

	IsSilent = silent
	LogToFile = saveToFile
	level := slog.LevelInfo
	if strings.ToLower(os.Getenv("DEBUG")) == "true" {
		level = slog.LevelDebug
	}

	// Clean up previous file if it exists (e.g. during reload)
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writer io.Writer = os.Stdout
	var err error

	if LogToFile {
		exePath, exeErr := os.Executable()
		logName := "hibiki.log" // Fallback
		if exeErr == nil {
			logName = filepath.Base(exePath) + ".log"
		}

		logFile, err = os.OpenFile(logName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", logName, err)
		} else {
			writer = io.MultiWriter(os.Stdout, logFile)
		}
	}

	// Force colors to be enabled even if writing to a file/pipe avoids detection
	color.NoColor = false

	handler := NewBotLogHandler(writer, &BotLogHandlerOptions{
		Silent: IsSilent,
		Level:  level,
	})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func SetSilentMode(silent bool) {
	InitLogger(silent, LogToFile)
}

// --- Log Functions ---

func LogInfo(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...))
}

func LogWarn(format string, v ...any) {
	slog.Warn(fmt.Sprintf(format, v...))
}

func LogError(format string, v ...any) {
	slog.Error(fmt.Sprintf(format, v...))
}

func LogFatal(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	slog.Log(context.Background(), slog.LevelError+4, msg) // Custom Fatal level
	os.Exit(1)
}

func LogDebug(format string, v ...any) {
	slog.Debug(fmt.Sprintf(format, v...))
}

func LogDatabase(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "database"))
}

func LogVoice(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "voice"))
}

func LogMonitor(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "monitor"))
}

func LogEnqueue(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "enqueue"))
}

// --- Custom Slog Handler ---

type BotLogHandlerOptions struct {
	Silent bool
	Level  slog.Leveler
}

type BotLogHandler struct {
	w    io.Writer
	opts *BotLogHandlerOptions
	mu   *sync.Mutex
}

func NewBotLogHandler(w io.Writer, opts *BotLogHandlerOptions) *BotLogHandler {
	if opts == nil {
		opts = &BotLogHandlerOptions{Level: slog.LevelInfo}
	}
	return &BotLogHandler{
		w:    w,
		opts: opts,
		mu:   &sync.Mutex{},
	}
}

func (h *BotLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.opts.Silent {
		return false
	}
	return level >= h.opts.Level.Level()
}

func (h *BotLogHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opts.Silent {
		return nil
	}

	timeStr := time.Now().Format("15:04:05")
	var levelStr string
	var levelColor *color.Color

	switch {
	case r.Level >= slog.LevelError+4: // Fatal
		levelStr = "FATAL"
		levelColor = fatalColor
	case r.Level >= slog.LevelError:
		levelStr = "ERROR"
		levelColor = errorColor
	case r.Level >= slog.LevelWarn:
		levelStr = "WARN"
		levelColor = warnColor
	default:
		levelStr = "INFO"
		levelColor = infoColor
	}

	// Extract component if present
	component := ""
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = strings.ToUpper(a.Value.String())
			return false
		}
		return true
	})

	// Output: 15:04:05 [INFO] [COMPONENT] Message
	fmt.Fprintf(h.w, "%s", timeStr)

	if component != "" {
		if levelStr != "INFO" {
			fmt.Fprintf(h.w, " %s", levelColor.Sprintf("[%s]", levelStr))
		}
		compColor := getComponentColor(component)
		fmt.Fprintf(h.w, " %s\n", compColor.Sprintf("[%s] %s", component, r.Message))
	} else {
		fmt.Fprintf(h.w, " %s\n", levelColor.Sprintf("[%s] %s", levelStr, r.Message))
	}

	return nil
}

func (h *BotLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *BotLogHandler) WithGroup(name string) slog.Handler       { return h }

func getComponentColor(name string) *color.Color {
	switch name {
	case "DATABASE":
		return databaseColor
	case "VOICE":
		return voiceColor
	case "MONITOR":
		return monitorColor
	case "ENQUEUE":
		return enqueueColor
	default:
		return color.New(color.FgCyan)
	}
}

// @core
const (
	// Configuration
	MsgConfigFailedToLoad = "Failed to load config: %v"
	MsgConfigMissingToken = "DISCORD_TOKEN is not set in .env file"

	// Data layer
	MsgDatabaseInitSuccess = "Database initialized successfully"
	MsgDatabaseTableError  = "Failed to create table: %w"
	MsgDatabasePragmaError = "Failed to set pragma %s: %w"

	// Command Registry
	MsgLoaderSyncCommands  = "Syncing %s commands..."
	MsgLoaderUpToDate      = "Commands are up to date. (Hash: %s)"
	MsgLoaderDevStarting   = "[DEV] Registering commands to guild: %s"
	MsgLoaderDevRegistered = "[DEV] Registered: %s"
	MsgLoaderProdStarting  = "[PROD] Registering commands globally..."
	MsgLoaderProdRegistered = "[PROD] Registered: %s"
	MsgLoaderProdFail      = "[PROD] Global registration failed: %w"

	// Bot Lifecycle
	MsgDaemonStarting   = "Starting..."
	MsgDaemonShutdown   = "Shutting down daemons..."
	MsgBotStarting      = "Starting %s..."
	MsgBotReady         = "%s is ready! (ID: %s) (PID: %d)"
	MsgBotShutdown      = "Shutting down %s..."
	MsgBotKillingOld    = "Killing running instance... (PID: %d)"
	MsgBotKillFail      = "Failed to kill old instance: %v"
	MsgBotOldTerminated = "Old instance terminated."
	MsgBotRegisterFail  = "Command registration failed: %v"
	MsgBotGatewayFail   = "Failed to open gateway: %w"
	MsgGenericError     = "%v"
)

// @music
const (
	// System logs
	MsgMusicJoining            = "Joining channel %s in guild %s"
	MsgMusicJoinRetry          = "Retrying voice connection in %v (Attempt %d/%d)"
	MsgMusicJoinFail           = "Failed to connect to voice in guild %s: %v"
	MsgMusicQueued             = "Queuing %d track(s) in guild %s: %s"
	MsgMusicBulkStarted        = "Bulk enqueue of %d track(s) started in guild %s"
	MsgMusicBulkCancelled      = "Bulk enqueue cancelled in guild %s after %d of %d track(s)"
	MsgMusicBulkSubmitFail     = "Failed to submit %q in guild %s: %v"
	MsgMusicBulkAborted        = "Bulk enqueue aborted in guild %s: %v"
	MsgMusicBulkDone           = "Bulk enqueue finished in guild %s (%d track(s))"
	MsgMusicIdleTeardown       = "Guild %s idle for %v, disconnecting"
	MsgMusicForcedDisconnect   = "Bot disconnected by external event in guild %s"
	MsgMusicCleanup            = "Cleaned up session state for guild %s"
	MsgMusicHistoryFail        = "Failed to record play history: %v"
	MsgMusicNowPlayingSendFail = "Failed to send now-playing message: %v"
	MsgMusicStreamFail         = "Stream failed for %q in guild %s: %v"
	MsgMusicResolveFail        = "Failed to resolve stream for %q: %v"

	// User-facing messages
	ErrMusicNotInGuild   = "This command must be used in a server"
	ErrMusicNotInVoice   = "You must be in a voice channel"
	ErrMusicNoResults    = "No results found for your query"
	ErrMusicEmptyQueue   = "The queue is empty"
	ErrMusicJoinFailed   = "Failed to join voice channel"
	MsgMusicStopped      = "Stopped playback and left the voice channel."
	MsgMusicIdleNotice   = "Disconnected due to %s of inactivity."
	MsgMusicSkippedNone  = "Skipped current track."
)
