package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/techbe/app/roster"
	"github.com/umputun/techbe/app/store"
	"github.com/umputun/techbe/app/web"
)

var opts struct {
	RosterFile string `short:"f" long:"file" env:"TECHBE_FILE" default:"tech_be.json" description:"technicians roster file"`
	Dbg        bool   `long:"dbg" env:"TECHBE_DEBUG" description:"debug mode"`

	Web struct {
		Address      string `long:"address" env:"ADDRESS" default:"127.0.0.1:8080" description:"web server listen address"`
		Hostname     string `long:"hostname" env:"HOSTNAME" description:"hostname shown in the UI"`
		BaseURL      string `long:"base-url" env:"BASE_URL" description:"base URL path for reverse proxy (e.g., /techbe)"`
		PasswordHash string `long:"password-hash" env:"PASSWORD_HASH" description:"bcrypt hash of the web password, empty disables auth"`
	} `group:"web" namespace:"web" env-namespace:"TECHBE_WEB"`

	History struct {
		Enabled bool   `long:"enabled" env:"ENABLED" description:"keep history of roster changes"`
		DBPath  string `long:"db-path" env:"DB_PATH" default:"techbe_history.db" description:"history sqlite file"`
		Keep    int    `long:"keep" env:"KEEP" default:"1000" description:"max history records to keep, 0 keeps all"`
	} `group:"history" namespace:"history" env-namespace:"TECHBE_HISTORY"`

	Save struct {
		Attempts int           `long:"attempts" env:"ATTEMPTS" default:"3" description:"how many times to try saving the roster"`
		Duration time.Duration `long:"duration" env:"DURATION" default:"100ms" description:"initial delay between attempts"`
		Factor   float64       `long:"factor" env:"FACTOR" default:"2" description:"backoff factor"`
	} `group:"save" namespace:"save" env-namespace:"TECHBE_SAVE"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging to file"`
		Filename        string `long:"filename" env:"FILENAME" default:"techbe.log" description:"log file name"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max log file size in megabytes"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"max days to retain old log files, 0 keeps all"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max number of old log files"`
		EnabledCompress bool   `long:"compress" env:"COMPRESS" description:"compress rotated log files"`
	} `group:"log" namespace:"log" env-namespace:"TECHBE_LOG"`
}

var revision = "unknown"

func main() {
	fmt.Printf("techbe %s\n", revision)

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}
	setupLogger(setupLogs(), opts.Dbg)

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signals(cancel) // handle SIGQUIT and SIGTERM

	if err := run(ctx); err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
}

// run loads the roster and serves it until ctx is canceled
func run(ctx context.Context) error {
	srv, err := makeServer()
	if err != nil {
		return err
	}
	return srv.Run(ctx, opts.Web.Address)
}

// makeServer loads the roster file and makes web server on top of it
func makeServer() (*web.Server, error) {
	attempts := max(opts.Save.Attempts, 1)
	rptr := repeater.New(&strategy.Backoff{Repeats: attempts, Duration: opts.Save.Duration,
		Factor: opts.Save.Factor})
	file := store.NewFile(opts.RosterFile, rptr)

	techs, err := file.Load()
	if err != nil {
		if errors.Is(err, store.ErrMalformed) {
			return nil, fmt.Errorf("roster file %s can't be parsed, fix or remove it before starting: %w", opts.RosterFile, err)
		}
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	log.Printf("[INFO] loaded %d technicians from %s", len(techs), file)

	historyDB := ""
	if opts.History.Enabled {
		historyDB = opts.History.DBPath
	}

	srv, err := web.New(web.Config{
		Editor:        roster.NewEditor(roster.New(techs, file)),
		RosterFile:    absPath(opts.RosterFile),
		HistoryDBPath: historyDB,
		HistoryKeep:   opts.History.Keep,
		BaseURL:       validateBaseURL(opts.Web.BaseURL),
		Hostname:      makeHostName(),
		Version:       revision,
		PasswordHash:  opts.Web.PasswordHash,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create web server: %w", err)
	}
	return srv, nil
}

func makeHostName() string {
	if opts.Web.Hostname != "" {
		return opts.Web.Hostname
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// validateBaseURL normalizes base URL, i.e. drops trailing slash and returns empty for root
func validateBaseURL(u string) string {
	u = strings.TrimRight(u, "/")
	if u != "" && !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return u
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// setupLogs returns log destination, rotated file if enabled or stdout otherwise
func setupLogs() io.Writer {
	if !opts.Log.Enabled {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   opts.Log.Filename,
		MaxSize:    opts.Log.MaxSize,
		MaxAge:     opts.Log.MaxAge,
		MaxBackups: opts.Log.MaxBackups,
		Compress:   opts.Log.EnabledCompress,
	}
}

func setupLogger(out io.Writer, dbg bool) {
	if dbg {
		log.Setup(log.Out(out), log.Err(out), log.Debug, log.Msec, log.CallerFunc, log.CallerPkg, log.CallerFile)
		return
	}
	log.Setup(log.Out(out), log.Err(out), log.Msec)
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			cancel() // terminate on SIGTERM and SIGINT
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM, os.Interrupt)
}
