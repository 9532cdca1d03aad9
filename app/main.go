package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jaimetur/photomigrator-web/app/conditions"
	"github.com/jaimetur/photomigrator-web/app/config"
	"github.com/jaimetur/photomigrator-web/app/engine"
	"github.com/jaimetur/photomigrator-web/app/notify"
	"github.com/jaimetur/photomigrator-web/app/service"
	"github.com/jaimetur/photomigrator-web/app/store"
	"github.com/jaimetur/photomigrator-web/app/web"
)

var opts struct {
	Listen       string `short:"l" long:"listen" env:"PHOTOMIGRATOR_LISTEN" default:":8080" description:"listen address"`
	DataDir      string `short:"d" long:"data" env:"PHOTOMIGRATOR_DATA" default:"." description:"directory with Config.ini"`
	EngineBinary string `long:"engine" env:"PHOTOMIGRATOR_ENGINE" default:"photomigrator" description:"migrator binary to execute"`
	QueueSize    int    `long:"queue-size" env:"PHOTOMIGRATOR_QUEUE_SIZE" default:"256" description:"max pending jobs"`
	Dbg          bool   `long:"dbg" env:"PHOTOMIGRATOR_DEBUG" description:"debug mode"`

	Conditions struct {
		CPUBelow      int           `long:"cpu-below" env:"CPU_BELOW" description:"max CPU percent to start a run, 0 to disable"`
		MemoryBelow   int           `long:"memory-below" env:"MEMORY_BELOW" description:"max memory percent to start a run, 0 to disable"`
		LoadAvgBelow  float64       `long:"loadavg-below" env:"LOADAVG_BELOW" description:"max 1m load average to start a run, 0 to disable"`
		DiskFreeAbove int           `long:"disk-free-above" env:"DISK_FREE_ABOVE" description:"min free disk percent to start a run, 0 to disable"`
		DiskFreePath  string        `long:"disk-free-path" env:"DISK_FREE_PATH" default:"/" description:"path checked for free disk space"`
		MaxPostpone   time.Duration `long:"max-postpone" env:"MAX_POSTPONE" default:"1h" description:"how long a run may wait for conditions"`
		CheckInterval time.Duration `long:"check-interval" env:"CHECK_INTERVAL" default:"30s" description:"re-check period while postponed"`
	} `group:"conditions" namespace:"conditions" env-namespace:"PHOTOMIGRATOR_CONDITIONS"`

	Notify struct {
		EnabledError       bool          `long:"enabled-error" env:"ENABLED_ERROR" description:"enable notifications on errors"`
		EnabledCompletion  bool          `long:"enabled-complete" env:"ENABLED_COMPLETE" description:"enable completion notifications"`
		ErrorTemplate      string        `long:"err-template" env:"ERR_TEMPLATE" description:"error template file"`
		CompletionTemplate string        `long:"complete-template" env:"COMPLETE_TEMPLATE" description:"completion template file"`
		SMTPHost           string        `long:"smtp-host" env:"SMTP_HOST" description:"SMTP host"`
		SMTPPort           int           `long:"smtp-port" env:"SMTP_PORT" description:"SMTP port"`
		SMTPUsername       string        `long:"smtp-username" env:"SMTP_USERNAME" description:"SMTP user name"`
		SMTPPassword       string        `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
		SMTPTLS            bool          `long:"smtp-tls" env:"SMTP_TLS" description:"enable SMTP TLS"`
		SMTPStartTLS       bool          `long:"smtp-starttls" env:"SMTP_STARTTLS" description:"enable SMTP StartTLS"`
		FromEmail          string        `long:"from" env:"FROM" description:"SMTP from email"`
		ToEmails           []string      `long:"to" env:"TO" description:"SMTP to email(s)" env-delim:","`
		WebhookURLs        []string      `long:"webhook" env:"WEBHOOK" description:"webhook notification URL(s)" env-delim:","`
		Timeout            time.Duration `long:"timeout" env:"TIMEOUT" default:"10s" description:"notification delivery timeout"`
		HostName           string        `long:"host" env:"HOSTNAME" description:"host name running the service"`
	} `group:"notify" namespace:"notify" env-namespace:"PHOTOMIGRATOR_NOTIFY"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging"`
		Filename        string `long:"filename" env:"FILENAME" description:"file to write logs to, stdout if not set"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"maximum size in megabytes of the log file before it gets rotated"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"maximum number of days to retain old log files"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"maximum number of old log files to retain"`
		EnabledCompress bool   `long:"enabled-compress" env:"ENABLED_COMPRESS" description:"enable compression of rotated files"`
	} `group:"log" namespace:"log" env-namespace:"PHOTOMIGRATOR_LOG"`
}

var revision = "unknown"

func main() {
	fmt.Printf("photomigrator-web %s\n", revision)

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}
	setupLogs()

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signals(cancel) // handle SIGQUIT and SIGTERM

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] service failed, %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := config.ResolvePath(opts.DataDir)
	log.Printf("[INFO] config file: %s", cfgPath)
	cfgFile := config.NewFile(cfgPath)
	jobs := store.NewJobs()

	worker := &service.Worker{
		Store:            jobs,
		Engine:           engine.NewCLI(opts.EngineBinary, cfgPath),
		ConditionChecker: conditions.Checker{},
		Conditions: conditions.Config{
			CPUBelow:      opts.Conditions.CPUBelow,
			MemoryBelow:   opts.Conditions.MemoryBelow,
			LoadAvgBelow:  opts.Conditions.LoadAvgBelow,
			DiskFreeAbove: opts.Conditions.DiskFreeAbove,
			DiskFreePath:  opts.Conditions.DiskFreePath,
			MaxPostpone:   opts.Conditions.MaxPostpone,
			CheckInterval: opts.Conditions.CheckInterval,
		},
		HostName:      makeHostName(),
		NotifyTimeout: opts.Notify.Timeout,
		QueueSize:     opts.QueueSize,
	}
	if notifier := makeNotifier(); notifier != nil { // keep the interface nil when disabled
		worker.Notifier = notifier
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Do(ctx)
	}()

	srv, err := web.New(web.Config{
		Store:      jobs,
		Worker:     worker,
		ConfigFile: cfgFile,
		Version:    revision,
		Hostname:   makeHostName(),
	})
	if err != nil {
		return err
	}

	err = srv.Run(ctx, opts.Listen)
	worker.Close()
	<-workerDone
	return err
}

func makeNotifier() *notify.Service {
	if !opts.Notify.EnabledError && !opts.Notify.EnabledCompletion {
		return nil
	}

	if opts.Notify.FromEmail == "" {
		opts.Notify.FromEmail = "photomigrator@" + makeHostName()
	}

	return notify.NewService(
		notify.Params{
			EnabledError:       opts.Notify.EnabledError,
			EnabledCompletion:  opts.Notify.EnabledCompletion,
			ErrorTemplate:      opts.Notify.ErrorTemplate,
			CompletionTemplate: opts.Notify.CompletionTemplate,
			Hostname:           makeHostName(),
			Timeout:            opts.Notify.Timeout,
		},
		notify.SendersParams{
			FromEmail:    opts.Notify.FromEmail,
			ToEmails:     opts.Notify.ToEmails,
			SMTPHost:     opts.Notify.SMTPHost,
			SMTPPort:     opts.Notify.SMTPPort,
			SMTPUsername: opts.Notify.SMTPUsername,
			SMTPPassword: opts.Notify.SMTPPassword,
			SMTPTLS:      opts.Notify.SMTPTLS,
			SMTPStartTLS: opts.Notify.SMTPStartTLS,
			WebhookURLs:  opts.Notify.WebhookURLs,
		},
	)
}

func makeHostName() string {
	if opts.Notify.HostName != "" {
		return opts.Notify.HostName
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

func setupLogs() io.Writer {
	if !opts.Log.Enabled {
		log.Setup(log.Out(io.Discard), log.Err(io.Discard))
		return os.Stdout
	}

	log.Setup(log.Msec)
	if opts.Dbg {
		log.Setup(log.Debug, log.CallerFunc, log.CallerPkg, log.CallerFile)
	}

	if opts.Log.Filename != "" {
		fileLogger := &lumberjack.Logger{
			Filename:   opts.Log.Filename,
			MaxSize:    opts.Log.MaxSize,
			MaxBackups: opts.Log.MaxBackups,
			MaxAge:     opts.Log.MaxAge,
			Compress:   opts.Log.EnabledCompress,
		}
		log.Setup(log.Out(fileLogger), log.Err(fileLogger))
		return fileLogger
	}
	return os.Stdout
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
			cancel() // terminate on SIGTERM or SIGINT
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
}
