package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/define-pages-json/config"
	"github.com/lexandro/define-pages-json/logging"
	"github.com/lexandro/define-pages-json/plugin"
	"github.com/lexandro/define-pages-json/register"
	"github.com/lexandro/define-pages-json/search"
	"github.com/lexandro/define-pages-json/server"
	"github.com/lexandro/define-pages-json/tools"
)

// restartEnv marks a process started by a build restart.
const restartEnv = "DEFINE_PAGES_JSON_RESTARTED"

// repeatable is a repeatable CLI flag.
type repeatable []string

func (r *repeatable) String() string { return strings.Join(*r, ", ") }
func (r *repeatable) Set(value string) error {
	*r = append(*r, value)
	return nil
}

// options holds the flags shared by every subcommand.
type options struct {
	configFile string
	logLevel   string
	logFile    string

	user        config.UserConfig
	subPackages repeatable
	excludes    repeatable
	runner      string

	watch        bool
	syncInterval int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	command, rest := args[0], args[1:]
	switch command {
	case "register":
		name := register.DeriveServerName(os.Args[0])
		if err := register.Run(name, rest, stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			register.PrintUsage(stderr)
			return 1
		}
		return 0
	case "build", "dev", "serve", "transform":
	case "-h", "-help", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n", command)
		printUsage(stderr)
		return 2
	}

	opts, positional, err := parseFlags(command, rest, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// stdout carries MCP messages in serve mode, so logs default to a file.
	logFile := opts.logFile
	if logFile == "" && command == "serve" {
		logFile = filepath.Join(cfg.Root, "define-pages-json.log")
	}
	logger, closer := logging.Setup(opts.logLevel, logFile, cfg.Debug)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "build":
		return runBuild(ctx, cfg, opts, logger, stderr)
	case "dev":
		return runDev(ctx, cfg, opts, logger, stderr)
	case "transform":
		return runTransform(ctx, cfg, positional, logger, stdout, stderr)
	default:
		return runServe(ctx, cfg, opts, logger)
	}
}

func printUsage(w io.Writer) {
	binaryName := filepath.Base(os.Args[0])
	fmt.Fprintf(w, "Usage:\n")
	fmt.Fprintf(w, "  %s build [flags]            # write pages.json once (-watch keeps watching)\n", binaryName)
	fmt.Fprintf(w, "  %s dev [flags]              # write pages.json and update it on changes\n", binaryName)
	fmt.Fprintf(w, "  %s transform [flags] <file> # print a page component without its definePage() call\n", binaryName)
	fmt.Fprintf(w, "  %s serve [flags]            # MCP server on stdio\n", binaryName)
	fmt.Fprintf(w, "  %s register project|user    # add the MCP server to a client config\n", binaryName)
	fmt.Fprintf(w, "\nRun '%s <command> -h' for flags.\n", binaryName)
}

func parseFlags(command string, args []string, stderr io.Writer) (*options, []string, error) {
	opts := &options{}
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.user.Root, "root", "", "Project root directory (default: current working directory)")
	fs.StringVar(&opts.configFile, "config", "", "Config file (default: <root>/"+config.FileName+")")
	fs.StringVar(&opts.user.BasePath, "base-path", "", "Directory holding pages.json, relative to root (default: "+config.DefaultBasePath+")")
	fs.StringVar(&opts.user.Pages, "pages", "", "Page directory, relative to root (default: "+config.DefaultPages+")")
	fs.Var(&opts.subPackages, "sub-package", "Sub-package directory, relative to root (repeatable)")
	fs.Var(&opts.excludes, "exclude", "Exclude pattern for page scans (repeatable)")
	fs.IntVar(&opts.user.FileDeep, "file-deep", 0, fmt.Sprintf("Maximum page path depth (default: %d)", config.DefaultFileDeep))
	fs.StringVar(&opts.user.Dts, "dts", "", "Declaration file, relative to the base path (default: "+config.DeclarationFileName+")")
	fs.BoolVar(&opts.user.NoDts, "no-dts", false, "Do not write the declaration file")
	fs.BoolVar(&opts.user.Gitignore, "gitignore", false, "Skip files ignored by the project's .gitignore")
	fs.StringVar(&opts.user.Debug, "debug", "", "Debug logging: true, or one category (scanFiles, exec, watcher, ...)")
	fs.StringVar(&opts.runner, "runner", "", "Script runner command line (default: <root>/node_modules/.bin/tsx)")
	fs.DurationVar(&opts.user.EvalTimeout, "eval-timeout", 0, "Timeout of one macro evaluation (default: 30s)")
	fs.IntVar(&opts.user.Workers, "workers", 0, fmt.Sprintf("Concurrent macro evaluations (default: %d)", config.DefaultWorkers))
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.StringVar(&opts.logFile, "log-file", "", "Log file path (default: stderr, <root>/define-pages-json.log for serve)")

	switch command {
	case "build":
		fs.BoolVar(&opts.watch, "watch", false, "Keep watching after the build")
	case "dev":
		opts.watch = true
		fs.IntVar(&opts.syncInterval, "sync-interval", 0, "Seconds between full consistency checks (0 disables)")
	case "serve":
		fs.BoolVar(&opts.watch, "watch", true, "Update pages.json when files change")
		fs.IntVar(&opts.syncInterval, "sync-interval", 0, "Seconds between full consistency checks (0 disables)")
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	opts.user.SubPackages = opts.subPackages
	opts.user.Exclude = opts.excludes
	if opts.runner != "" {
		opts.user.Runner = strings.Fields(opts.runner)
	}
	return opts, fs.Args(), nil
}

// resolveConfig merges the config file under the flags. Only flags given
// on the command line override file values.
func resolveConfig(opts *options) (config.Resolved, error) {
	root := opts.user.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Resolved{}, fmt.Errorf("getting working directory: %w", err)
		}
		root = wd
	}
	root, _ = filepath.Abs(root)

	path := opts.configFile
	if path == "" {
		path = filepath.Join(root, config.FileName)
	}
	file, found, err := config.LoadFile(path)
	if err != nil {
		return config.Resolved{}, err
	}
	if !found && opts.configFile != "" {
		return config.Resolved{}, fmt.Errorf("config file %s not found", path)
	}

	user := mergeUserConfig(file, opts.user)
	if user.Root == "" || opts.user.Root != "" {
		user.Root = root
	} else if !filepath.IsAbs(user.Root) {
		user.Root = filepath.Join(root, user.Root)
	}
	return config.Resolve(user), nil
}

// mergeUserConfig returns file with every non-zero field of flags applied.
func mergeUserConfig(file, flags config.UserConfig) config.UserConfig {
	out := file
	if flags.BasePath != "" {
		out.BasePath = flags.BasePath
	}
	if flags.Dts != "" {
		out.Dts = flags.Dts
	}
	if flags.NoDts {
		out.NoDts = true
	}
	if flags.Pages != "" {
		out.Pages = flags.Pages
	}
	if len(flags.SubPackages) > 0 {
		out.SubPackages = flags.SubPackages
	}
	if len(flags.Exclude) > 0 {
		out.Exclude = flags.Exclude
	}
	if flags.FileDeep > 0 {
		out.FileDeep = flags.FileDeep
	}
	if flags.Debug != "" {
		out.Debug = flags.Debug
	}
	if flags.Gitignore {
		out.Gitignore = true
	}
	if len(flags.Runner) > 0 {
		out.Runner = flags.Runner
	}
	if flags.EvalTimeout > 0 {
		out.EvalTimeout = flags.EvalTimeout
	}
	if flags.Workers > 0 {
		out.Workers = flags.Workers
	}
	return out
}

func runBuild(ctx context.Context, cfg config.Resolved, opts *options, logger *slog.Logger, stderr io.Writer) int {
	a, err := newApp(cfg, logger, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	start := time.Now()
	err = a.plugin.ConfigResolved(ctx, plugin.HostConfig{Root: cfg.Root, Command: plugin.CommandBuild, Watch: opts.watch})
	if errors.Is(err, plugin.ErrRestartRequired) {
		return restart(logger, stderr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger.Info("build complete", "pages", len(a.pages.Pages()), "duration", time.Since(start))

	if opts.watch {
		<-ctx.Done()
		logger.Info("shutting down")
	}
	return 0
}

func runDev(ctx context.Context, cfg config.Resolved, opts *options, logger *slog.Logger, stderr io.Writer) int {
	a, err := newApp(cfg, logger, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	if err := a.plugin.ConfigResolved(ctx, plugin.HostConfig{Root: cfg.Root, Command: plugin.CommandServe}); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := a.plugin.ConfigureServer(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	a.startSync(ctx, opts.syncInterval)

	<-ctx.Done()
	logger.Info("shutting down")
	return 0
}

func runTransform(ctx context.Context, cfg config.Resolved, positional []string, logger *slog.Logger, stdout, stderr io.Writer) int {
	if len(positional) != 1 {
		fmt.Fprintf(stderr, "Error: transform takes exactly one component path\n")
		return 2
	}
	path, _ := filepath.Abs(positional[0])

	a, err := newApp(cfg, logger, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	if err := a.pages.ScanFiles(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	code, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	out, _, err := a.plugin.Transform(string(code), path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprint(stdout, out)
	return 0
}

func runServe(ctx context.Context, cfg config.Resolved, opts *options, logger *slog.Logger) int {
	startTime := time.Now()
	logger.Info("starting define-pages-json", "root", cfg.Root, "pages", cfg.Pages, "subPackages", cfg.SubPackages)

	pageIndex, err := search.NewPageIndex()
	if err != nil {
		logger.Error("failed to create page index", "error", err)
		return 1
	}
	defer pageIndex.Close()

	a, err := newApp(cfg, logger, indexUpdater(pageIndex, logger))
	if err != nil {
		logger.Error("failed to start", "error", err)
		return 1
	}
	defer a.Close()

	// A failing initial update leaves the server up so the tools can report it.
	if err := a.plugin.ConfigResolved(ctx, plugin.HostConfig{Root: cfg.Root, Command: plugin.CommandServe}); err != nil {
		logger.Error("initial update failed", "error", err)
	}
	if opts.watch {
		if err := a.plugin.ConfigureServer(ctx); err != nil {
			logger.Warn("failed to start file watcher, continuing without live updates", "error", err)
		}
	}
	a.startSync(ctx, opts.syncInterval)

	mcpServer := server.Setup(server.Handlers{
		Update: &tools.UpdateHandler{
			Logger: logger,
			DoUpdate: func(ctx context.Context, changedPath string) (bool, int, string, error) {
				start := time.Now()
				written, err := a.plugin.Update(ctx, changedPath)
				if err != nil {
					return false, 0, "", err
				}
				elapsed := time.Since(start).Round(time.Millisecond).String()
				return written, len(a.pages.Pages()), elapsed, nil
			},
		},
		List:      &tools.ListHandler{Pages: a.pages, RootDir: cfg.Root, Logger: logger},
		Search:    &tools.SearchHandler{PageIndex: pageIndex, Logger: logger},
		Transform: &tools.TransformHandler{Transformer: a.plugin, RootDir: cfg.Root, Logger: logger},
		Manifest:  &tools.ManifestHandler{Source: a.pages, FilePath: cfg.PagesJSONFile(), Logger: logger},
		Status:    &tools.StatusHandler{Context: a.pages, PageIndex: pageIndex, StartTime: startTime, Logger: logger},
	})

	logger.Info("MCP server starting on stdio")
	if err := mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		logger.Error("MCP server error", "error", err)
		return 1
	}
	return 0
}
