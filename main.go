package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lotas/tabtree/internal/applog"
	"github.com/lotas/tabtree/internal/config"
	"github.com/lotas/tabtree/internal/dispatch"
	"github.com/lotas/tabtree/internal/export"
	"github.com/lotas/tabtree/internal/firefox"
	"github.com/lotas/tabtree/internal/host"
	"github.com/lotas/tabtree/internal/i18n"
	"github.com/lotas/tabtree/internal/mozlz4"
	"github.com/lotas/tabtree/internal/pages"
	"github.com/lotas/tabtree/internal/progress"
	"github.com/lotas/tabtree/internal/restore"
	"github.com/lotas/tabtree/internal/server"
	"github.com/lotas/tabtree/internal/snapshot"
	"github.com/lotas/tabtree/internal/storage"
	"github.com/lotas/tabtree/internal/titles"
	"github.com/lotas/tabtree/internal/tree"
	"github.com/lotas/tabtree/internal/tui"
	"github.com/lotas/tabtree/internal/types"
)

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		runServe(args)
	case "export":
		runExport(args)
	case "restore":
		runRestore(args)
	case "history":
		runHistory(args)
	case "profiles":
		runProfiles(args)
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n\n", cmd)
		printHelp()
		os.Exit(2)
	}
}

func printHelp() {
	fmt.Print(`tabtree: export and restore Firefox tab trees

Usage:
  tabtree [serve]                                       Run the extension bridge (default)
    --config <file>        Config file (default: tabtree.yaml lookup)
    --port <n>             Bridge port (default: 19191)
    --tui                  Show the terminal viewer

  tabtree export                                        Export the tab tree
    --profile <name>       Read the session file of this Firefox profile
    --live                 Read the tree from the connected extension
    --format <f>           json, tsv or md (default: json)
    --out <file>           Output file (default: stdout)
    --file                 Write a timestamped file into export_dir
    --lz4                  Compress the output with mozlz4 framing
    --fetch-titles         Fill in missing titles from the pages
    --save                 Keep the export in the history database

  tabtree restore [file]                                Restore a tree via the extension
    --rev <n>              Restore a saved export instead of a file
    --source <name>        History source of --rev (default: live)
    --port <n>             Bridge port (default: 19191)

  tabtree history                                       List saved exports and restores
    --source <name>        Only this source
    --runs <n>             Restore runs to show (default: 10)
  tabtree history diff [rev] [rev2] [--source X]        Compare saved exports (default: latest two)
  tabtree history delete <rev> [--source X]             Delete a saved export

  tabtree profiles                                      List Firefox profiles and their session files

Environment:
  TABTREE_PROFILE        Default Firefox profile (overridden by --profile flag)
  TABTREE_FIREFOX_DIR    Directory holding profiles.ini
  TABTREE_EXPORT_DIR     Directory for export --file
  TABTREE_PORT, TABTREE_LOCALE, TABTREE_RESTORE_BATCH_SIZE, ...
                         Override tabtree.yaml keys
`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func loadConfig(path string) *config.Config {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fatalf("%v", err)
	}
	if err := applog.Init(cfg.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	return cfg
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	path := cfg.DBPath
	if path == "" {
		var err error
		if path, err = storage.DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	return storage.OpenDB(path)
}

func policyFromConfig(c config.RestoreConfig) restore.Policy {
	return restore.Policy{
		BatchSize:            c.BatchSize,
		BatchDelay:           c.BatchDelay,
		CallsPerSecond:       c.CallsPerSecond,
		SettleDelay:          c.SettleDelay,
		Order:                restore.Order(c.Order),
		Reorder:              c.Reorder,
		ReplayStates:         c.ReplayStates,
		SubstitutePrivileged: c.SubstitutePrivileged,
	}
}

func baseURL(port int) string {
	return "http://127.0.0.1:" + strconv.Itoa(port)
}

// app is the wired bridge: server, browser capabilities, restore and
// request handling.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	srv        *server.Server
	bridge     *host.Bridge
	channel    *progress.Channel
	restorer   *restore.Orchestrator
	dispatcher *dispatch.Dispatcher
}

func newApp(cfg *config.Config, db *sql.DB) *app {
	base := baseURL(cfg.Port)
	srv := server.New(cfg.Port)
	bridge := host.NewBridge(srv, cfg.CallTimeout)
	channel := progress.New(bridge)

	opts := []restore.Option{restore.WithPlaceholderBase(base)}
	dopts := []dispatch.Option{
		dispatch.WithCatalog(i18n.New(cfg.Locale)),
		dispatch.WithLocation(cfg.Location()),
	}
	if db != nil {
		opts = append(opts, restore.WithRecorder(storage.Recorder{DB: db}))
		dopts = append(dopts, dispatch.WithStorage(db))
	}
	orch := restore.New(bridge, bridge, channel, policyFromConfig(cfg.Restore), opts...)
	disp := dispatch.New(bridge, bridge, bridge, orch, base, dopts...)

	return &app{
		cfg:        cfg,
		db:         db,
		srv:        srv,
		bridge:     bridge,
		channel:    channel,
		restorer:   orch,
		dispatcher: disp,
	}
}

// start serves the bridge and the pages until ctx is done.
func (a *app) start(ctx context.Context) {
	p := pages.New(a.dispatcher.Forest, a.restorer.Progress)
	go func() {
		if err := a.srv.ListenAndServe(ctx, a.srv.Router(p)); err != nil {
			applog.Error("server.listen", err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}()
}

// handleRequests answers extension requests until ctx is done.
func (a *app) handleRequests(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.srv.Messages():
			if msg.Type == "" {
				continue
			}
			go func(msg server.IncomingMsg) {
				resp := a.dispatcher.Handle(ctx, dispatch.Request{Type: msg.Type, TabID: msg.TabID, Data: msg.Data})
				if msg.ID == "" {
					return
				}
				if err := a.srv.Reply(msg.ID, resp); err != nil {
					applog.Warn("server.reply.failed", "type", msg.Type, "error", err)
				}
			}(msg)
		}
	}
}

// waitConnected blocks until the extension connects or timeout passes.
func (a *app) waitConnected(ctx context.Context, timeout time.Duration) error {
	deadline := time.After(timeout)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for !a.srv.Connected() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("timed out waiting for extension (%s)", timeout)
		case <-tick.C:
		}
	}
	return nil
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file")
	port := fs.Int("port", 0, "Bridge port")
	showTUI := fs.Bool("tui", false, "Show the terminal viewer")
	fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	defer applog.Close()
	if *port != 0 {
		cfg.Port = *port
	}

	db, err := openDB(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
		applog.Error("storage.open", err)
	} else {
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, db)
	a.start(ctx)
	go a.handleRequests(ctx)
	applog.Info("serve.start", "port", cfg.Port)

	if *showTUI {
		model := tui.NewModel(a.dispatcher, cfg.Port)
		p := tea.NewProgram(model, tea.WithAltScreen())
		a.channel.Subscribe(tui.Notifier(p))
		go func() {
			if a.waitConnected(ctx, time.Hour) == nil {
				p.Send(tui.ReloadMsg{})
			}
		}()
		if _, err := p.Run(); err != nil {
			fatalf("%v", err)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "tabtree listening on %s (viewer: %s)\n", baseURL(cfg.Port), pages.ViewerURL(baseURL(cfg.Port)))
	<-ctx.Done()
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file")
	profileName := fs.String("profile", "", "Firefox profile name")
	liveMode := fs.Bool("live", false, "Read the tree from the connected extension")
	port := fs.Int("port", 0, "Bridge port for --live")
	format := fs.String("format", "json", "json, tsv or md")
	outFile := fs.String("out", "", "Output file path (default: stdout)")
	toFile := fs.Bool("file", false, "Write to export_dir with a timestamped file name")
	lz4 := fs.Bool("lz4", false, "Compress the output with mozlz4 framing")
	fetchTitles := fs.Bool("fetch-titles", false, "Fill in missing titles from the pages")
	save := fs.Bool("save", false, "Keep the export in the history database")
	fs.Parse(reorderArgs(args))

	cfg := loadConfig(*cfgPath)
	defer applog.Close()
	if *port != 0 {
		cfg.Port = *port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var forest []*types.TabNode
	source := "live"
	if *liveMode {
		a := newApp(cfg, nil)
		a.start(ctx)
		fmt.Fprintf(os.Stderr, "Waiting for Firefox extension on port %d...\n", cfg.Port)
		if err := a.waitConnected(ctx, 10*time.Second); err != nil {
			fatalf("%v", err)
		}
		var err error
		if forest, err = a.dispatcher.Forest(ctx); err != nil {
			fatalf("%v", err)
		}
	} else {
		profile, err := resolveProfile(cfg, resolveProfileName(*profileName, cfg))
		if err != nil {
			fatalf("%v", err)
		}
		raw, err := host.Offline{ProfileDir: profile.Path}.GetTree(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		forest = tree.Normalize(raw)
		source = profile.Name
	}

	if *fetchTitles {
		n := titles.NewFetcher(cfg.Restore.CallsPerSecond).Backfill(ctx, forest)
		fmt.Fprintf(os.Stderr, "Fetched %d missing titles.\n", n)
	}

	now := time.Now()
	var output, ext string
	switch *format {
	case "json":
		var err error
		if output, err = export.JSON(forest); err != nil {
			fatalf("generating JSON: %v", err)
		}
		ext = ".json"
	case "tsv":
		output = export.TSV(forest, i18n.New(cfg.Locale))
		ext = ".tsv"
	case "md", "markdown":
		output = export.Markdown(forest, now.In(cfg.Location()))
		ext = ".md"
	default:
		fatalf("unknown format %q", *format)
	}

	data := []byte(output)
	if *lz4 {
		var err error
		if data, err = mozlz4.Compress(data); err != nil {
			fatalf("compress: %v", err)
		}
		ext += "lz4"
	}

	if *toFile && *outFile == "" {
		*outFile = cfg.ExportPath(export.FileBaseName(now, cfg.Location()) + ext)
		if err := os.MkdirAll(filepath.Dir(*outFile), 0o755); err != nil {
			fatalf("create export dir: %v", err)
		}
	}

	if *outFile != "" {
		if err := os.WriteFile(*outFile, data, 0o644); err != nil {
			fatalf("writing file: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Exported %d tabs to %s\n", types.CountNodes(forest), *outFile)
	} else {
		os.Stdout.Write(data)
	}

	if *save {
		db, err := openDB(cfg)
		if err != nil {
			fatalf("open history: %v", err)
		}
		defer db.Close()
		label := export.FileBaseName(time.Now(), cfg.Location())
		rev, created, diff, err := snapshot.Create(db, source, forest, label)
		if err != nil {
			fatalf("save export: %v", err)
		}
		if !created {
			fmt.Fprintf(os.Stderr, "No changes since %s rev %d\n", source, rev)
			return
		}
		fmt.Fprintf(os.Stderr, "Saved as %s rev %d\n", source, rev)
		if diff != nil {
			fmt.Fprint(os.Stderr, snapshot.FormatDiff(diff))
		}
	}
}

func runRestore(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file")
	port := fs.Int("port", 0, "Bridge port")
	rev := fs.Int("rev", 0, "Restore a saved export instead of a file")
	source := fs.String("source", dispatch.StorageSource, "History source of --rev")
	fs.Parse(reorderArgs(args))

	cfg := loadConfig(*cfgPath)
	defer applog.Close()
	if *port != 0 {
		cfg.Port = *port
	}

	db, err := openDB(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
		db = nil
	} else {
		defer db.Close()
	}

	var in restore.Input
	switch {
	case *rev > 0:
		if db == nil {
			fatalf("--rev needs the history database")
		}
		exp, err := storage.GetExport(db, *source, *rev)
		if err != nil {
			fatalf("load %s rev %d: %v", *source, *rev, err)
		}
		in = restore.ForestInput(exp.Forest)
	case fs.NArg() == 1:
		data, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fatalf("%v", err)
		}
		if mozlz4.IsCompressed(data) {
			if data, err = mozlz4.Decompress(data); err != nil {
				fatalf("%v", err)
			}
		}
		if in, err = restore.DecodeInput(data); err != nil {
			fatalf("%v", err)
		}
	default:
		fmt.Fprintln(os.Stderr, "Usage: tabtree restore <file> | --rev <n>")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, db)
	a.channel.Subscribe(progress.NotifierFunc(func(_ context.Context, ev progress.Event) error {
		if ev.Kind == progress.KindUpdate {
			fmt.Fprintf(os.Stderr, "\r  %d/%d tabs", ev.State.Loaded, ev.State.Total)
		}
		return nil
	}))
	a.start(ctx)
	go a.handleRequests(ctx)
	fmt.Fprintf(os.Stderr, "Waiting for Firefox extension on port %d...\n", cfg.Port)
	if err := a.waitConnected(ctx, 30*time.Second); err != nil {
		fatalf("%v", err)
	}

	fmt.Fprintf(os.Stderr, "Restoring %d tabs (%s)...\n", types.CountNodes(in.Forest()), in.Shape)
	res, err := a.restorer.Restore(ctx, in)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Fprintf(os.Stderr, "\nCreated %d tabs, %d failed, %d skipped.\n", res.Created, res.Failed, res.Skipped)
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "Warning: tree layout incomplete: %v\n", res.Err)
	}
}

func runHistory(args []string) {
	if len(args) > 0 {
		switch args[0] {
		case "delete":
			runHistoryDelete(args[1:])
			return
		case "diff":
			runHistoryDiff(args[1:])
			return
		}
	}

	fs := flag.NewFlagSet("history", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file")
	source := fs.String("source", "", "Only this source")
	runs := fs.Int("runs", 10, "Restore runs to show")
	fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	defer applog.Close()
	db, err := openDB(cfg)
	if err != nil {
		fatalf("%v", err)
	}
	defer db.Close()

	exports, err := storage.ListExports(db, *source)
	if err != nil {
		fatalf("%v", err)
	}
	if len(exports) == 0 {
		fmt.Println("No saved exports.")
	} else {
		fmt.Println("Exports:")
		for _, e := range exports {
			label := ""
			if e.Label != "" {
				label = fmt.Sprintf("  %q", e.Label)
			}
			fmt.Printf("  %-12s #%-4d %s  %4d tabs%s\n", e.Source, e.Rev, e.CreatedAt.Local().Format("2006-01-02 15:04"), e.TabCount, label)
		}
	}

	list, err := storage.ListRestoreRuns(db, *runs)
	if err != nil {
		fatalf("%v", err)
	}
	if len(list) == 0 {
		return
	}
	fmt.Println("\nRestores:")
	for _, r := range list {
		status := "ok"
		if r.Error != "" {
			status = r.Error
		}
		fmt.Printf("  %s  %d/%d loaded, %d failed, %s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"), r.Loaded, r.Total, r.Failed,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second), status)
	}
}

func runHistoryDelete(args []string) {
	fs := flag.NewFlagSet("history delete", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file")
	source := fs.String("source", dispatch.StorageSource, "Source of the export")
	fs.Parse(reorderArgs(args))

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: tabtree history delete <rev> [--source X]")
		os.Exit(2)
	}
	rev, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		fatalf("invalid rev %q", fs.Arg(0))
	}

	cfg := loadConfig(*cfgPath)
	defer applog.Close()
	db, err := openDB(cfg)
	if err != nil {
		fatalf("%v", err)
	}
	defer db.Close()

	if err := storage.DeleteExport(db, *source, rev); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fatalf("%s rev %d not found", *source, rev)
		}
		fatalf("%v", err)
	}
	fmt.Printf("Deleted %s rev %d\n", *source, rev)
}

func runHistoryDiff(args []string) {
	fs := flag.NewFlagSet("history diff", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file")
	source := fs.String("source", dispatch.StorageSource, "Source of the exports")
	fs.Parse(reorderArgs(args))

	var revs [2]int
	for i := 0; i < fs.NArg() && i < 2; i++ {
		n, err := strconv.Atoi(fs.Arg(i))
		if err != nil {
			fatalf("invalid rev %q", fs.Arg(i))
		}
		revs[i] = n
	}

	cfg := loadConfig(*cfgPath)
	defer applog.Close()
	db, err := openDB(cfg)
	if err != nil {
		fatalf("%v", err)
	}
	defer db.Close()

	// With no revs, compare the latest two exports.
	if fs.NArg() == 0 {
		list, err := storage.ListExports(db, *source)
		if err != nil {
			fatalf("%v", err)
		}
		if len(list) < 2 {
			fatalf("need two exports of %q to compare", *source)
		}
		revs = [2]int{list[1].Rev, list[0].Rev}
	}

	diff, err := snapshot.DiffRevs(db, *source, revs[0], revs[1])
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Print(snapshot.FormatDiff(diff))
}

func runProfiles(args []string) {
	fs := flag.NewFlagSet("profiles", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file")
	fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	defer applog.Close()

	profiles, err := firefox.DiscoverProfiles(cfg.FirefoxDir)
	if err != nil {
		fatalf("discovering Firefox profiles: %v", err)
	}
	if len(profiles) == 0 {
		fmt.Fprintln(os.Stderr, "No Firefox profiles found.")
		os.Exit(1)
	}

	for _, p := range profiles {
		suffix := ""
		if p.IsDefault {
			suffix = " [default]"
		}
		if !p.Readable() {
			suffix += " (no session file)"
		}
		fmt.Printf("%s (%s)%s\n", p.Name, p.Path, suffix)
	}
}

// resolveProfile finds the profile an offline export reads. An empty name
// picks the default profile, falling back to the first readable one.
func resolveProfile(cfg *config.Config, profileName string) (types.Profile, error) {
	profiles, err := firefox.DiscoverProfiles(cfg.FirefoxDir)
	if err != nil {
		return types.Profile{}, fmt.Errorf("discover profiles: %w", err)
	}
	return firefox.SelectProfile(profiles, profileName)
}

// reorderArgs moves flag arguments before positional arguments so that
// flag.Parse handles them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			flags = append(flags, args[i])
			if !strings.Contains(args[i], "=") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") && !isBoolFlag(args[i]) {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}

func isBoolFlag(arg string) bool {
	switch strings.TrimLeft(arg, "-") {
	case "live", "lz4", "fetch-titles", "save", "tui", "file":
		return true
	}
	return false
}

// resolveProfileName returns the profile name from the flag if set,
// otherwise the configured profile (TABTREE_PROFILE or tabtree.yaml).
func resolveProfileName(flagValue string, cfg *config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.Profile
}
