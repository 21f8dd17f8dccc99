package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/crate-media/crate/internal/config"
	"github.com/crate-media/crate/internal/events"
	"github.com/crate-media/crate/internal/importer"
	"github.com/crate-media/crate/internal/library"
	"github.com/crate-media/crate/internal/state"
)

var importCmd = &cobra.Command{
	Use:   "import <path>...",
	Short: "Import music into the library",
	Long: `Scans each path (a directory, a single audio file, or an archive) for
albums and imports them. Flags override the corresponding config settings.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var importFlags struct {
	move            bool
	copyFiles       bool
	link            bool
	hardlink        bool
	singletons      bool
	pretend         bool
	resume          bool
	incremental     bool
	threaded        bool
	fromScratch     bool
	deleteOriginals bool
	quiet           bool
}

func init() {
	rootCmd.AddCommand(importCmd)

	f := importCmd.Flags()
	f.BoolVar(&importFlags.move, "move", false, "Move files into the library")
	f.BoolVarP(&importFlags.copyFiles, "copy", "c", false, "Copy files into the library")
	f.BoolVar(&importFlags.link, "link", false, "Symlink files into the library")
	f.BoolVar(&importFlags.hardlink, "hardlink", false, "Hardlink files into the library")
	f.BoolVarP(&importFlags.singletons, "singletons", "s", false, "Import tracks individually, without album grouping")
	f.BoolVarP(&importFlags.pretend, "pretend", "p", false, "Show what would be imported without doing it")
	f.BoolVar(&importFlags.resume, "resume", false, "Resume an interrupted import without asking")
	f.BoolVarP(&importFlags.incremental, "incremental", "i", false, "Skip directories imported in earlier runs")
	f.BoolVar(&importFlags.threaded, "threaded", false, "Run pipeline stages concurrently")
	f.BoolVar(&importFlags.fromScratch, "from-scratch", false, "Discard existing tags before applying matches")
	f.BoolVar(&importFlags.deleteOriginals, "delete-originals", false, "Delete source files after a copy import")
	f.BoolVarP(&importFlags.quiet, "quiet", "q", false, "No progress output")
}

// applyImportFlags copies every flag the user set onto the config.
func applyImportFlags(cmd *cobra.Command, cfg *config.Config) {
	set := map[string]*bool{
		"move":             &cfg.Import.Move,
		"copy":             &cfg.Import.Copy,
		"link":             &cfg.Import.Link,
		"hardlink":         &cfg.Import.Hardlink,
		"singletons":       &cfg.Import.Singletons,
		"pretend":          &cfg.Import.Pretend,
		"resume":           &cfg.Import.Resume,
		"incremental":      &cfg.Import.Incremental,
		"threaded":         &cfg.Import.Threaded,
		"from-scratch":     &cfg.Import.FromScratch,
		"delete-originals": &cfg.Import.DeleteOriginals,
	}
	flagValues := map[string]bool{
		"move":             importFlags.move,
		"copy":             importFlags.copyFiles,
		"link":             importFlags.link,
		"hardlink":         importFlags.hardlink,
		"singletons":       importFlags.singletons,
		"pretend":          importFlags.pretend,
		"resume":           importFlags.resume,
		"incremental":      importFlags.incremental,
		"threaded":         importFlags.threaded,
		"from-scratch":     importFlags.fromScratch,
		"delete-originals": importFlags.deleteOriginals,
	}
	for name, target := range set {
		if cmd.Flags().Changed(name) {
			*target = flagValues[name]
		}
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyImportFlags(cmd, cfg)
	if errs := cfg.Validate(); len(errs) > 0 {
		return &config.ConfigError{Path: configPath, Errors: errs}
	}
	log := newLogger(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.Library.Database), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	store, err := library.Open(cfg.Library.Database)
	if err != nil {
		return fmt.Errorf("open library: %w", err)
	}
	defer func() { _ = store.Close() }()

	st, err := state.Open(cfg.Library.StateFile, log)
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer func() { _ = st.Close() }()

	reg := events.NewRegistry()
	if !importFlags.quiet && !cfg.Import.Pretend {
		bar := progressbar.Default(-1, "importing")
		defer func() { _ = bar.Finish() }()
		count := func(events.Event) any {
			_ = bar.Add(1)
			return nil
		}
		reg.Register(events.EventAlbumImported, count)
		reg.Register(events.EventItemImported, count)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := &importer.Session{
		Store:  store,
		State:  st,
		Config: cfg,
		Events: reg,
		Log:    log,
	}
	if err := sess.Run(ctx, args...); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "\nInterrupted. Run the same import again to resume.")
			return nil
		}
		return err
	}

	fmt.Printf("\nImported %d, skipped %d\n", sess.Imported(), sess.Skipped())
	return nil
}
