package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/config"
	"github.com/gofhir/fsh/diag"
	"github.com/gofhir/fsh/fhirdefs"
	"github.com/gofhir/fsh/fhirout"
	"github.com/gofhir/fsh/igconfig"
	"github.com/gofhir/fsh/importer"
	"github.com/gofhir/fsh/metrics"
	"github.com/gofhir/fsh/pkgassembler"
	"github.com/gofhir/fsh/tank"
)

// buildFlags holds the subset of config.Config a build invocation can
// override from the command line; zero values mean "let config.Load's
// environment/default layering decide."
type buildFlags struct {
	configFile    string
	inputDir      string
	outputDir     string
	cacheDir      string
	fhirVersion   string
	canonicalBase string
	template      string
	offline       bool
	snapshotOnly  bool
	quiet         bool
	jsonSummary   bool
}

func newBuildCmd() *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build [input-dir]",
		Short: "Compile .fsh sources into FHIR resource JSON and ig.ini",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.inputDir = args[0]
			}
			return runBuild(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configFile, "config", "", "path to an fsh-config file (yaml/json/ini/toml)")
	flags.StringVar(&f.outputDir, "output", "", "directory to write generated resources into (overrides OUTPUT_DIR)")
	flags.StringVar(&f.cacheDir, "cache", "", "directory holding cached FHIR core/dependency packages (overrides CACHE_DIR)")
	flags.StringVar(&f.fhirVersion, "fhir-version", "", "FHIR release to compile against (overrides FHIR_VERSION)")
	flags.StringVar(&f.canonicalBase, "canonical", "", "canonical URL base for generated artifacts (overrides CANONICAL_BASE)")
	flags.StringVar(&f.template, "template", "", "IG Publisher template id (overrides TEMPLATE)")
	flags.BoolVar(&f.offline, "offline", false, "record offline mode in the configuration; packages are only ever read from the local cache directory")
	flags.BoolVar(&f.snapshotOnly, "snapshot-only", false, "record snapshot-only mode in the configuration; differentials are still written")
	flags.BoolVarP(&f.quiet, "quiet", "q", false, "suppress the per-file progress bar")
	flags.BoolVar(&f.jsonSummary, "json", false, "print the build summary as JSON instead of text")

	return cmd
}

// loadConfig applies CLI flag overrides on top of the layered
// environment/file configuration, letting explicit flags win over
// FSH_-prefixed environment variables the way a thin CLI wrapper
// around a config.Load-style layered loader is expected to.
func loadConfig(configFile string, overrides func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		overrides(cfg)
	}
	return cfg, nil
}

func runBuild(cmd *cobra.Command, f *buildFlags) error {
	cfg, err := loadConfig(f.configFile, func(c *config.Config) {
		if f.outputDir != "" {
			c.OutputDir = f.outputDir
		}
		if f.cacheDir != "" {
			c.CacheDir = f.cacheDir
		}
		if f.fhirVersion != "" {
			c.FHIRVersion = f.fhirVersion
		}
		if f.canonicalBase != "" {
			c.CanonicalBase = f.canonicalBase
		}
		if f.template != "" {
			c.Template = f.template
		}
		if f.offline {
			c.Offline = true
		}
		if f.snapshotOnly {
			c.SnapshotOnly = true
		}
	})
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := diag.NewLogger(cmd.ErrOrStderr(), logLevelFromString(cfg.LogLevel))
	mx := metrics.New()

	inputDir := f.inputDir
	if inputDir == "" {
		inputDir = "."
	}
	files, err := discoverSources(inputDir)
	if err != nil {
		return fmt.Errorf("discover .fsh sources under %s: %w", inputDir, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no .fsh files found under %s", inputDir)
	}

	sink := diag.NewSink()
	bar := newSourceBar(len(files), f.quiet)
	documents := importSources(files, sink, bar)

	tnk := tank.New(documents)

	ctx := context.Background()
	defs, err := fhirdefs.Load(ctx, cfg.CacheDir, cfg.FHIRVersion)
	if err != nil {
		return fmt.Errorf("load FHIR %s definitions cache: %w", cfg.FHIRVersion, err)
	}
	for _, dep := range cfg.Dependencies {
		if err := loadDependency(defs, cfg.CacheDir, dep); err != nil {
			logger.Emit(diag.Diagnostic{Severity: diag.SeverityWarn, Message: fmt.Sprintf("dependency %s: %v", dep, err)})
		}
	}

	fetcher := fhirdefs.NewCachingFetcher(defs, 256)
	asm := pkgassembler.New(tnk, fetcher, sink, cfg.CanonicalBase)
	pkg := asm.Assemble()

	byURLStats, byTypeStats := fetcher.Stats()
	for i := uint64(0); i < byURLStats.Hits+byTypeStats.Hits; i++ {
		mx.RecordCacheHit()
	}
	for i := uint64(0); i < byURLStats.Misses+byTypeStats.Misses; i++ {
		mx.RecordCacheMiss()
	}

	written, err := fhirout.WritePackage(pkg, cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("write package artifacts: %w", err)
	}

	igErr := emitIGConfig(cfg, sink)

	logger.EmitAll(sink)
	for _, d := range sink.All() {
		mx.RecordDiagnostic(d.Severity)
	}

	printSummary(cmd, f, pkg, len(documents), written, sink, mx, igErr)

	if sink.HasErrors() {
		return fmt.Errorf("build completed with errors")
	}
	return nil
}

// discoverSources resolves dir to a list of .fsh files: a single file
// path is returned as-is, a glob pattern is expanded, and a directory
// is walked recursively, since FSH projects are conventionally
// organized under an input/fsh directory rather than passed as
// individual paths.
func discoverSources(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if matches, gerr := filepath.Glob(dir); gerr == nil && len(matches) > 0 {
			return matches, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		if strings.HasSuffix(dir, ".fsh") {
			return []string{dir}, nil
		}
		matches, err := filepath.Glob(dir)
		return matches, err
	}

	var files []string
	err = filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() && strings.HasSuffix(path, ".fsh") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// importSources parses every file in order, accumulating a Document
// per file that parsed and recording a read/parse failure as an error
// diagnostic rather than aborting the run — a parse error in one
// entity (or file) must not prevent export of sibling entities.
func importSources(files []string, sink *diag.Sink, bar *progressbar.ProgressBar) []*ast.Document {
	docs := make([]*ast.Document, 0, len(files))
	for _, file := range files {
		_ = bar.Add(1)
		source, err := os.ReadFile(file)
		if err != nil {
			sink.Error(file, nil, "read %s: %v", file, err)
			continue
		}
		doc, err := importer.New().Parse(file, string(source), sink)
		if err != nil {
			sink.Error(file, nil, "parse %s: %v", file, err)
			continue
		}
		docs = append(docs, doc)
	}
	_ = bar.Finish()
	return docs
}

func marshalSummary(s buildSummary) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func newSourceBar(total int, quiet bool) *progressbar.ProgressBar {
	if quiet {
		return progressbar.DefaultSilent(int64(total))
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("importing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
}

func loadDependency(defs *fhirdefs.Cache, cacheDir, dep string) error {
	name, _, _ := strings.Cut(dep, "#")
	dir := filepath.Join(cacheDir, strings.ReplaceAll(dep, "#", "@"))
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("dependency package %s not found in cache at %s", name, dir)
	}
	_, err := defs.LoadDirectory(dir)
	return err
}

func emitIGConfig(cfg *config.Config, sink *diag.Sink) error {
	e := &igconfig.Emitter{Sink: sink, File: "ig.ini"}
	outPath := filepath.Join(filepath.Dir(cfg.OutputDir), "ig.ini")
	opts := igconfig.Options{Template: cfg.Template, CanonicalId: canonicalId(cfg.CanonicalBase)}
	return e.Emit(opts, outPath)
}

// canonicalId derives the short id the IG Config Emitter names its
// generated ImplementationGuide resource file after, taking the last
// path segment of the canonical base the same way fhirdefs.idFromURL
// derives a StructureDefinition's id from its own canonical URL.
func canonicalId(base string) string {
	trimmed := strings.TrimRight(base, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i != -1 {
		return trimmed[i+1:]
	}
	return trimmed
}

func logLevelFromString(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

type buildSummary struct {
	FilesImported int    `json:"filesImported"`
	Profiles      int    `json:"profiles"`
	Extensions    int    `json:"extensions"`
	Instances     int    `json:"instances"`
	ArtifactsOut  int    `json:"artifactsWritten"`
	Errors        int    `json:"errors"`
	Warnings      int    `json:"warnings"`
	IGConfig      string `json:"igConfig"`
}

func printSummary(cmd *cobra.Command, f *buildFlags, pkg *pkgassembler.Package, filesImported, written int, sink *diag.Sink, mx *metrics.Metrics, igErr error) {
	errs, warns := 0, 0
	for _, d := range sink.All() {
		switch d.Severity {
		case diag.SeverityError:
			errs++
		case diag.SeverityWarn:
			warns++
		}
	}

	igStatus := "ok"
	if igErr != nil {
		igStatus = igErr.Error()
	}

	summary := buildSummary{
		FilesImported: filesImported,
		Profiles:      len(pkg.ProfileList()),
		Extensions:    len(pkg.ExtensionList()),
		Instances:     len(pkg.Instances),
		ArtifactsOut:  written,
		Errors:        errs,
		Warnings:      warns,
		IGConfig:      igStatus,
	}

	if f.jsonSummary {
		data, _ := marshalSummary(summary)
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return
	}

	out := cmd.OutOrStdout()
	useColor := false
	if w, ok := out.(*os.File); ok {
		useColor = colorEnabled(w)
	}

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	if !useColor {
		color.NoColor = true
	}

	bold.Fprintln(out, "Build summary")
	fmt.Fprintf(out, "  profiles: %d  extensions: %d  instances: %d  artifacts written: %d\n",
		summary.Profiles, summary.Extensions, summary.Instances, summary.ArtifactsOut)

	if errs > 0 {
		red.Fprintf(out, "  %d error(s)\n", errs)
	} else {
		green.Fprintln(out, "  no errors")
	}
	if warns > 0 {
		yellow.Fprintf(out, "  %d warning(s)\n", warns)
	}
	fmt.Fprintf(out, "  ig.ini: %s\n", igStatus)
	fmt.Fprintf(out, "  cache hit rate: %.0f%%\n", mx.CacheHitRate()*100)
}

// colorEnabled reports whether w is an interactive terminal a
// color-coded summary should be written to.
func colorEnabled(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
