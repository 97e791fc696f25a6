// Package igconfig implements the IG Config Emitter: it reads, merges,
// and writes the single-section ig.ini file an Implementation Guide
// build expects, using gopkg.in/ini.v1 for load/preserve/write rather
// than a hand-rolled key=value writer.
package igconfig

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/gofhir/fsh/diag"
)

// deprecatedKeys are carried over verbatim from a copied on-disk file,
// but flagged with a warning.
var deprecatedKeys = []string{
	"copyrightyear", "license", "version", "ballotstatus",
	"fhirspec", "excludexml", "excludejson", "excludettl", "excludeMaps",
}

const (
	bannerGenerated = "DO NOT EDIT THIS FILE - it is generated from configuration on every build"
	bannerOverride  = "DO NOT EDIT THIS FILE - generated configuration overrides the on-disk ig.ini"
	bannerMerged    = "This file was copied from %s and updated with required defaults"
	bannerCopied    = "This file was copied verbatim from %s"
)

// Options are the inputs the Emitter needs from the compile-run
// configuration: the template package id (if the author supplied one)
// and the canonical id used to name the generated ImplementationGuide
// resource file.
type Options struct {
	Template    string
	CanonicalId string
}

// Emitter writes ig.ini to disk, reporting its decisions to Sink.
type Emitter struct {
	Sink *diag.Sink
	File string // path to ig.ini, e.g. "ig-data/ig.ini"
}

// Emit runs the four-case algorithm from the IG Config Emitter spec
// against the file on disk at e.File, writing the resulting ig.ini to
// outPath.
func (e *Emitter) Emit(opts Options, outPath string) error {
	existing, existsErr := os.Stat(e.File)
	onDisk := existsErr == nil && !existing.IsDir()

	switch {
	case opts.Template != "" && !onDisk:
		return e.writeGenerated(outPath, opts, bannerGenerated)
	case opts.Template != "" && onDisk:
		e.Sink.Warn(e.File, nil, "ig.ini on disk is overridden by generated configuration (template supplied)")
		return e.writeGenerated(outPath, opts, bannerOverride)
	case opts.Template == "" && onDisk:
		return e.copyOrMerge(outPath)
	default:
		return fmt.Errorf("ig.ini: no template configured and no on-disk file at %s", e.File)
	}
}

func (e *Emitter) writeGenerated(outPath string, opts Options, banner string) error {
	cfg := ini.Empty()
	sec, err := cfg.NewSection("IG")
	if err != nil {
		return fmt.Errorf("ig.ini: create section: %w", err)
	}
	if _, err := sec.NewKey("ig", fmt.Sprintf("input/ImplementationGuide-%s.json", opts.CanonicalId)); err != nil {
		return fmt.Errorf("ig.ini: set key ig: %w", err)
	}
	if _, err := sec.NewKey("template", opts.Template); err != nil {
		return fmt.Errorf("ig.ini: set key template: %w", err)
	}
	if err := writeWithBanner(cfg, outPath, banner); err != nil {
		return err
	}
	e.Sink.Info(e.File, nil, "Generated ig.ini.")
	return nil
}

// copyOrMerge handles both the verbatim-copy case and the
// merge-missing-defaults case: it loads the on-disk file, warns about
// any deprecated keys it finds, fills in any missing `ig`/`template`
// defaults (warning per missing key), and writes the result with a
// banner appropriate to whichever happened.
func (e *Emitter) copyOrMerge(outPath string) error {
	cfg, err := ini.Load(e.File)
	if err != nil {
		return fmt.Errorf("ig.ini: load %s: %w", e.File, err)
	}
	sec := cfg.Section("IG")

	for _, key := range deprecatedKeys {
		if sec.HasKey(key) {
			e.Sink.Warn(e.File, nil, "ig.ini key %q is deprecated and will be removed in a future release", key)
		}
	}

	merged := false
	if !sec.HasKey("ig") {
		e.Sink.Warn(e.File, nil, "ig.ini is missing key %q; using a generated default", "ig")
		if _, err := sec.NewKey("ig", "input/ImplementationGuide-fsh-generated.json"); err != nil {
			return fmt.Errorf("ig.ini: set default key ig: %w", err)
		}
		merged = true
	}
	if !sec.HasKey("template") {
		e.Sink.Warn(e.File, nil, "ig.ini is missing key %q; using a generated default", "template")
		if _, err := sec.NewKey("template", "hl7.fhir.template#current"); err != nil {
			return fmt.Errorf("ig.ini: set default key template: %w", err)
		}
		merged = true
	}

	banner := fmt.Sprintf(bannerCopied, e.File)
	if merged {
		banner = fmt.Sprintf(bannerMerged, e.File)
	}
	return writeWithBanner(cfg, outPath, banner)
}

// writeWithBanner renders cfg's single [IG] section as "key = value"
// lines preceded by a boxed comment banner and followed by a trailing
// blank line, matching the wire format §4.4/§6 describe.
func writeWithBanner(cfg *ini.File, outPath, banner string) error {
	var body strings.Builder
	if _, err := cfg.WriteTo(&body); err != nil {
		return fmt.Errorf("ig.ini: render: %w", err)
	}

	var out strings.Builder
	out.WriteString(box(banner))
	out.WriteString(body.String())
	if !strings.HasSuffix(body.String(), "\n\n") {
		out.WriteString("\n")
	}

	if err := os.WriteFile(outPath, []byte(out.String()), 0o644); err != nil {
		return fmt.Errorf("ig.ini: write %s: %w", outPath, err)
	}
	return nil
}

// box renders msg as a boxed "; ---" comment banner, with msg on a single
// "; " line (it is not wrapped), matching ini.v1's "; " comment-line
// convention.
func box(msg string) string {
	border := "; " + strings.Repeat("-", 70) + "\n"
	return border + "; " + msg + "\n" + border
}
