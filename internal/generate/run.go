// Package generate runs the pipeline over a set of feature files: one
// catalog and one template per run, one isolated pass per file.
package generate

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chriserin/ftgen/internal/catalog"
	"github.com/chriserin/ftgen/internal/crif"
	"github.com/chriserin/ftgen/internal/match"
	"github.com/chriserin/ftgen/internal/parser"
	"github.com/chriserin/ftgen/internal/render"
)

const FeatureExt = ".feature"

type Options struct {
	// Features are feature files or directories searched recursively.
	Features  []string
	StepRoots []string
	// Extractors defaults to every known step source.
	Extractors []catalog.Extractor

	// Template is an explicit template file. Otherwise TemplateDir must
	// hold exactly one *.mustache file.
	Template    string
	TemplateDir string

	// OutputDir receives generated files; empty writes next to each
	// feature file.
	OutputDir string
	Package   string
	Parser    parser.Parser
	Parallel  int
	Format    bool
	DebugCRIF bool

	Log logrus.FieldLogger
}

type FileResult struct {
	Feature string
	Output  string
	// CRIF is the snapshot path when DebugCRIF is set.
	CRIF      string
	Checksum  string
	Unchanged bool
	Steps     int
	Stubs     []crif.Stub
	Err       error
}

type Report struct {
	Template    string
	Definitions int
	Files       []FileResult
	Diagnostics []Diagnostic
}

// Failed counts files that produced no output.
func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

func (r *Report) Warnings() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// Run generates one output file per feature. Only a template that cannot
// be resolved, an unreadable step root or cancellation stop the run;
// every other failure is reported against its file.
func Run(ctx context.Context, opts Options) (*Report, error) {
	log := opts.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	report := &Report{}

	tmpl, err := ResolveTemplate(opts.Template, opts.TemplateDir)
	if err != nil {
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			Code:     CodeTemplate,
			Severity: SeverityError,
			Message:  err.Error(),
		})
		return report, err
	}
	report.Template = tmpl.Name
	log.WithField("template", tmpl.Name).Debug("template resolved")

	extractors := opts.Extractors
	if len(extractors) == 0 {
		if extractors, err = catalog.Extractors(nil); err != nil {
			return report, err
		}
	}
	cat, err := catalog.Build(ctx, log, opts.StepRoots, extractors...)
	if err != nil {
		return report, fmt.Errorf("building step catalog: %w", err)
	}
	report.Definitions = cat.Len()
	log.WithField("definitions", cat.Len()).Info("step catalog built")

	features, err := FindFeatures(opts.Features)
	if err != nil {
		return report, err
	}

	p := opts.Parser
	if p == nil {
		p = parser.Native{}
	}
	g := &generator{
		opts:    opts,
		log:     log,
		parser:  p,
		matcher: match.New(cat),
		tmpl:    tmpl,
	}

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}
	outputs := g.outputs(features)
	results := make([]*FileResult, len(features))
	var eg errgroup.Group
	eg.SetLimit(parallel)
	for i, path := range features {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			results[i] = g.file(ctx, path, outputs[i])
			return nil
		})
	}
	eg.Wait()

	for _, res := range results {
		if res == nil {
			continue
		}
		report.Files = append(report.Files, *res)
		report.Diagnostics = append(report.Diagnostics, diagnose(res)...)
	}
	return report, ctx.Err()
}

func diagnose(res *FileResult) []Diagnostic {
	if res.Err != nil {
		code := CodeGeneration
		msg := res.Err.Error()
		var fe *FileError
		if errors.As(res.Err, &fe) {
			code = fe.Code()
			msg = fe.Stage + ": " + fe.Err.Error()
		}
		return []Diagnostic{{Code: code, Severity: SeverityError, File: res.Feature, Message: msg}}
	}
	if n := len(res.Stubs); n > 0 {
		noun := "steps"
		if n == 1 {
			noun = "step"
		}
		return []Diagnostic{{
			Code:     CodeUnimplemented,
			Severity: SeverityWarning,
			File:     res.Feature,
			Message:  fmt.Sprintf("%d unimplemented %s", n, noun),
		}}
	}
	return nil
}

type generator struct {
	opts    Options
	log     logrus.FieldLogger
	parser  parser.Parser
	matcher *match.Matcher
	tmpl    *render.Template
}

// output is where a feature's generated file goes. dup names an earlier
// feature that claimed the same path.
type output struct {
	path string
	dup  string
}

func (g *generator) outputs(features []string) []output {
	ext := g.tmpl.OutputExt()
	claimed := make(map[string]string)
	out := make([]output, len(features))
	for i, path := range features {
		dir := g.opts.OutputDir
		if dir == "" {
			dir = filepath.Dir(path)
		}
		name := strings.TrimSuffix(filepath.Base(path), FeatureExt)
		if ext == ".go" {
			name += "_test"
		}
		target := filepath.Join(dir, name+ext)
		if prev, ok := claimed[target]; ok {
			out[i] = output{path: target, dup: prev}
			continue
		}
		claimed[target] = path
		out[i] = output{path: target}
	}
	return out
}

// file runs every stage for one feature. A panic in any stage is
// recovered into a FileError for the stage that was running.
func (g *generator) file(ctx context.Context, path string, out output) (res *FileResult) {
	res = &FileResult{Feature: path, Output: out.path}
	log := g.log.WithField("file", path)
	stage := StageRead
	fail := func(err error) *FileResult {
		res.Err = &FileError{Path: path, Stage: stage, Err: err}
		log.WithField("stage", stage).Debug(err)
		return res
	}
	defer func() {
		if r := recover(); r != nil {
			res.CRIF, res.Checksum, res.Stubs, res.Unchanged = "", "", nil, false
			fail(&PanicError{Value: r})
		}
	}()

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if out.dup != "" {
		stage = StageWrite
		return fail(fmt.Errorf("output %s is already generated from %s", out.path, out.dup))
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}
	stage = StageParse
	doc, err := g.parser.ParseDocument(path, src)
	if err != nil {
		return fail(err)
	}
	stage = StageConvert
	file, err := crif.Convert(doc, g.matcher, crif.Options{
		SourceFile: filepath.ToSlash(path),
		Package:    g.opts.Package,
	})
	if err != nil {
		return fail(err)
	}
	stage = StageRender
	text, err := g.tmpl.Render(file)
	if err != nil {
		return fail(err)
	}
	if g.opts.Format && filepath.Ext(out.path) == ".go" {
		stage = StageFormat
		if text, err = render.FormatGo(text); err != nil {
			return fail(err)
		}
	}

	// Snapshot before output: a file that fails here leaves no output.
	stage = StageWrite
	if err := os.MkdirAll(filepath.Dir(out.path), 0o755); err != nil {
		return fail(err)
	}
	if g.opts.DebugCRIF {
		res.CRIF = snapshotPath(out.path)
		if err := WriteSnapshot(res.CRIF, file); err != nil {
			return fail(err)
		}
	}
	if res.Unchanged, err = writeIfChanged(out.path, []byte(text)); err != nil {
		return fail(err)
	}

	sum := sha256.Sum256([]byte(text))
	res.Checksum = hex.EncodeToString(sum[:])
	res.Steps, _ = file.StepCount()
	res.Stubs = file.Unimplemented
	log.WithFields(logrus.Fields{
		"output": out.path,
		"steps":  res.Steps,
		"stubs":  len(res.Stubs),
	}).Debug("generated")
	return res
}

// writeIfChanged leaves an identical file untouched.
func writeIfChanged(path string, data []byte) (unchanged bool, err error) {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		return true, nil
	}
	return false, os.WriteFile(path, data, 0o644)
}

// ResolveTemplate picks the run's single template.
func ResolveTemplate(path, dir string) (*render.Template, error) {
	if path != "" {
		tmpl, err := render.Load(path)
		if err != nil {
			return nil, &TemplateError{Path: path, Err: err}
		}
		return tmpl, nil
	}
	if dir == "" {
		return nil, &TemplateError{Err: ErrNoTemplate}
	}
	found, err := filepath.Glob(filepath.Join(dir, "*.mustache"))
	if err != nil {
		return nil, &TemplateError{Path: dir, Err: err}
	}
	sort.Strings(found)
	if len(found) != 1 {
		return nil, &TemplateError{Path: dir, Found: found}
	}
	tmpl, err := render.Load(found[0])
	if err != nil {
		return nil, &TemplateError{Path: found[0], Err: err}
	}
	return tmpl, nil
}

// FindFeatures expands paths into a sorted, duplicate-free list of feature
// files. Hidden directories are skipped.
func FindFeatures(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("feature path: %w", err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(p) == FeatureExt {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}
