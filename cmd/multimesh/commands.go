package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"multimesh/internal/domain"
	"multimesh/internal/handler"
	"multimesh/internal/hub"
	"multimesh/internal/loader"
	"multimesh/internal/service"
	"multimesh/internal/watcher"

	"github.com/dustin/go-humanize"
)

// open returns the named file, or stdin for "-"
func (a *app) open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(a.stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// sourceFormat returns explicit, or the format implied by path
func (a *app) sourceFormat(explicit, path string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if path == "-" {
		return "", errors.New("-from is required when reading stdin")
	}
	return a.registry.FormatForPath(path)
}

func runConvert(ctx context.Context, a *app, args []string) error {
	fs := a.newFlags("convert", "<source|-> [target]")
	from := fs.String("from", "", "source format (default: from the source extension)")
	to := fs.String("to", "", "target format (default: from the target extension, then conversion.default_format)")
	force := fs.Bool("force", false, "overwrite an existing target")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return usageError(fs, "convert takes a source and an optional target")
	}
	source := fs.Arg(0)
	svc := a.service()

	if fs.NArg() == 1 {
		format := *to
		if format == "" {
			format = a.cfg.Conversion.DefaultFormat
		}
		if format == "" {
			return usageError(fs, "-to is required when writing to stdout")
		}
		fromFormat, err := a.sourceFormat(*from, source)
		if err != nil {
			return err
		}
		in, err := a.open(source)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = svc.Convert(ctx, fromFormat, in, format, a.stdout)
		return err
	}

	target := fs.Arg(1)
	toFormat := *to
	if toFormat == "" && filepath.Ext(target) == "" {
		toFormat = a.cfg.Conversion.DefaultFormat
	}
	result, err := svc.ConvertFile(ctx, service.ConvertRequest{
		Source:    source,
		Target:    target,
		From:      *from,
		To:        toFormat,
		Overwrite: *force || a.cfg.Conversion.Overwrite,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s -> %s: %s groups, %s entities, %s in %s\n",
		result.SourcePath, result.TargetPath,
		humanize.Comma(int64(result.Groups)), humanize.Comma(int64(result.Entities)),
		humanize.Bytes(uint64(result.BytesOut)), result.Duration.Round(time.Millisecond))
	return nil
}

func runInfo(ctx context.Context, a *app, args []string) error {
	fs := a.newFlags("info", "<file|->")
	from := fs.String("from", "", "source format (default: from the file extension)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError(fs, "info takes exactly one file")
	}

	format, err := a.sourceFormat(*from, fs.Arg(0))
	if err != nil {
		return err
	}
	in, err := a.open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer in.Close()
	return a.service().Inspect(ctx, format, in, a.stdout)
}

func runFormats(_ context.Context, a *app, args []string) error {
	fs := a.newFlags("formats", "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tEXTENSIONS\tREAD\tWRITE")
	for _, e := range a.registry.Formats() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Format, strings.Join(e.Extensions, " "),
			yesNo(e.Deserializer != nil), yesNo(e.Serializer != nil))
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func runImport(ctx context.Context, a *app, args []string) error {
	fs := a.newFlags("import", "<file|->...")
	from := fs.String("from", "", "source format (default: from the file extension)")
	name := fs.String("name", "", "catalog name (default: the file name)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usageError(fs, "import needs at least one file")
	}
	svc, err := a.catalog()
	if err != nil {
		return err
	}

	var failed int
	for _, path := range fs.Args() {
		var rec *importedMesh
		if path == "-" {
			rec, err = importStdin(ctx, a, svc, *from, *name)
		} else {
			rec, err = importFile(ctx, svc, path, *from, *name)
		}
		if err != nil {
			fmt.Fprintf(a.stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		if rec.Existed {
			fmt.Fprintf(a.stdout, "%s\t%s\talready imported\n", rec.Record.ID, rec.Record.Name)
			continue
		}
		fmt.Fprintf(a.stdout, "%s\t%s\t%s entities\n", rec.Record.ID, rec.Record.Name, humanize.Comma(int64(rec.Record.EntityCount)))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d imports failed", failed, fs.NArg())
	}
	return nil
}

type importedMesh struct {
	Record  *domain.MeshRecord
	Existed bool
}

func importFile(ctx context.Context, svc *service.MeshService, path, from, name string) (*importedMesh, error) {
	rec, existed, err := svc.ImportFile(ctx, path, from, name)
	if err != nil {
		return nil, err
	}
	return &importedMesh{Record: rec, Existed: existed}, nil
}

func importStdin(ctx context.Context, a *app, svc *service.MeshService, from, name string) (*importedMesh, error) {
	if from == "" {
		return nil, errors.New("-from is required when reading stdin")
	}
	data, err := io.ReadAll(a.stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	rec, existed, err := svc.Import(ctx, name, from, data)
	if err != nil {
		return nil, err
	}
	return &importedMesh{Record: rec, Existed: existed}, nil
}

func runExport(ctx context.Context, a *app, args []string) error {
	fs := a.newFlags("export", "<id>")
	to := fs.String("to", "", "output format (default: from the -o extension, then conversion.default_format)")
	out := fs.String("o", "", "output file (default: stdout)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError(fs, "export takes exactly one mesh id")
	}

	format := *to
	if format == "" && *out != "" {
		if f, err := a.registry.FormatForPath(*out); err == nil {
			format = f
		}
	}
	if format == "" {
		format = a.cfg.Conversion.DefaultFormat
	}
	if format == "" {
		return usageError(fs, "cannot tell the output format, use -to")
	}

	svc, err := a.catalog()
	if err != nil {
		return err
	}
	if *out == "" {
		return svc.Export(ctx, fs.Arg(0), format, a.stdout)
	}

	var buf bytes.Buffer
	if err := svc.Export(ctx, fs.Arg(0), format, &buf); err != nil {
		return err
	}
	if err := os.WriteFile(*out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *out, err)
	}
	return nil
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := a.newFlags("list", "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	svc, err := a.catalog()
	if err != nil {
		return err
	}
	records, err := svc.List(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.stdout, "The catalog is empty.")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tFORMAT\tDIM\tGROUPS\tENTITIES\tIMPORTED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.Name, r.SourceFormat, r.Dimension, r.GroupCount,
			humanize.Comma(int64(r.EntityCount)), humanize.Time(r.CreatedAt))
	}
	return tw.Flush()
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := a.newFlags("delete", "<id>...")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usageError(fs, "delete needs at least one mesh id")
	}
	svc, err := a.catalog()
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range fs.Args() {
		if err := svc.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func runBatch(ctx context.Context, a *app, args []string) error {
	fs := a.newFlags("batch", "<manifest.yaml>")
	force := fs.Bool("force", false, "overwrite existing targets")
	workers := fs.Int("workers", 0, "concurrent conversions (default: batch.workers)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError(fs, "batch takes exactly one manifest")
	}

	manifest, err := loader.LoadManifest(fs.Arg(0))
	if err != nil {
		return err
	}
	if *force {
		manifest.Overwrite = true
	}

	results := a.service(service.WithWorkers(*workers)).RunBatch(ctx, manifest)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(a.stdout, "FAIL  %s: %v\n", r.Job.Source, r.Err)
			continue
		}
		fmt.Fprintf(a.stdout, "ok    %s -> %s\n", r.Job.Source, r.Job.Target)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(results))
	}
	return nil
}

func runWatch(ctx context.Context, a *app, args []string) error {
	fs := a.newFlags("watch", "<file>...")
	to := fs.String("to", "", "target format (default: conversion.default_format)")
	outDir := fs.String("out", "", "output directory (default: next to each source)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usageError(fs, "watch needs at least one file")
	}
	format := *to
	if format == "" {
		format = a.cfg.Conversion.DefaultFormat
	}
	if format == "" {
		return usageError(fs, "-to is required")
	}
	if _, err := a.registry.Serializer(format); err != nil {
		return err
	}

	svc := a.service()
	targets := make(map[string]string, fs.NArg())
	for _, path := range fs.Args() {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		target := watchTarget(abs, *outDir, extensionFor(a.registry, format))
		if target == abs {
			return fmt.Errorf("%s would overwrite itself", path)
		}
		targets[abs] = target
	}

	convert := func(source string) {
		_, err := svc.ConvertFile(ctx, service.ConvertRequest{
			Source:    source,
			Target:    targets[source],
			To:        format,
			Overwrite: true,
		})
		if err != nil {
			a.logger.Error("conversion failed", "source", source, "error", err)
		}
	}
	for source := range targets {
		convert(source)
	}

	paths := make([]string, 0, len(targets))
	for source := range targets {
		paths = append(paths, source)
	}
	w := watcher.New(paths, convert).
		WithDebounce(a.cfg.Watch.Debounce.Duration()).
		WithLogger(a.logger)
	if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchTarget places the converted copy of source in outDir, or next to
// source when outDir is empty.
func watchTarget(source, outDir, ext string) string {
	dir := filepath.Dir(source)
	if outDir != "" {
		dir = outDir
	}
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(dir, base+ext)
}

func runServe(ctx context.Context, a *app, args []string) error {
	fs := a.newFlags("serve", "")
	addr := fs.String("addr", a.cfg.Server.Addr, "HTTP listen address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	eventBus := service.NewEventBus()
	sseHub := hub.New(a.logger)
	go sseHub.Run(ctx)

	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	go hub.Relay(ctx, sseHub, eventChan)

	svc, err := a.catalog(service.WithEventBus(eventBus))
	if err != nil {
		return err
	}

	meshHandler := handler.NewMeshHandler(svc, a.logger)
	meshHandler.SetMaxBodyBytes(a.cfg.Server.MaxUploadBytes)

	mux := http.NewServeMux()
	meshHandler.Register(mux)
	mux.Handle("GET /api/events", sseHub)

	server := &http.Server{
		Addr: *addr,
		Handler: handler.Chain(mux,
			handler.Recover(a.logger),
			handler.CORS,
			handler.Logger(a.logger),
		),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", *addr, "database", a.cfg.Database.Path)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}
