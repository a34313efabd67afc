package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/GriffinCanCode/pagelens/internal/domain/export"
	"github.com/GriffinCanCode/pagelens/internal/domain/session"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/config"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/server"
	"github.com/GriffinCanCode/pagelens/internal/providers/filesystem"
	"github.com/GriffinCanCode/pagelens/internal/service"
)

// errUsage means the flag set already printed its usage.
var errUsage = errors.New("usage")

// refs collects repeated -xpath and -css flags in order.
type refs struct {
	list []ref
}

type ref struct{ xpath, css string }

type refFlag struct {
	r    *refs
	kind string
}

func (f refFlag) String() string { return "" }

func (f refFlag) Set(v string) error {
	if f.kind == "xpath" {
		f.r.list = append(f.r.list, ref{xpath: v})
	} else {
		f.r.list = append(f.r.list, ref{css: v})
	}
	return nil
}

// common holds the flags every tool command takes.
type common struct {
	url     string
	file    string
	live    bool
	envFile string
	verbose bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.url, "url", "", "Page URL")
	fs.StringVar(&c.file, "file", "", "Saved HTML file")
	fs.BoolVar(&c.live, "live", false, "Open -url in Chromium")
	fs.StringVar(&c.envFile, "env", ".env", "Environment file")
	fs.BoolVar(&c.verbose, "v", false, "Verbose logging")
}

func (c *common) source() (service.SourceRequest, error) {
	switch {
	case c.url != "" && c.file != "":
		return service.SourceRequest{}, errors.New("use either -url or -file")
	case c.file != "":
		return service.SourceRequest{Path: c.file}, nil
	case c.url != "" && c.live:
		return service.SourceRequest{Kind: session.SourceLive, URL: c.url}, nil
	case c.url != "":
		return service.SourceRequest{Kind: session.SourceURL, URL: c.url}, nil
	}
	return service.SourceRequest{}, errors.New("-url or -file is required")
}

// stack builds the service for one command. CLI logs go to stderr.
func (c *common) stack() (*server.Stack, error) {
	cfg, err := config.Load(c.envFile)
	if err != nil {
		return nil, err
	}
	if c.live {
		cfg.Browser.Enabled = true
	}
	lc := logging.DefaultConfig()
	lc.Development = true
	lc.OutputPaths = []string{"stderr"}
	lc.Level = "warn"
	if c.verbose {
		lc.Level = "debug"
	}
	logger, err := logging.New(lc)
	if err != nil {
		return nil, err
	}
	return server.NewStack(cfg, logger)
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fs.Usage()
		return errUsage
	}
	return nil
}

func inspect(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	var r refs
	fs.Var(refFlag{&r, "xpath"}, "xpath", "XPath of an element to capture (repeatable)")
	fs.Var(refFlag{&r, "css"}, "css", "CSS query of an element to capture (repeatable)")
	format := fs.String("format", "json", "Export format: json, yaml or toml")
	out := fs.String("out", "", "Write the export to this file instead of stdout")
	if err := parse(fs, args); err != nil {
		return err
	}

	src, err := c.source()
	if err != nil {
		return err
	}
	if len(r.list) == 0 {
		return errors.New("at least one -xpath or -css is required")
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		return err
	}

	st, err := c.stack()
	if err != nil {
		return err
	}
	defer st.Close()
	svc := st.Service

	sess, err := svc.CreateSession(ctx, src)
	if err != nil {
		return err
	}
	sess.Start()
	for _, ref := range r.list {
		if _, err := svc.Capture(sess.ID().String(), ref.xpath, ref.css); err != nil {
			return fmt.Errorf("capture %s%s: %w", ref.xpath, ref.css, err)
		}
	}
	sess.Stop()

	doc, err := svc.ExportDocument(sess.ID().String(), nil)
	if err != nil {
		return err
	}
	rendered, err := svc.Render(doc, f, export.None)
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = stdout.Write(rendered.Data)
		return err
	}
	if err := export.WriteFile(*out, rendered.Data); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "exported %d element(s) to %s\n", doc.Meta.TotalElements, *out)
	return nil
}

func pentestCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("pentest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	dir := fs.String("dir", "", "Run on every saved page under this directory")
	asJSON := fs.Bool("json", false, "Print reports as JSON")
	copyReport := fs.Bool("copy", false, "Copy the text report to the clipboard")
	if err := parse(fs, args); err != nil {
		return err
	}

	var targets []service.SourceRequest
	if *dir != "" {
		if c.url != "" || c.file != "" {
			return errors.New("-dir cannot be combined with -url or -file")
		}
		pages, err := filesystem.Discover(ctx, *dir, filesystem.Options{SniffContent: true})
		if err != nil {
			return err
		}
		if len(pages) == 0 {
			return fmt.Errorf("no html pages under %s", *dir)
		}
		for _, p := range pages {
			targets = append(targets, service.SourceRequest{Path: p.Path})
		}
	} else {
		src, err := c.source()
		if err != nil {
			return err
		}
		targets = append(targets, src)
	}

	st, err := c.stack()
	if err != nil {
		return err
	}
	defer st.Close()

	var failed int
	for _, src := range targets {
		res, err := st.Service.Pentest(ctx, service.Target{Source: src}, *copyReport)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			failed++
			fmt.Fprintf(stderr, "%s%s: %v\n", src.Path, src.URL, err)
			continue
		}
		if err := printReport(stdout, res, *asJSON); err != nil {
			return err
		}
		if res.CopyError != "" {
			fmt.Fprintf(stderr, "copy failed: %s\n", res.CopyError)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d page(s) failed", failed, len(targets))
	}
	return nil
}

func printReport(w io.Writer, res *service.PentestResult, asJSON bool) error {
	if !asJSON {
		_, err := fmt.Fprintln(w, res.Text)
		return err
	}
	data, err := export.EncodeValue(res.Report)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func sitedataCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("sitedata", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	clearData := fs.Bool("clear", false, "Clear cookies and web storage")
	reload := fs.Bool("reload", false, "Reload the page after clearing")
	if err := parse(fs, args); err != nil {
		return err
	}

	src, err := c.source()
	if err != nil {
		return err
	}
	st, err := c.stack()
	if err != nil {
		return err
	}
	defer st.Close()
	t := service.Target{Source: src}

	if *clearData {
		res, err := st.Service.ClearSiteData(ctx, t, *reload)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, res.Message)
		for _, e := range res.Errors {
			fmt.Fprintf(stderr, "  %s\n", e)
		}
		return nil
	}

	data, err := st.Service.InspectSiteData(ctx, t)
	if err != nil {
		return err
	}
	v := data.View
	fmt.Fprintf(stdout, "Site data for %s\n", v.Host)
	for _, sec := range []struct{ title, body string }{
		{"Cookies", v.Cookies},
		{"Local Storage", v.LocalStorage},
		{"Session Storage", v.SessionStorage},
		{"IndexedDB", v.IndexedDB},
		{"Cache Storage", v.CacheStorage},
	} {
		fmt.Fprintf(stdout, "\n%s:\n%s\n", sec.title, sec.body)
	}
	return nil
}

func serve(ctx context.Context, args []string, _, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", ".env", "Environment file")
	port := fs.String("port", "", "Server port (overrides PORT)")
	browser := fs.Bool("browser", false, "Enable the live browser source")
	if err := parse(fs, args); err != nil {
		return err
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *browser {
		cfg.Browser.Enabled = true
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return err
	}
	runErr := srv.Run(ctx)
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Close() }()
	select {
	case err := <-done:
		return errors.Join(runErr, err)
	case <-closeCtx.Done():
		return errors.Join(runErr, errors.New("timed out closing server"))
	}
}
