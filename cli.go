package mt

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Run dispatches CLI commands based on os.Args. Supports:
//
//	build    generate the static site from CMS content
//	serve    serve built static files locally
//	check    verify CMS connectivity, auth, and content types
//
// If no command is given, prints usage and exits.
func (a *App) Run() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if len(os.Args) < 2 {
		a.printUsage()
		os.Exit(1)
	}

	switch cmd := os.Args[1]; cmd {
	case "build":
		a.runBuild()
	case "serve":
		a.runServe()
	case "check":
		a.runCheck()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		a.printUsage()
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// build
// ---------------------------------------------------------------------------

func (a *App) runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	outDir := fs.String("out", "dist", "output directory for static HTML")
	status := fs.String("status", "published", "entry status filter")
	minifyHTML := fs.Bool("minify", true, "minify HTML/CSS/JS output")
	assets := fs.Bool("assets", true, "download entry images to output dir")
	batch := fs.Int("batch", 50, "entries fetched per API call")
	_ = fs.Parse(os.Args[2:])

	err := a.Build(context.Background(), BuildOptions{
		OutDir:         *outDir,
		Status:         *status,
		FetchLimit:     *batch,
		Minify:         *minifyHTML,
		DownloadAssets: *assets,
	})
	if err != nil {
		log.Error().Err(err).Msg("build failed")
		os.Exit(1)
	}

	pageCount := len(a.pages) + len(a.collections)
	log.Info().Int("pages", pageCount).Str("out", *outDir).Msg("build complete")
}

// ---------------------------------------------------------------------------
// serve
// ---------------------------------------------------------------------------

func (a *App) runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dir := fs.String("dir", "dist", "directory to serve")
	port := fs.String("port", envOrDefault("PORT", "8080"), "port to listen on")
	_ = fs.Parse(os.Args[2:])

	serveStatic(*dir, *port)
}

// staticHandler serves built files with clean-URL support: a bare path
// resolves to path/index.html, then path.html, before falling back to
// the plain file server.
func staticHandler(dir string) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filePath := dir + r.URL.Path
		if info, err := os.Stat(filePath); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		indexPath := filePath + "/index.html"
		if _, err := os.Stat(indexPath); err == nil {
			http.ServeFile(w, r, indexPath)
			return
		}
		htmlPath := filePath + ".html"
		if _, err := os.Stat(htmlPath); err == nil {
			http.ServeFile(w, r, htmlPath)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// serveStatic starts the local preview server.
func serveStatic(dir, port string) {
	handler := staticHandler(dir)
	addr := ":" + port
	log.Info().Str("dir", dir).Str("addr", "http://localhost"+addr).Msg("serving")
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Error().Err(err).Msg("serve failed")
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// check
// ---------------------------------------------------------------------------

// runCheck verifies the CMS connection end to end: authentication, the
// content type listing, and one-entry probes for every registered
// collection. Intended for deploy pipelines and operator debugging.
func (a *App) runCheck() {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	_ = fs.Parse(os.Args[2:])

	ctx := context.Background()
	client := a.client()

	if err := client.Authenticate(ctx); err != nil {
		log.Error().Err(err).Msg("authentication failed")
		os.Exit(1)
	}
	log.Info().Msg("authentication ok")

	types, err := client.ListContentTypes(ctx)
	if err != nil {
		log.Error().Err(err).Msg("listing content types failed")
		os.Exit(1)
	}
	for _, ct := range types {
		name, known := a.registry.NameFor(ct.ID)
		ev := log.Info().Str("id", ct.ID).Str("name", ct.Name).Str("label", ct.Label)
		if known {
			ev = ev.Str("registered", name)
		}
		ev.Msg("content type")
	}

	failed := false
	for _, coll := range a.collections {
		id, err := a.registry.Lookup(ctx, client, coll.name)
		if err != nil {
			log.Warn().Err(err).Str("collection", coll.name).Msg("content type not resolvable")
			failed = true
			continue
		}

		list, err := client.ListEntries(ctx, id, ListOptions{Limit: 1, Status: "published"})
		if err != nil {
			log.Warn().Err(err).Str("collection", coll.name).Msg("probe failed")
			failed = true
			continue
		}
		log.Info().Str("collection", coll.name).Str("contentTypeID", id).
			Int("totalResults", list.TotalResults).Msg("probe ok")
	}

	if failed {
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// usage
// ---------------------------------------------------------------------------

func (a *App) printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: <program> <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  build    Build the static site from CMS content")
	fmt.Fprintln(os.Stderr, "  serve    Serve static files for local preview")
	fmt.Fprintln(os.Stderr, "  check    Verify CMS auth and content types")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Run '<program> <command> -h' for command-specific flags.")
}
