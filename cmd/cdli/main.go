// cdli is a command-line client for the CDLI (Cuneiform Digital Library
// Initiative) catalogue: search, tablet metadata, inscriptions, bibliography,
// tabular exports, and tablet images.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/cdli"
	aglogger "github.com/samshapley/ancientgrok/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: cdli <command> [flags] [args]

Commands:
  search       Search the catalogue (free-text query, or field flags only)
  get          Fetch one entity's metadata (JSON, RDF, ...)
  inscription  Fetch a tablet's inscription (ATF, CoNLL, ...)
  biblio       Fetch an entity's bibliography (BibTeX, RIS, ...)
  export       Export an entity collection or specific artifacts (CSV, TSV, XLSX)
  image        Download a tablet photograph or line art
  entities     List an entity collection (periods, genres, proveniences, ...)

Run 'cdli <command> -h' for command flags.
`)
}

func run() error {
	if len(os.Args) < 2 {
		usage()
		return fmt.Errorf("missing command")
	}

	switch os.Args[1] {
	case "search":
		return cmdSearch(os.Args[2:])
	case "get":
		return cmdGet(os.Args[2:])
	case "inscription":
		return cmdInscription(os.Args[2:])
	case "biblio":
		return cmdBiblio(os.Args[2:])
	case "export":
		return cmdExport(os.Args[2:])
	case "image":
		return cmdImage(os.Args[2:])
	case "entities":
		return cmdEntities(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", os.Args[1])
	}
}

// newClient builds the API client. Query output goes to stdout, so logs stay
// on stderr at warn level unless routed to a file with -logfile.
func newClient(baseURL, logFile string) (*cdli.Client, error) {
	var logger zerolog.Logger
	if logFile != "" {
		var err error
		logger, err = aglogger.InitWithOptions(logFile, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	} else {
		logger = zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()
	}

	if baseURL == "" {
		baseURL = cdli.DefaultBaseURL
	}
	return cdli.NewClientWithBaseURL(baseURL, logger), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()
	return ctx, cancel
}

// writeOrPrint writes raw to outputPath when set, otherwise to stdout.
func writeOrPrint(raw []byte, outputPath string) error {
	if outputPath == "" {
		_, err := os.Stdout.Write(raw)
		if err == nil && len(raw) > 0 && raw[len(raw)-1] != '\n' {
			fmt.Println()
		}
		return err
	}
	if err := os.WriteFile(outputPath, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	fmt.Printf("Wrote %d bytes to %s\n", len(raw), outputPath)
	return nil
}

func cmdSearch(args []string) error {
	fs := flag.NewFlagSet("cdli search", flag.ExitOnError)
	baseURL := fs.String("base-url", "", "CDLI endpoint (default: production)")
	logFile := fs.String("logfile", "", "Path to log file")
	page := fs.Int("page", 1, "Result page")
	perPage := fs.Int("per-page", 25, "Results per page")
	asJSON := fs.Bool("json", false, "Print raw JSON result rows")
	designation := fs.String("designation", "", "Tablet designation (field search)")
	period := fs.String("period", "", "Historical period (filter or field search)")
	provenience := fs.String("provenience", "", "Find location (field search)")
	genre := fs.String("genre", "", "Text genre (filter or field search)")
	language := fs.String("language", "", "Language (filter or field search)")
	collection := fs.String("collection", "", "Holding collection (field search)")
	material := fs.String("material", "", "Material (field search)")
	inscription := fs.String("inscription", "", "Inscription content (field search)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*baseURL, *logFile)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	// A free-text query runs the full-text search with the field flags as
	// filters; without one the field flags drive the advanced search.
	var result *cdli.SearchResult
	query := strings.Join(fs.Args(), " ")
	if query != "" {
		result, err = client.Search(ctx, cdli.SearchQuery{
			Query: query,
			Filters: map[string]string{
				"period":   *period,
				"genre":    *genre,
				"language": *language,
			},
			Page:    *page,
			PerPage: *perPage,
		})
	} else {
		q := cdli.AdvancedQuery{
			Designation: *designation,
			Period:      *period,
			Provenience: *provenience,
			Genre:       *genre,
			Language:    *language,
			Collection:  *collection,
			Material:    *material,
			Inscription: *inscription,
			Page:        *page,
			PerPage:     *perPage,
		}
		if q == (cdli.AdvancedQuery{Page: *page, PerPage: *perPage}) {
			return fmt.Errorf("provide a query or at least one field flag")
		}
		result, err = client.AdvancedSearch(ctx, q)
	}
	if err != nil {
		return err
	}

	return printSearchResult(result, *asJSON)
}

func cmdGet(args []string) error {
	fs := flag.NewFlagSet("cdli get", flag.ExitOnError)
	baseURL := fs.String("base-url", "", "CDLI endpoint (default: production)")
	logFile := fs.String("logfile", "", "Path to log file")
	entityType := fs.String("type", string(cdli.EntityArtifact), "Entity type (artifacts, publications, ...)")
	format := fs.String("format", string(cdli.FormatJSON), "Output format (json, jsonld, rdf, turtle, ntriples)")
	output := fs.String("output", "", "Write payload to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: cdli get [flags] <id>")
	}

	client, err := newClient(*baseURL, *logFile)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	id := fs.Arg(0)
	if cdli.EntityType(*entityType) == cdli.EntityArtifact || cdli.EntityType(*entityType) == cdli.EntityTablet {
		id = cdli.NormalizePNumber(id)
	}

	raw, err := client.GetEntity(ctx, cdli.EntityType(*entityType), id, cdli.Format(*format))
	if err != nil {
		return err
	}
	return writeOrPrint(raw, *output)
}

func cmdInscription(args []string) error {
	fs := flag.NewFlagSet("cdli inscription", flag.ExitOnError)
	baseURL := fs.String("base-url", "", "CDLI endpoint (default: production)")
	logFile := fs.String("logfile", "", "Path to log file")
	format := fs.String("format", string(cdli.FormatATF), "Inscription format (atf, conll, conllu)")
	version := fs.Bool("version", false, "Treat the id as an inscription version id instead of a tablet id")
	output := fs.String("output", "", "Write inscription to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: cdli inscription [flags] <id>")
	}

	client, err := newClient(*baseURL, *logFile)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	var text string
	if *version {
		text, err = client.GetInscriptionVersion(ctx, fs.Arg(0), cdli.Format(*format))
	} else {
		text, err = client.GetInscription(ctx, fs.Arg(0), cdli.Format(*format))
	}
	if err != nil {
		return err
	}
	return writeOrPrint([]byte(text), *output)
}

func cmdBiblio(args []string) error {
	fs := flag.NewFlagSet("cdli biblio", flag.ExitOnError)
	baseURL := fs.String("base-url", "", "CDLI endpoint (default: production)")
	logFile := fs.String("logfile", "", "Path to log file")
	entityType := fs.String("type", string(cdli.EntityArtifact), "Entity type (artifacts, publications, ...)")
	format := fs.String("format", string(cdli.FormatBibTeX), "Bibliography format (bibtex, ris, csljson, formatted)")
	style := fs.String("style", "", "CSL style for formatted output (apa, chicago-author-date, mla, harvard1)")
	output := fs.String("output", "", "Write bibliography to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: cdli biblio [flags] <id>")
	}

	client, err := newClient(*baseURL, *logFile)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	id := fs.Arg(0)
	if cdli.EntityType(*entityType) == cdli.EntityArtifact || cdli.EntityType(*entityType) == cdli.EntityTablet {
		id = cdli.NormalizePNumber(id)
	}

	text, err := client.GetBibliography(ctx, cdli.EntityType(*entityType), id, cdli.Format(*format), *style)
	if err != nil {
		return err
	}
	return writeOrPrint([]byte(text), *output)
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("cdli export", flag.ExitOnError)
	baseURL := fs.String("base-url", "", "CDLI endpoint (default: production)")
	logFile := fs.String("logfile", "", "Path to log file")
	entityType := fs.String("type", string(cdli.EntityArtifact), "Entity type to export")
	format := fs.String("format", string(cdli.FormatCSV), "Tabular format (csv, tsv, xlsx)")
	ids := fs.String("ids", "", "Comma-separated artifact ids to export instead of a listing page")
	page := fs.Int("page", 1, "Listing page")
	perPage := fs.Int("per-page", 100, "Rows per page")
	output := fs.String("output", "", "Output file (default: derived from type and page)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*baseURL, *logFile)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	f := cdli.Format(*format)
	var raw []byte
	if *ids != "" {
		raw, err = client.ExportArtifacts(ctx, strings.Split(*ids, ","), f)
	} else {
		raw, err = client.Export(ctx, cdli.EntityType(*entityType), f, *page, *perPage)
	}
	if err != nil {
		return err
	}

	outputPath := *output
	if outputPath == "" && (f.Binary() || *ids == "") {
		outputPath = fmt.Sprintf("cdli_%s_p%d%s", *entityType, *page, f.Extension())
	}
	return writeOrPrint(raw, outputPath)
}

func cmdImage(args []string) error {
	fs := flag.NewFlagSet("cdli image", flag.ExitOnError)
	baseURL := fs.String("base-url", "", "CDLI endpoint (default: production)")
	logFile := fs.String("logfile", "", "Path to log file")
	lineart := fs.Bool("lineart", false, "Download the line art tracing instead of the photograph")
	thumbnail := fs.Bool("thumbnail", false, "Download the thumbnail instead of full resolution")
	urlOnly := fs.Bool("url", false, "Print the image URL without downloading")
	output := fs.String("output", "", "Output file (default: derived from the tablet id)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: cdli image [flags] <tablet-id>")
	}

	client, err := newClient(*baseURL, *logFile)
	if err != nil {
		return err
	}

	imageType := cdli.ImagePhoto
	if *lineart {
		imageType = cdli.ImageLineart
	}

	if *urlOnly {
		fmt.Println(client.ImageURL(fs.Arg(0), imageType, *thumbnail))
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	path, err := client.DownloadImage(ctx, fs.Arg(0), imageType, *thumbnail, *output)
	if err != nil {
		return err
	}
	fmt.Printf("Downloaded: %s\n", path)
	return nil
}

func cmdEntities(args []string) error {
	fs := flag.NewFlagSet("cdli entities", flag.ExitOnError)
	baseURL := fs.String("base-url", "", "CDLI endpoint (default: production)")
	logFile := fs.String("logfile", "", "Path to log file")
	page := fs.Int("page", 1, "Result page")
	perPage := fs.Int("per-page", 25, "Results per page")
	asJSON := fs.Bool("json", false, "Print raw JSON result rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: cdli entities [flags] <type> (periods, genres, proveniences, collections, ...)")
	}

	client, err := newClient(*baseURL, *logFile)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	result, err := client.ListEntities(ctx, cdli.EntityType(fs.Arg(0)), *page, *perPage)
	if err != nil {
		return err
	}
	return printSearchResult(result, *asJSON)
}

// printSearchResult renders one page of results: the common catalogue columns
// when present, falling back to compact JSON for unfamiliar row shapes.
func printSearchResult(result *cdli.SearchResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		for _, row := range result.Results {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	}

	if len(result.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results (page %d)\n", result.Total, result.Page)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, row := range result.Results {
		fmt.Fprintln(w, summarizeRow(row))
	}
	return w.Flush()
}

// summarizeRow picks identifying fields out of a catalogue row. Period comes
// back either as a string or as a nested {"period": ...} object.
func summarizeRow(row map[string]interface{}) string {
	id := stringField(row, "id")
	designation := stringField(row, "designation")

	period := stringField(row, "period")
	if nested, ok := row["period"].(map[string]interface{}); ok {
		period = stringField(nested, "period")
	}

	if id == "" && designation == "" {
		name := stringField(row, "name")
		if name == "" {
			raw, _ := json.Marshal(row)
			return string(raw)
		}
		return name
	}

	fields := []string{id, designation}
	if museum := stringField(row, "museum_no"); museum != "" {
		fields = append(fields, museum)
	}
	if period != "" {
		fields = append(fields, period)
	}
	return strings.Join(fields, "\t")
}

func stringField(row map[string]interface{}, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}
