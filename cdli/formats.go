package cdli

// Format selects the representation an endpoint returns. CDLI serves most
// resources in multiple formats negotiated through the Accept header.
type Format string

const (
	// Metadata formats.
	FormatJSON     Format = "json"
	FormatJSONLD   Format = "jsonld"
	FormatRDF      Format = "rdf"
	FormatTurtle   Format = "turtle"
	FormatNTriples Format = "ntriples"

	// Inscription formats.
	FormatATF    Format = "atf"
	FormatCoNLL  Format = "conll"
	FormatCoNLLU Format = "conllu"

	// Bibliography formats.
	FormatBibTeX   Format = "bibtex"
	FormatRIS      Format = "ris"
	FormatCSLJSON  Format = "csljson"
	FormatCitation Format = "formatted"

	// Tabular formats.
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// formatMIME maps formats to the Accept header values CDLI negotiates on.
var formatMIME = map[Format]string{
	FormatJSON:     "application/json",
	FormatJSONLD:   "application/ld+json",
	FormatRDF:      "application/rdf+xml",
	FormatTurtle:   "text/turtle",
	FormatNTriples: "application/n-triples",
	FormatATF:      "text/x-c-atf",
	FormatCoNLL:    "text/x-cdli-conll",
	FormatCoNLLU:   "text/x-conll-u",
	FormatBibTeX:   "application/x-bibtex",
	FormatRIS:      "application/x-research-info-systems",
	FormatCSLJSON:  "application/vnd.citationstyles.csl+json",
	FormatCitation: "text/x-bibliography",
	FormatCSV:      "text/csv",
	FormatTSV:      "text/tab-separated-values",
	FormatXLSX:     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// formatExtension maps formats to file extensions for downloads.
var formatExtension = map[Format]string{
	FormatJSON:     ".json",
	FormatJSONLD:   ".jsonld",
	FormatRDF:      ".rdf",
	FormatTurtle:   ".ttl",
	FormatNTriples: ".nt",
	FormatATF:      ".atf",
	FormatCoNLL:    ".conll",
	FormatCoNLLU:   ".conllu",
	FormatBibTeX:   ".bib",
	FormatRIS:      ".ris",
	FormatCSLJSON:  ".json",
	FormatCitation: ".txt",
	FormatCSV:      ".csv",
	FormatTSV:      ".tsv",
	FormatXLSX:     ".xlsx",
}

// MIME returns the Accept header value for the format. Unknown formats fall
// back to JSON.
func (f Format) MIME() string {
	if mime, ok := formatMIME[f]; ok {
		return mime
	}
	return "application/json"
}

// Extension returns the file extension for the format, including the dot.
func (f Format) Extension() string {
	if ext, ok := formatExtension[f]; ok {
		return ext
	}
	return ".json"
}

// Binary reports whether the format's payload is not valid UTF-8 text.
func (f Format) Binary() bool {
	return f == FormatXLSX
}

// EntityType names a CDLI resource collection. The value is the URL route
// segment.
type EntityType string

const (
	EntityTablet       EntityType = "cdli-tablet"
	EntityArtifact     EntityType = "artifacts"
	EntityPublication  EntityType = "publications"
	EntityInscription  EntityType = "inscriptions"
	EntityCollection   EntityType = "collections"
	EntityArchive      EntityType = "archives"
	EntityPeriod       EntityType = "periods"
	EntityGenre        EntityType = "genres"
	EntityMaterial     EntityType = "materials"
	EntityObjectType   EntityType = "object-types"
	EntityLanguage     EntityType = "languages"
	EntityScript       EntityType = "scripts"
	EntityProvenience  EntityType = "proveniences"
	EntityRegion       EntityType = "regions"
	EntityPerson       EntityType = "persons"
	EntityAuthor       EntityType = "authors"
	EntityLocation     EntityType = "locations"
	EntityDynasty      EntityType = "dynasties"
	EntityRuler        EntityType = "rulers"
	EntityJournal      EntityType = "journals"
	EntityAbbreviation EntityType = "abbreviations"
	EntityPlace        EntityType = "places"
)

// ImageType selects between tablet photographs and line-art tracings.
type ImageType string

const (
	ImagePhoto   ImageType = "photo"
	ImageLineart ImageType = "lineart"
)
