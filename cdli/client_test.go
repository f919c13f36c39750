package cdli

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClientWithBaseURL(server.URL, zerolog.Nop())
	client.retryInterval = time.Millisecond
	return client
}

func TestGetArtifactNormalizesAndNegotiates(t *testing.T) {
	var gotPath, gotAccept string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 1, "designation": "CDLI Lexical 000001"}`))
	})

	artifact, err := client.GetArtifact(context.Background(), "000001")
	if err != nil {
		t.Fatalf("GetArtifact failed: %v", err)
	}
	if gotPath != "/artifacts/P000001" {
		t.Errorf("Expected path /artifacts/P000001, got %s", gotPath)
	}
	if gotAccept != "application/json" {
		t.Errorf("Expected JSON accept header, got %s", gotAccept)
	}
	if artifact["designation"] != "CDLI Lexical 000001" {
		t.Errorf("Unexpected designation: %v", artifact["designation"])
	}
}

func TestGetInscriptionATF(t *testing.T) {
	atf := "&P000001 = CDLI Lexical 000001\n1. lugal\n"
	var gotAccept string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(atf))
	})

	text, err := client.GetInscription(context.Background(), "P000001", FormatATF)
	if err != nil {
		t.Fatalf("GetInscription failed: %v", err)
	}
	if gotAccept != "text/x-c-atf" {
		t.Errorf("Expected ATF accept header, got %s", gotAccept)
	}
	if text != atf {
		t.Errorf("Unexpected inscription text: %q", text)
	}
}

func TestNotFound(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := client.GetArtifact(context.Background(), "P999999")
	if err == nil {
		t.Fatal("Expected an error for 404")
	}
	if !IsNotFound(err) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRetriesOnServerError(t *testing.T) {
	calls := 0
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id": 7}`))
	})

	_, err := client.GetArtifact(context.Background(), "P000007")
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestClientErrorIsNotRetried(t *testing.T) {
	calls := 0
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	_, err := client.GetArtifact(context.Background(), "P000001")
	if err == nil {
		t.Fatal("Expected an error for 400")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", apiErr.StatusCode)
	}
	if calls != 1 {
		t.Errorf("Expected 1 attempt, got %d", calls)
	}
}

func TestExportArtifactsJoinsIDs(t *testing.T) {
	var gotPath string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`[]`))
	})

	_, err := client.ExportArtifacts(context.Background(), []string{"P000001", "2", "S000003"}, FormatJSON)
	if err != nil {
		t.Fatalf("ExportArtifacts failed: %v", err)
	}
	if gotPath != "/P000001,P2,S000003" {
		t.Errorf("Unexpected path: %s", gotPath)
	}
}

func TestExportArtifactsRequiresIDs(t *testing.T) {
	client := NewClientWithBaseURL("http://unused", zerolog.Nop())
	if _, err := client.ExportArtifacts(context.Background(), nil, FormatJSON); err == nil {
		t.Fatal("Expected an error for empty id list")
	}
}

func TestSearchParams(t *testing.T) {
	var gotQuery map[string][]string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`[{"id": 1}, {"id": 2}]`))
	})

	result, err := client.Search(context.Background(), SearchQuery{
		Query:   "lugal",
		Filters: map[string]string{"period": "Ur III", "genre": ""},
		Page:    2,
		PerPage: 10,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if got := gotQuery["q"]; len(got) != 1 || got[0] != "lugal" {
		t.Errorf("Expected q=lugal, got %v", got)
	}
	if got := gotQuery["page"]; len(got) != 1 || got[0] != "2" {
		t.Errorf("Expected page=2, got %v", got)
	}
	if got := gotQuery["per_page"]; len(got) != 1 || got[0] != "10" {
		t.Errorf("Expected per_page=10, got %v", got)
	}
	if got := gotQuery["period"]; len(got) != 1 || got[0] != "Ur III" {
		t.Errorf("Expected period filter, got %v", got)
	}
	if _, present := gotQuery["genre"]; present {
		t.Error("Empty filter should be omitted")
	}

	if result.Total != 2 || len(result.Results) != 2 {
		t.Errorf("Expected 2 results, got %+v", result)
	}
	if result.Page != 2 {
		t.Errorf("Expected page 2, got %d", result.Page)
	}
}

func TestSearchEnvelopeShape(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total": 140, "page": 3, "per_page": 25, "results": [{"id": 9}]}`))
	})

	result, err := client.Search(context.Background(), SearchQuery{Query: "barley"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Total != 140 {
		t.Errorf("Expected total 140, got %d", result.Total)
	}
	if result.Page != 3 {
		t.Errorf("Expected page 3, got %d", result.Page)
	}
	if len(result.Results) != 1 {
		t.Errorf("Expected 1 result on page, got %d", len(result.Results))
	}
}

func TestSearchDataEnvelope(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"id": 1}, {"id": 2}, {"id": 3}]}`))
	})

	result, err := client.Search(context.Background(), SearchQuery{Query: "sheep"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Total != 3 || len(result.Results) != 3 {
		t.Errorf("Expected 3 results from data envelope, got %+v", result)
	}
}

func TestAdvancedSearchOmitsEmptyFields(t *testing.T) {
	var gotQuery map[string][]string
	var gotPath string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Write([]byte(`[]`))
	})

	_, err := client.AdvancedSearch(context.Background(), AdvancedQuery{
		Period:   "Old Babylonian",
		Language: "Sumerian",
	})
	if err != nil {
		t.Fatalf("AdvancedSearch failed: %v", err)
	}
	if gotPath != "/search/advanced" {
		t.Errorf("Unexpected path: %s", gotPath)
	}
	if got := gotQuery["period"]; len(got) != 1 || got[0] != "Old Babylonian" {
		t.Errorf("Expected period param, got %v", got)
	}
	if got := gotQuery["language"]; len(got) != 1 || got[0] != "Sumerian" {
		t.Errorf("Expected language param, got %v", got)
	}
	for _, absent := range []string{"designation", "genre", "collection", "material", "inscription", "provenience"} {
		if _, present := gotQuery[absent]; present {
			t.Errorf("Expected %s to be omitted", absent)
		}
	}
}

func TestListEntitiesDefaultPaging(t *testing.T) {
	var gotQuery map[string][]string
	var gotPath string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Write([]byte(`[{"period": "Ur III"}]`))
	})

	result, err := client.ListEntities(context.Background(), EntityPeriod, 0, 0)
	if err != nil {
		t.Fatalf("ListEntities failed: %v", err)
	}
	if gotPath != "/periods" {
		t.Errorf("Unexpected path: %s", gotPath)
	}
	if got := gotQuery["page"]; len(got) != 1 || got[0] != "1" {
		t.Errorf("Expected default page 1, got %v", got)
	}
	if got := gotQuery["per_page"]; len(got) != 1 || got[0] != "25" {
		t.Errorf("Expected default per_page 25, got %v", got)
	}
	if len(result.Results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(result.Results))
	}
}

func TestImageURL(t *testing.T) {
	client := NewClientWithBaseURL("https://cdli.example", zerolog.Nop())

	tests := []struct {
		name      string
		id        string
		imageType ImageType
		thumbnail bool
		want      string
	}{
		{"photo", "P000001", ImagePhoto, false, "https://cdli.example/dl/photo/P000001.jpg"},
		{"photo thumbnail", "P000001", ImagePhoto, true, "https://cdli.example/dl/tn_photo/P000001.jpg"},
		{"lineart", "P000001", ImageLineart, false, "https://cdli.example/dl/lineart/P000001_l.jpg"},
		{"lineart thumbnail", "P000001", ImageLineart, true, "https://cdli.example/dl/tn_lineart/P000001_l.jpg"},
		{"bare number gets prefix", "123456", ImagePhoto, false, "https://cdli.example/dl/photo/P123456.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := client.ImageURL(tt.id, tt.imageType, tt.thumbnail)
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestDownloadImage(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	var gotPath string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write(payload)
	})

	outputPath := filepath.Join(t.TempDir(), "images", "P000001.jpg")
	saved, err := client.DownloadImage(context.Background(), "P000001", ImagePhoto, false, outputPath)
	if err != nil {
		t.Fatalf("DownloadImage failed: %v", err)
	}
	if gotPath != "/dl/photo/P000001.jpg" {
		t.Errorf("Unexpected path: %s", gotPath)
	}
	if saved != outputPath {
		t.Errorf("Expected path %s, got %s", outputPath, saved)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read downloaded file: %v", err)
	}
	if len(data) != len(payload) {
		t.Errorf("Expected %d bytes, got %d", len(payload), len(data))
	}
}

func TestFormatMIMEFallback(t *testing.T) {
	if got := Format("unknown").MIME(); got != "application/json" {
		t.Errorf("Expected JSON fallback, got %s", got)
	}
	if got := FormatXLSX.MIME(); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Unexpected XLSX MIME: %s", got)
	}
	if !FormatXLSX.Binary() {
		t.Error("XLSX should be binary")
	}
	if FormatCSV.Binary() {
		t.Error("CSV should not be binary")
	}
}

func TestGetBibliographyStyleParam(t *testing.T) {
	var gotQuery map[string][]string
	var gotAccept string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte("Englund, R. 1998. Texts from the Late Uruk Period."))
	})

	_, err := client.GetBibliography(context.Background(), EntityArtifact, "P000001", FormatCitation, "apa")
	if err != nil {
		t.Fatalf("GetBibliography failed: %v", err)
	}
	if gotAccept != "text/x-bibliography" {
		t.Errorf("Expected citation accept header, got %s", gotAccept)
	}
	if got := gotQuery["style"]; len(got) != 1 || got[0] != "apa" {
		t.Errorf("Expected style=apa, got %v", got)
	}

	// Style only applies to formatted citations.
	_, err = client.GetBibliography(context.Background(), EntityArtifact, "P000001", FormatBibTeX, "apa")
	if err != nil {
		t.Fatalf("GetBibliography failed: %v", err)
	}
	if _, present := gotQuery["style"]; present {
		t.Error("Expected style to be omitted for bibtex")
	}
}
