package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for album documents.
//
// The mapping is designed with these priorities:
//  1. Fast full-text search on artist and title
//  2. Exact keyword matching for status and genre filters
//  3. Numeric range queries for year
//
// Artist and title use the simple analyzer rather than a language analyzer:
// album titles are proper names where stemming hurts more than it helps
// ("Killing" stemmed to "kill" matches far too much).
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = simple.Name

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields (full-text searchable) ---

	// Artist - primary search target
	artistFieldMapping := bleve.NewTextFieldMapping()
	artistFieldMapping.Analyzer = simple.Name
	artistFieldMapping.Store = true
	artistFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("artist", artistFieldMapping)

	// Title - primary search target
	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = simple.Name
	titleFieldMapping.Store = true
	titleFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	// Label - searchable
	labelFieldMapping := bleve.NewTextFieldMapping()
	labelFieldMapping.Analyzer = simple.Name
	labelFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("label", labelFieldMapping)

	// --- Keyword fields (exact match, facetable) ---

	// ID - stored but not analyzed
	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	// Path - stored for display, not analyzed
	pathFieldMapping := bleve.NewTextFieldMapping()
	pathFieldMapping.Analyzer = keyword.Name
	pathFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("path", pathFieldMapping)

	// Status - for filtering by pipeline state
	statusFieldMapping := bleve.NewTextFieldMapping()
	statusFieldMapping.Analyzer = keyword.Name
	statusFieldMapping.Store = true
	statusFieldMapping.IncludeTermVectors = true // For faceting
	docMapping.AddFieldMappingsAt("status", statusFieldMapping)

	// Genres - keyword analyzer keeps compound genres intact (e.g., "trip hop")
	genresFieldMapping := bleve.NewTextFieldMapping()
	genresFieldMapping.Analyzer = keyword.Name
	genresFieldMapping.Store = true
	genresFieldMapping.IncludeTermVectors = true // For faceting
	docMapping.AddFieldMappingsAt("genres", genresFieldMapping)

	// Format - audio file format filter
	formatFieldMapping := bleve.NewTextFieldMapping()
	formatFieldMapping.Analyzer = keyword.Name
	formatFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("format", formatFieldMapping)

	// --- Numeric fields (range queries, sorting) ---

	yearFieldMapping := bleve.NewNumericFieldMapping()
	yearFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("year", yearFieldMapping)

	trackCountFieldMapping := bleve.NewNumericFieldMapping()
	trackCountFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("track_count", trackCountFieldMapping)

	confidenceFieldMapping := bleve.NewNumericFieldMapping()
	confidenceFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("confidence", confidenceFieldMapping)

	createdAtFieldMapping := bleve.NewNumericFieldMapping()
	createdAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdAtFieldMapping)

	updatedAtFieldMapping := bleve.NewNumericFieldMapping()
	updatedAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("updated_at", updatedAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
