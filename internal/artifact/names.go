// Package artifact owns the accumulated tabular outputs: the registry
// of artifact names and the incremental stores (CSV directory, xlsx
// workbook) that merge new rows and columns into files that persist
// across runs.
package artifact

import "strings"

// Dataset categories. Each category names the artifacts one handler
// maintains.
const (
	CategoryDepMap         = "depmap"
	CategoryProteomics     = "external_protein_expression"
	CategoryGeneExpression = "gene_expression"
	CategoryWCE            = "wce"
	CategoryUMap           = "umap"
)

// Artifact names. CSV stores use the name as the file name; workbook
// stores use it minus the ".csv" suffix as the sheet name.
const (
	DepMapData              = "depmap_data.csv"
	NormalProteomicsData    = "normal_proteomics_data.csv"
	ExternalProteomicsData  = "external_proteomics_data.csv"
	StudySpecificData       = "study_specific_data.csv"
	ProteinExpression       = "protein_expression.csv"
	NormalGeneExpression    = "normal_gene_expression.csv"
	GeneExpression          = "gene_expression.csv"
	GeneTumorNormalRatios   = "gene_tumor_normal_ratios.csv"
	WCEData                 = "wce_data.csv"
	CellLineSigmoidalCurves = "cell_line_sigmoidal_curves.csv"
	UMapData                = "umap_data.csv"
	CellLineTargeting       = "cell_line_targeting.csv"
)

// ProteinScores is the STRING recombination output. It belongs to no
// dataset category; the scores command maintains it.
const ProteinScores = "protein_scores.csv"

var namesByCategory = map[string][]string{
	CategoryDepMap:         {DepMapData},
	CategoryProteomics:     {NormalProteomicsData, ExternalProteomicsData, StudySpecificData, ProteinExpression},
	CategoryGeneExpression: {NormalGeneExpression, GeneExpression, GeneTumorNormalRatios},
	CategoryWCE:            {WCEData, CellLineSigmoidalCurves},
	CategoryUMap:           {UMapData, CellLineTargeting},
}

var categoryOrder = []string{
	CategoryDepMap,
	CategoryProteomics,
	CategoryGeneExpression,
	CategoryWCE,
	CategoryUMap,
}

// Categories returns every dataset category in run order.
func Categories() []string {
	out := make([]string, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// ValidCategory reports whether category names a known dataset.
func ValidCategory(category string) bool {
	_, ok := namesByCategory[strings.ToLower(category)]
	return ok
}

// Names returns the artifact names a category maintains, or nil for an
// unknown category.
func Names(category string) []string {
	names, ok := namesByCategory[strings.ToLower(category)]
	if !ok {
		return nil
	}
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// AllNames returns every artifact name, grouped by category run order.
func AllNames() []string {
	var out []string
	for _, c := range categoryOrder {
		out = append(out, namesByCategory[c]...)
	}
	return out
}

// CategoryOf returns the category that maintains the named artifact.
func CategoryOf(name string) (string, bool) {
	for _, c := range categoryOrder {
		for _, n := range namesByCategory[c] {
			if n == name {
				return c, true
			}
		}
	}
	return "", false
}

// SheetName maps an artifact name to its workbook sheet name.
func SheetName(name string) string {
	return strings.TrimSuffix(name, ".csv")
}
