package umap

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Response validation. Every endpoint's body is checked against a JSON
// Schema before decoding, so a drifting service surfaces as a clear
// validation error instead of zero-valued records.

// oncLineageEnum is the service's closed lineage vocabulary.
const oncLineageEnum = `["Lung", "Normal", "Eye", "Bone", "Vulva/Vagina", "Lymphoid", "Other",
 "Liver", "Fibroblast", "Uterus", "Thyroid", "Esophagus/Stomach", "Testis", "Hair",
 "Skin", "Soft Tissue", "Ampulla of Vater", "Cervix", "Bladder/Urinary Tract",
 "Kidney", "Head and Neck", "Bowel", "Biliary Tract", "CNS/Brain", "Pancreas",
 "Ovary/Fallopian Tube", "Adrenal Gland", "Pleura", "Peripheral Nervous System",
 "Embryonal", "Breast", "Prostate", "Muscle", "Myeloid", "Unknown"]`

var cellLineProteomicsItem = fmt.Sprintf(`{
	"type": "object",
	"required": ["intensity", "normalized_intensity", "symbol", "uniprotkb_ac", "experiment_type", "cell_line_name", "onc_lineage", "copies_per_cell"],
	"properties": {
		"intensity": {"type": "number"},
		"normalized_intensity": {"type": "number"},
		"intensity_ranking": {"type": ["integer", "null"]},
		"weight_normalized_intensity_ranking": {"type": ["integer", "null"]},
		"symbol": {"type": "string"},
		"uniprotkb_ac": {"type": "string"},
		"experiment_type": {"type": "string"},
		"cell_line_name": {"type": "string"},
		"onc_lineage": {"enum": %s},
		"onc_subtype": {"type": ["string", "null"]},
		"title": {"type": ["string", "null"]},
		"copies_per_cell": {"type": "number"},
		"is_mapped": {"type": ["boolean", "null"]}
	}
}`, oncLineageEnum)

var cellLineSummaryItem = fmt.Sprintf(`{
	"type": "object",
	"required": ["name", "experiment_count"],
	"properties": {
		"ccle_model_id": {"type": ["string", "null"]},
		"rrid": {"type": ["string", "null"]},
		"name": {"type": "string"},
		"ccle_name": {"type": ["string", "null"]},
		"onc_lineage": {"anyOf": [{"enum": %s}, {"type": "null"}]},
		"onc_primary_disease": {"type": ["string", "null"]},
		"onc_subtype": {"type": ["string", "null"]},
		"experiment_count": {"type": "integer"}
	}
}`, oncLineageEnum)

const tissueSampleItem = `{
	"type": "object",
	"required": ["intensity", "normalized_intensity", "symbol", "uniprotkb_ac", "experiment_type", "title"],
	"properties": {
		"intensity": {"type": "number"},
		"normalized_intensity": {"type": "number"},
		"intensity_ranking": {"type": ["integer", "null"]},
		"weight_normalized_intensity_ranking": {"type": ["integer", "null"]},
		"symbol": {"type": "string"},
		"uniprotkb_ac": {"type": "string"},
		"experiment_type": {"type": "string"},
		"title": {"type": "string"},
		"aliquot_name": {"type": ["string", "null"]},
		"diagnosis": {"type": ["string", "null"]},
		"tissue_type": {"type": ["string", "null"]}
	}
}`

const reciprocalMicroMapItem = `{
	"type": "object",
	"required": ["target_name", "cell_source_name", "chemistry", "id", "proximal_uniprotkb_ac", "target_uniprotkb_ac"],
	"properties": {
		"target_name": {"type": "string"},
		"cell_source_name": {"type": "string"},
		"onc_lineage": {"type": "string"},
		"chemistry": {"type": "string"},
		"id": {"type": "integer"},
		"log2_fc": {"type": ["number", "null"]},
		"nlog10_pvalue": {"type": ["number", "null"]},
		"proximal_uniprotkb_ac": {"type": "string"},
		"target_uniprotkb_ac": {"type": "string"}
	}
}`

const geneExpressionItem = `{
	"type": "object",
	"required": ["expression_id", "expression_value", "symbol", "uniprotkb_ac", "primary_site", "sample_type", "study", "is_cancer"],
	"properties": {
		"detailed_category": {"type": "string"},
		"expression_id": {"type": "integer"},
		"expression_value": {"type": "number"},
		"gender": {"type": "string"},
		"symbol": {"type": "string"},
		"uniprotkb_ac": {"type": "string"},
		"primary_disease_or_tissue": {"type": "string"},
		"primary_site": {"type": "string"},
		"tcga_primary_site": {"type": "string"},
		"sample_name": {"type": "string"},
		"sample_type": {"type": "string"},
		"study": {"type": "string"},
		"is_cancer": {"type": "boolean"}
	}
}`

const normalExpressionItem = `{
	"type": "object",
	"required": ["id", "copies_per_cell", "indication", "protein_symbol", "protein_uniprotkb_ac"],
	"properties": {
		"id": {"type": "integer"},
		"copies_per_cell": {"type": "number"},
		"indication": {"type": "string"},
		"protein_symbol": {"type": "string"},
		"protein_uniprotkb_ac": {"type": "string"}
	}
}`

const externalExpressionItem = `{
	"type": "object",
	"required": ["value", "uniprotkb_ac", "symbol", "indication", "sample_type", "study_name"],
	"properties": {
		"value": {"type": "number"},
		"uniprotkb_ac": {"type": "string"},
		"symbol": {"type": "string"},
		"indication": {"type": "string"},
		"tissue_type": {"type": "string"},
		"sample_name": {"type": "string"},
		"sample_type": {"type": "string"},
		"study_name": {"type": "string"},
		"study_id": {"type": ["integer", "null"]},
		"paired_sample_group": {"type": ["string", "null"]}
	}
}`

const depMapItem = `{
	"type": "object",
	"required": ["protein_symbol", "uniprotkb_ac", "cell_line_name", "onc_lineage", "onc_primary_disease", "tpm_log2"],
	"properties": {
		"protein_symbol": {"type": "string"},
		"uniprotkb_ac": {"type": "string"},
		"cell_line_name": {"type": "string"},
		"onc_lineage": {"type": "string"},
		"onc_primary_disease": {"type": "string"},
		"onc_subtype": {"type": ["string", "null"]},
		"tpm_log2": {"type": "number"},
		"gene_level_copy_number": {"type": ["number", "null"]}
	}
}`

const studyMetadataItem = `{
	"type": "object",
	"required": ["id", "study_name", "num_of_samples"],
	"properties": {
		"id": {"type": "integer"},
		"study_name": {"type": "string"},
		"link": {"type": ["string", "null"]},
		"experiment_type": {"type": ["string", "null"]},
		"study_type": {"type": ["string", "null"]},
		"project_name": {"type": ["string", "null"]},
		"program_name": {"type": ["string", "null"]},
		"normalization_method": {"type": ["string", "null"]},
		"num_of_samples": {"type": "integer"}
	}
}`

const replicateSetItem = `{
	"type": "object",
	"required": ["id", "target", "chemistry", "experiment", "analyses", "cell_source"],
	"properties": {
		"id": {"type": "integer"},
		"chemistry": {"type": "string"},
		"binder": {"type": ["object", "null"]},
		"target": {
			"type": "object",
			"required": ["name", "proteins", "type", "id"],
			"properties": {
				"name": {"type": "string"},
				"type": {"type": "string"},
				"id": {"type": "integer"},
				"proteins": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["uniprotkb_ac", "symbol", "id"],
						"properties": {
							"uniprotkb_ac": {"type": "string"},
							"symbol": {"type": "string"},
							"id": {"type": "integer"}
						}
					}
				}
			}
		},
		"cell_source": {
			"type": "object",
			"required": ["name", "id", "cell_lines"],
			"properties": {
				"name": {"type": "string"},
				"id": {"type": "integer"},
				"cell_lines": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["name", "id"],
						"properties": {
							"name": {"type": "string"},
							"id": {"type": "integer"}
						}
					}
				}
			}
		},
		"experiment": {"type": "object", "required": ["id", "description"]},
		"analyses": {"type": "array"}
	}
}`

const analysisResultItem = `{
	"type": "object",
	"required": ["id", "log2_fc", "nlog10_pvalue", "number_of_peptides", "protein"],
	"properties": {
		"id": {"type": "integer"},
		"log2_fc": {"type": "number"},
		"nlog10_pvalue": {"type": "number"},
		"number_of_peptides": {"type": "integer"},
		"protein_id": {"type": "integer"},
		"analysis_id": {"type": "integer"},
		"protein": {
			"type": "object",
			"required": ["uniprotkb_ac", "symbol", "id"],
			"properties": {
				"uniprotkb_ac": {"type": "string"},
				"symbol": {"type": "string"},
				"id": {"type": "integer"}
			}
		}
	}
}`

const proteinMappingItem = `{
	"type": "object",
	"required": ["uniprotkb_ac", "primary_symbol"],
	"properties": {
		"uniprotkb_ac": {"type": "string"},
		"primary_symbol": {"type": "string"},
		"symbols": {"type": "array", "items": {"type": "string"}},
		"ensp_ids": {"type": "array", "items": {"type": "string"}}
	}
}`

// pageOf wraps an item schema in the service's pagination envelope.
func pageOf(item string) string {
	return fmt.Sprintf(`{
	"type": "object",
	"required": ["current_page", "page_size", "total_items", "total_pages", "data"],
	"properties": {
		"current_page": {"type": "integer"},
		"next_page": {"type": ["integer", "null"]},
		"page_size": {"type": "integer"},
		"total_items": {"type": "integer"},
		"total_pages": {"type": "integer"},
		"data": {"type": "array", "items": %s}
	}
}`, item)
}

func listOf(item string) string {
	return fmt.Sprintf(`{"type": "array", "items": %s}`, item)
}

// dataOf wraps an item schema in a bare {"data": [...]} envelope, the
// shape unpaginated POST endpoints answer with.
func dataOf(item string) string {
	return fmt.Sprintf(`{
	"type": "object",
	"required": ["data"],
	"properties": {"data": {"type": "array", "items": %s}}
}`, item)
}

const boundsSchema = `{"type": "object", "additionalProperties": {"type": "number"}}`

const primarySitesSchema = `{"type": "array", "items": {"type": "string"}}`

func rawSchemas() map[string]string {
	return map[string]string{
		schemaCellLineProteomics: pageOf(cellLineProteomicsItem),
		schemaCellLines:          listOf(cellLineSummaryItem),
		schemaTissueSamples:      pageOf(tissueSampleItem),
		schemaReciprocal:         pageOf(reciprocalMicroMapItem),
		schemaGeneExpression:     pageOf(geneExpressionItem),
		schemaNormalExpression:   listOf(normalExpressionItem),
		schemaExternalExpression: pageOf(externalExpressionItem),
		schemaDepMap:             pageOf(depMapItem),
		schemaStudyMetadata:      pageOf(studyMetadataItem),
		schemaReplicateSets:      pageOf(replicateSetItem),
		schemaAnalysisResults:    pageOf(analysisResultItem),
		schemaProteinMappings:    dataOf(proteinMappingItem),
		schemaBounds:             boundsSchema,
		schemaPrimarySites:       primarySitesSchema,
	}
}

const (
	schemaCellLineProteomics = "cell-line-proteomics"
	schemaCellLines          = "cell-lines"
	schemaTissueSamples      = "tissue-samples"
	schemaReciprocal         = "reciprocal-micro-map"
	schemaGeneExpression     = "gene-expression"
	schemaNormalExpression   = "normal-expression"
	schemaExternalExpression = "external-expression"
	schemaDepMap             = "depmap"
	schemaStudyMetadata      = "study-metadata"
	schemaReplicateSets      = "replicate-sets"
	schemaAnalysisResults    = "analysis-results"
	schemaProteinMappings    = "protein-mappings"
	schemaBounds             = "bounds"
	schemaPrimarySites       = "primary-sites"
)

// compileSchemas compiles every endpoint schema once at client
// construction.
func compileSchemas() (map[string]*jsonschema.Schema, error) {
	raw := rawSchemas()
	c := jsonschema.NewCompiler()
	for name, src := range raw {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("unmarshal schema %s: %w", name, err)
		}
		if err := c.AddResource(name+".json", doc); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}
	out := make(map[string]*jsonschema.Schema, len(raw))
	for name := range raw {
		schema, err := c.Compile(name + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		out[name] = schema
	}
	return out, nil
}
