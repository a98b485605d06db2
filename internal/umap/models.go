package umap

import (
	"time"

	"github.com/basket/biofetch/internal/tabular"
)

// Fetched record types. Field names and optionality mirror the
// service's response payloads; nullable fields are pointers so a null
// survives into the tabular layer instead of collapsing to a zero.

// CellLineProteomics is one whole-cell-extract DIA measurement for a
// protein in a cell line.
type CellLineProteomics struct {
	Intensity                        float64 `json:"intensity"`
	NormalizedIntensity              float64 `json:"normalized_intensity"`
	IntensityRanking                 *int64  `json:"intensity_ranking"`
	WeightNormalizedIntensityRanking *int64  `json:"weight_normalized_intensity_ranking"`
	Symbol                           string  `json:"symbol"`
	UniProtKBAC                      string  `json:"uniprotkb_ac"`
	ExperimentType                   string  `json:"experiment_type"`
	CellLineName                     string  `json:"cell_line_name"`
	OncLineage                       string  `json:"onc_lineage"`
	OncSubtype                       *string `json:"onc_subtype"`
	Title                            *string `json:"title"`
	CopiesPerCell                    float64 `json:"copies_per_cell"`
	IsMapped                         *bool   `json:"is_mapped"`
}

func (d CellLineProteomics) Record() tabular.Record {
	return tabular.NewRecord(map[string]tabular.Value{
		"intensity":                           d.Intensity,
		"normalized_intensity":                d.NormalizedIntensity,
		"intensity_ranking":                   optInt(d.IntensityRanking),
		"weight_normalized_intensity_ranking": optInt(d.WeightNormalizedIntensityRanking),
		"symbol":                              d.Symbol,
		"uniprotkb_ac":                        d.UniProtKBAC,
		"experiment_type":                     d.ExperimentType,
		"cell_line_name":                      d.CellLineName,
		"onc_lineage":                         d.OncLineage,
		"onc_subtype":                         optString(d.OncSubtype),
		"title":                               optString(d.Title),
		"copies_per_cell":                     d.CopiesPerCell,
		"is_mapped":                           optBool(d.IsMapped),
	})
}

// CellLineSummary is one entry of the whole-cell-extract cell line
// listing.
type CellLineSummary struct {
	CCLEModelID       *string `json:"ccle_model_id"`
	RRID              *string `json:"rrid"`
	Name              string  `json:"name"`
	CCLEName          *string `json:"ccle_name"`
	OncLineage        *string `json:"onc_lineage"`
	OncPrimaryDisease *string `json:"onc_primary_disease"`
	OncSubtype        *string `json:"onc_subtype"`
	ExperimentCount   int64   `json:"experiment_count"`
}

// TissueSampleIntensity is one DIA measurement in a tissue sample.
type TissueSampleIntensity struct {
	Intensity                        float64 `json:"intensity"`
	NormalizedIntensity              float64 `json:"normalized_intensity"`
	IntensityRanking                 *int64  `json:"intensity_ranking"`
	WeightNormalizedIntensityRanking *int64  `json:"weight_normalized_intensity_ranking"`
	Symbol                           string  `json:"symbol"`
	UniProtKBAC                      string  `json:"uniprotkb_ac"`
	ExperimentType                   string  `json:"experiment_type"`
	Title                            string  `json:"title"`
	BenchlingAliquotRegistryID       string  `json:"benchling_aliquot_registry_id"`
	BenchlingHumanDonorRegistryID    string  `json:"benchling_human_donor_registry_id"`
	VendorAliquotID                  string  `json:"vendor_aliquot_id"`
	AliquotName                      *string `json:"aliquot_name"`
	Diagnosis                        *string `json:"diagnosis"`
	TissueType                       *string `json:"tissue_type"`
}

func (d TissueSampleIntensity) Record() tabular.Record {
	return tabular.NewRecord(map[string]tabular.Value{
		"intensity":                           d.Intensity,
		"normalized_intensity":                d.NormalizedIntensity,
		"intensity_ranking":                   optInt(d.IntensityRanking),
		"weight_normalized_intensity_ranking": optInt(d.WeightNormalizedIntensityRanking),
		"symbol":                              d.Symbol,
		"uniprotkb_ac":                        d.UniProtKBAC,
		"experiment_type":                     d.ExperimentType,
		"title":                               d.Title,
		"diagnosis":                           optString(d.Diagnosis),
		"tissue_type":                         optString(d.TissueType),
	})
}

// ReciprocalMicroMap is one reciprocal proximity measurement between a
// target and a proximal protein.
type ReciprocalMicroMap struct {
	TargetName          string   `json:"target_name"`
	CellSourceName      string   `json:"cell_source_name"`
	OncLineage          string   `json:"onc_lineage"`
	Chemistry           string   `json:"chemistry"`
	ID                  int64    `json:"id"`
	Log2FC              *float64 `json:"log2_fc"`
	NLog10PValue        *float64 `json:"nlog10_pvalue"`
	ProximalUniProtKBAC string   `json:"proximal_uniprotkb_ac"`
	TargetUniProtKBAC   string   `json:"target_uniprotkb_ac"`
}

// GeneExpression is one RNA expression sample from the pancancer
// compendium, either tumor or normal tissue.
type GeneExpression struct {
	DetailedCategory       string  `json:"detailed_category"`
	ExpressionID           int64   `json:"expression_id"`
	ExpressionValue        float64 `json:"expression_value"`
	Gender                 string  `json:"gender"`
	Symbol                 string  `json:"symbol"`
	UniProtKBAC            string  `json:"uniprotkb_ac"`
	PrimaryDiseaseOrTissue string  `json:"primary_disease_or_tissue"`
	PrimarySite            string  `json:"primary_site"`
	TCGAPrimarySite        string  `json:"tcga_primary_site"`
	SampleName             string  `json:"sample_name"`
	SampleType             string  `json:"sample_type"`
	Study                  string  `json:"study"`
	IsCancer               bool    `json:"is_cancer"`
}

func (d GeneExpression) Record() tabular.Record {
	return tabular.NewRecord(map[string]tabular.Value{
		"detailed_category":         d.DetailedCategory,
		"expression_id":             d.ExpressionID,
		"expression_value":          d.ExpressionValue,
		"gender":                    d.Gender,
		"symbol":                    d.Symbol,
		"uniprotkb_ac":              d.UniProtKBAC,
		"primary_disease_or_tissue": d.PrimaryDiseaseOrTissue,
		"primary_site":              d.PrimarySite,
		"tcga_primary_site":         d.TCGAPrimarySite,
		"sample_name":               d.SampleName,
		"sample_type":               d.SampleType,
		"study":                     d.Study,
		"is_cancer":                 d.IsCancer,
	})
}

// NormalExpression is one normal-tissue proteomics measurement.
type NormalExpression struct {
	ID                 int64   `json:"id"`
	CopiesPerCell      float64 `json:"copies_per_cell"`
	Indication         string  `json:"indication"`
	ProteinSymbol      string  `json:"protein_symbol"`
	ProteinUniProtKBAC string  `json:"protein_uniprotkb_ac"`
}

func (d NormalExpression) Record() tabular.Record {
	return tabular.NewRecord(map[string]tabular.Value{
		"id":                   d.ID,
		"copies_per_cell":      d.CopiesPerCell,
		"indication":           d.Indication,
		"protein_symbol":       d.ProteinSymbol,
		"protein_uniprotkb_ac": d.ProteinUniProtKBAC,
	})
}

// ExternalExpression is one measurement from an external proteomics
// study.
type ExternalExpression struct {
	Value             float64 `json:"value"`
	UniProtKBAC       string  `json:"uniprotkb_ac"`
	Symbol            string  `json:"symbol"`
	Indication        string  `json:"indication"`
	TissueType        string  `json:"tissue_type"`
	SampleName        string  `json:"sample_name"`
	SampleType        string  `json:"sample_type"`
	StudyName         string  `json:"study_name"`
	StudyID           *int64  `json:"study_id"`
	PairedSampleGroup *string `json:"paired_sample_group"`
}

func (d ExternalExpression) Record() tabular.Record {
	return tabular.NewRecord(map[string]tabular.Value{
		"value":               d.Value,
		"uniprotkb_ac":        d.UniProtKBAC,
		"symbol":              d.Symbol,
		"indication":          d.Indication,
		"tissue_type":         d.TissueType,
		"sample_name":         d.SampleName,
		"sample_type":         d.SampleType,
		"study_name":          d.StudyName,
		"study_id":            optInt(d.StudyID),
		"paired_sample_group": optString(d.PairedSampleGroup),
	})
}

// DepMap is one DepMap expression and copy number measurement for a
// protein in a cell line.
type DepMap struct {
	ProteinSymbol       string   `json:"protein_symbol"`
	UniProtKBAC         string   `json:"uniprotkb_ac"`
	CellLineName        string   `json:"cell_line_name"`
	OncLineage          string   `json:"onc_lineage"`
	OncPrimaryDisease   string   `json:"onc_primary_disease"`
	OncSubtype          *string  `json:"onc_subtype"`
	TPMLog2             float64  `json:"tpm_log2"`
	GeneLevelCopyNumber *float64 `json:"gene_level_copy_number"`
}

func (d DepMap) Record() tabular.Record {
	return tabular.NewRecord(map[string]tabular.Value{
		"protein_symbol":         d.ProteinSymbol,
		"uniprotkb_ac":           d.UniProtKBAC,
		"cell_line_name":         d.CellLineName,
		"onc_lineage":            d.OncLineage,
		"onc_primary_disease":    d.OncPrimaryDisease,
		"onc_subtype":            optString(d.OncSubtype),
		"tpm_log2":               d.TPMLog2,
		"gene_level_copy_number": optFloat(d.GeneLevelCopyNumber),
	})
}

// StudyMetadata describes one external proteomics study.
type StudyMetadata struct {
	ID                  int64   `json:"id"`
	StudyName           string  `json:"study_name"`
	Link                *string `json:"link"`
	ClinicalDataContext *string `json:"clinical_data_context"`
	ExperimentType      *string `json:"experiment_type"`
	StudyType           *string `json:"study_type"`
	PDCStudyID          *string `json:"pdc_study_id"`
	StudyID             *string `json:"study_id"`
	StudySubmitterID    *string `json:"study_submitter_id"`
	ProjectName         *string `json:"project_name"`
	ProgramName         *string `json:"program_name"`
	Authors             *string `json:"authors"`
	NormalizationMethod *string `json:"normalization_method"`
	NumOfSamples        int64   `json:"num_of_samples"`
}

func (d StudyMetadata) Record() tabular.Record {
	return tabular.NewRecord(map[string]tabular.Value{
		"id":                   d.ID,
		"study_name":           d.StudyName,
		"link":                 optString(d.Link),
		"experiment_type":      optString(d.ExperimentType),
		"study_type":           optString(d.StudyType),
		"project_name":         optString(d.ProjectName),
		"program_name":         optString(d.ProgramName),
		"normalization_method": optString(d.NormalizationMethod),
		"num_of_samples":       d.NumOfSamples,
	})
}

// RecordFor flattens the study for a per-gene sheet, carrying the gene
// whose data the study contributed.
func (d StudyMetadata) RecordFor(gene string) tabular.Record {
	return tabular.NewRecord(map[string]tabular.Value{
		"gene":                 gene,
		"study_id":             d.ID,
		"study_name":           d.StudyName,
		"experiment_type":      optString(d.ExperimentType),
		"study_type":           optString(d.StudyType),
		"project_name":         optString(d.ProjectName),
		"program_name":         optString(d.ProgramName),
		"normalization_method": optString(d.NormalizationMethod),
		"num_of_samples":       d.NumOfSamples,
	})
}

// Replicate set tree.

// Protein is the service's protein entity.
type Protein struct {
	UniProtKBAC          string  `json:"uniprotkb_ac"`
	Symbol               string  `json:"symbol"`
	MassDa               float64 `json:"mass_da"`
	AAResLength          int64   `json:"aa_res_length"`
	IsIsoform            bool    `json:"is_isoform"`
	CanonicalProtein     *string `json:"canonical_protein"`
	PDB                  *string `json:"pdb"`
	PubmedIDs            *string `json:"pubmeb_ids"`
	MaxDrugTargetability *string `json:"max_drug_targetability"`
	Sequence             *string `json:"sequence"`
	ID                   int64   `json:"id"`
}

// Target is what a replicate set was enriching for.
type Target struct {
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Proteins    []Protein `json:"proteins"`
	Type        string    `json:"type"`
	ID          int64     `json:"id"`
}

type ProcessedDataObject struct {
	ObjectType string  `json:"object_type"`
	S3Bucket   string  `json:"s3_bucket"`
	S3Key      string  `json:"s3_key"`
	Errors     *string `json:"errors"`
	ID         int64   `json:"id"`
}

type Experiment struct {
	ID              int64  `json:"id"`
	Description     string `json:"description"`
	RawDataObjectID *int64 `json:"raw_data_object_id"`
}

type Analysis struct {
	ID                   int64   `json:"id"`
	FlyteExecutionName   string  `json:"flyte_execution_name"`
	FlyteWorkflowName    string  `json:"flyte_workflow_name"`
	FlyteWorkflowProject string  `json:"flyte_workflow_project"`
	FlyteWorkflowDomain  string  `json:"flyte_workflow_domain"`
	Status               string  `json:"status"`
	Prominence           string  `json:"prominence"`
	ReplicateSetID       int64   `json:"replicate_set_id"`
	WarningMessage       *string `json:"warning_message"`
}

// CellLine is the full cell line entity carried inside a replicate
// set's cell source.
type CellLine struct {
	CCLEModelID       *string `json:"ccle_model_id"`
	RRID              *string `json:"rrid"`
	Name              string  `json:"name"`
	CCLEName          *string `json:"ccle_name"`
	OncLineage        *string `json:"onc_lineage"`
	OncPrimaryDisease *string `json:"onc_primary_disease"`
	OncSubtype        *string `json:"onc_subtype"`
	ID                int64   `json:"id"`
}

type CellSource struct {
	Name      string     `json:"name"`
	ID        int64      `json:"id"`
	CellLines []CellLine `json:"cell_lines"`
}

// Binder is the affinity reagent used by a replicate set.
type Binder struct {
	EntityRegistryID string    `json:"entity_registry_id"`
	Name             string    `json:"name"`
	WebURL           string    `json:"web_url"`
	DisplayName      string    `json:"display_name"`
	Type             string    `json:"type"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	ID               int64     `json:"id"`
}

// ReplicateSet is one enrichment experiment: a target, the cell
// source it ran in, the binder used, and the analyses produced.
type ReplicateSet struct {
	Description            *string              `json:"description"`
	ID                     int64                `json:"id"`
	Target                 Target               `json:"target"`
	CellSourceID           int64                `json:"cell_source_id"`
	Binder                 *Binder              `json:"binder"`
	Chemistry              string               `json:"chemistry"`
	ProcessedDataObject    *ProcessedDataObject `json:"processed_data_object"`
	ReplicateColumnPrefix  string               `json:"replicate_column_prefix"`
	ControlColumnPrefix    string               `json:"control_column_prefix"`
	NumControlColumns      *int64               `json:"num_control_columns"`
	NumExperimentalColumns *int64               `json:"num_experimental_columns"`
	Valid                  *bool                `json:"valid"`
	InvalidationReason     *string              `json:"invalidation_reason"`
	Experiment             Experiment           `json:"experiment"`
	Analyses               []Analysis           `json:"analyses"`
	CellSource             CellSource           `json:"cell_source"`
}

// TargetsProtein reports whether this replicate set targeted exactly
// the given protein and ran in at least one cell line.
func (rs ReplicateSet) TargetsProtein(uniprotkbAC string) bool {
	return len(rs.Target.Proteins) == 1 &&
		rs.Target.Proteins[0].UniProtKBAC == uniprotkbAC &&
		len(rs.CellSource.CellLines) > 0
}

// CellLineName returns the replicate set's first cell line name, or
// "Unknown" when the cell source has none.
func (rs ReplicateSet) CellLineName() string {
	if len(rs.CellSource.CellLines) == 0 {
		return "Unknown"
	}
	return rs.CellSource.CellLines[0].Name
}

// TargetSymbol returns the targeted protein's symbol, or "Unknown".
func (rs ReplicateSet) TargetSymbol() string {
	if len(rs.Target.Proteins) == 0 {
		return "Unknown"
	}
	return rs.Target.Proteins[0].Symbol
}

// BinderName returns the binder's display name, or "Unknown" when the
// replicate set has no binder on record.
func (rs ReplicateSet) BinderName() string {
	if rs.Binder == nil {
		return "Unknown"
	}
	return rs.Binder.DisplayName
}

// AnalysisResult is one protein-level result of a replicate set
// analysis.
type AnalysisResult struct {
	ID               int64    `json:"id"`
	Log2FC           float64  `json:"log2_fc"`
	NLog10PValue     float64  `json:"nlog10_pvalue"`
	NumberOfPeptides int64    `json:"number_of_peptides"`
	ProteinID        int64    `json:"protein_id"`
	AnalysisID       int64    `json:"analysis_id"`
	Analysis         Analysis `json:"analysis"`
	Protein          Protein  `json:"protein"`
}

// ResultRecord flattens one analysis result together with the
// replicate set context every results row carries.
func (rs ReplicateSet) ResultRecord(r AnalysisResult) tabular.Record {
	return tabular.NewRecord(map[string]tabular.Value{
		"replicate_set_id":     rs.ID,
		"cell_line":            rs.CellLineName(),
		"chemistry":            rs.Chemistry,
		"target_protein":       rs.TargetSymbol(),
		"protein_symbol":       r.Protein.Symbol,
		"protein_uniprotkb_ac": r.Protein.UniProtKBAC,
		"log2_fc":              r.Log2FC,
		"nlog10_pvalue":        r.NLog10PValue,
		"number_of_peptides":   r.NumberOfPeptides,
		"binder":               rs.BinderName(),
	})
}

// SummaryRecord flattens the set itself for the targeting sheet.
func (rs ReplicateSet) SummaryRecord() tabular.Record {
	return tabular.NewRecord(map[string]tabular.Value{
		"gene":             rs.TargetSymbol(),
		"cell_line":        rs.CellLineName(),
		"replicate_set_id": rs.ID,
		"chemistry":        rs.Chemistry,
		"binder":           rs.BinderName(),
	})
}

// ProteinMapping is one symbol resolution from the mapping endpoint.
type ProteinMapping struct {
	UniProtKBAC   string   `json:"uniprotkb_ac"`
	PrimarySymbol string   `json:"primary_symbol"`
	Symbols       []string `json:"symbols"`
	ENSPIDs       []string `json:"ensp_ids"`
}

func optString(p *string) tabular.Value {
	if p == nil {
		return nil
	}
	return *p
}

func optInt(p *int64) tabular.Value {
	if p == nil {
		return nil
	}
	return *p
}

func optFloat(p *float64) tabular.Value {
	if p == nil {
		return nil
	}
	return *p
}

func optBool(p *bool) tabular.Value {
	if p == nil {
		return nil
	}
	return *p
}
