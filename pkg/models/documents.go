package models

// DocumentType is the coarse classification of a dossier document.
type DocumentType string

const (
	DocTaxReturn           DocumentType = "tax_return"
	DocFinalAssessment     DocumentType = "final_assessment"
	DocProvisionalAssmnt   DocumentType = "provisional_assessment"
	DocBankStatement       DocumentType = "bank_statement"
	DocInvestmentStatement DocumentType = "investment_statement"
	DocPropertyValuation   DocumentType = "property_valuation"
	DocMortgageStatement   DocumentType = "mortgage_statement"
	DocLoanStatement       DocumentType = "loan_statement"
	DocUnclassified        DocumentType = "unclassified"
)

// IsAuthority reports whether the type is authority-facing, i.e. carries
// officially reported totals.
func (t DocumentType) IsAuthority() bool {
	switch t {
	case DocTaxReturn, DocFinalAssessment, DocProvisionalAssmnt:
		return true
	}
	return false
}

// RawDocument is one input file handed to the pipeline.
type RawDocument struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	MediaType string `json:"media_type"`
	Bytes     []byte `json:"-"`
}

// PreparedDocument is a RawDocument after the preparer decided whether
// extraction can proceed from text or must use the raw binary.
type PreparedDocument struct {
	RawDocument
	Text          string  `json:"text,omitempty"`
	CharCount     int     `json:"char_count"`
	CharsPerPage  float64 `json:"chars_per_page"`
	HasUsableText bool    `json:"has_usable_text"`
}

// SourceDocumentEntry is the registry record created during classification.
// It is never mutated after creation within a run, except for the
// UsedForExtraction marker set by the stages that consumed the document.
type SourceDocumentEntry struct {
	ID                string       `json:"id"`
	Filename          string       `json:"filename"`
	Type              DocumentType `json:"type"`
	Years             []int        `json:"years,omitempty"`
	Persons           []string     `json:"persons,omitempty"`
	AssetHints        []string     `json:"asset_hints,omitempty"`
	Confidence        float64      `json:"confidence"`
	HasUsableText     bool         `json:"has_usable_text"`
	UsedForExtraction bool         `json:"used_for_extraction"`
}
