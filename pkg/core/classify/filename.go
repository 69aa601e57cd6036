package classify

import (
	"regexp"
	"strconv"
	"strings"

	"fiscal_blueprint/pkg/models"
)

// filenameVocab maps filename keywords to document types. Checked in order;
// first hit wins. Dutch and English variants, since dossiers mix both.
var filenameVocab = []struct {
	keywords []string
	docType  models.DocumentType
}{
	{[]string{"aangifte", "tax_return", "taxreturn", "return"}, models.DocTaxReturn},
	{[]string{"voorlopige aanslag", "voorlopige_aanslag", "voorlopig", "provisional"}, models.DocProvisionalAssmnt},
	{[]string{"definitieve aanslag", "definitieve_aanslag", "aanslag", "assessment"}, models.DocFinalAssessment},
	{[]string{"jaaroverzicht", "bankafschrift", "bank", "spaar", "statement"}, models.DocBankStatement},
	{[]string{"beleg", "effecten", "portfolio", "broker", "degiro"}, models.DocInvestmentStatement},
	{[]string{"woz", "taxatie", "valuation", "waardebeschikking"}, models.DocPropertyValuation},
	{[]string{"hypotheek", "mortgage"}, models.DocMortgageStatement},
	{[]string{"lening", "krediet", "loan"}, models.DocLoanStatement},
}

var yearPattern = regexp.MustCompile(`(19|20)\d{2}`)

// typeFromFilename derives a document type from filename keywords, returning
// DocUnclassified when nothing matches.
func typeFromFilename(filename string) models.DocumentType {
	lower := strings.ToLower(filename)
	for _, entry := range filenameVocab {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.docType
			}
		}
	}
	return models.DocUnclassified
}

// yearsFromFilename extracts plausible tax years mentioned in the filename.
func yearsFromFilename(filename string) []int {
	var years []int
	for _, m := range yearPattern.FindAllString(filename, -1) {
		y, err := strconv.Atoi(m)
		if err == nil && y >= 2000 && y <= 2100 {
			years = append(years, y)
		}
	}
	return years
}
