package documents

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

const (
	documentCodePrefix = "SDG"
	documentCodeSuffix = "01"
	initialVersion     = "1.0"
)

var typeAbbreviations = map[string]string{
	"sop":              "SOP",
	"policy":           "POL",
	"work instruction": "WI",
	"form":             "FORM",
}

var (
	versionStep   = decimal.New(1, -1)
	versionPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)`)
)

// GenerateDocumentCode derives SDG-<DEPT>-<TYPE>-01 from department and document type.
func GenerateDocumentCode(department, documentType string) string {
	return strings.Join([]string{
		documentCodePrefix,
		firstUpperLetters(department, 3),
		typeAbbreviation(documentType),
		documentCodeSuffix,
	}, "-")
}

func typeAbbreviation(documentType string) string {
	key := strings.ToLower(strings.Join(strings.Fields(documentType), " "))
	if abbr, ok := typeAbbreviations[key]; ok {
		return abbr
	}
	return firstUpperLetters(documentType, 3)
}

// firstUpperLetters keeps only letters, so "R&D" gives "RD".
func firstUpperLetters(s string, n int) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() >= n {
			break
		}
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// NextVersionNumber returns 1.0 for a new code, otherwise the highest existing version
// under the code plus 0.1. Unparseable versions count as 0.
func NextVersionNumber(existing []Document, documentCode string) string {
	found := false
	highest := decimal.Zero

	for i := range existing {
		if existing[i].DocumentCode != documentCode {
			continue
		}
		found = true
		if v := parseVersion(existing[i].VersionNumber); v.GreaterThan(highest) {
			highest = v
		}
	}

	if !found {
		return initialVersion
	}
	return highest.Add(versionStep).StringFixed(1)
}

// IncrementVersion bumps a single version number by 0.1.
func IncrementVersion(version string) string {
	return parseVersion(version).Add(versionStep).StringFixed(1)
}

// parseVersion reads the leading number of v, so "1.3-rc" is 1.3 and "draft" is 0.
func parseVersion(v string) decimal.Decimal {
	num := strings.TrimSuffix(versionPrefix.FindString(strings.TrimSpace(v)), ".")
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero
	}
	return d
}
