package documents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateDocumentCode(t *testing.T) {
	tests := []struct {
		department string
		docType    string
		want       string
	}{
		{"Finance", "Work Instruction", "SDG-FIN-WI-01"},
		{"Finance", "SOP", "SDG-FIN-SOP-01"},
		{"Human Resources", "policy", "SDG-HUM-POL-01"},
		{"IT", "Form", "SDG-IT-FORM-01"},
		{"Quality", "Guideline", "SDG-QUA-GUI-01"},
		{"r&d lab", "work  instruction", "SDG-RDL-WI-01"},
		{"R&D", "SOP", "SDG-RD-SOP-01"},
		{"3D Print", "SOP", "SDG-DPR-SOP-01"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateDocumentCode(tt.department, tt.docType))
		})
	}
}

func TestNextVersionNumber(t *testing.T) {
	const code = "SDG-FIN-SOP-01"

	assert.Equal(t, "1.0", NextVersionNumber(nil, code))
	assert.Equal(t, "1.0", NextVersionNumber([]Document{}, code))

	existing := []Document{
		{DocumentCode: code, VersionNumber: "1.0"},
		{DocumentCode: code, VersionNumber: "1.3"},
		{DocumentCode: code, VersionNumber: "0.9"},
		{DocumentCode: "SDG-HUM-POL-01", VersionNumber: "7.0"},
	}
	assert.Equal(t, "1.4", NextVersionNumber(existing, code))
	assert.Equal(t, "1.0", NextVersionNumber(existing, "SDG-OPS-WI-01"))
}

func TestNextVersionNumberTreatsGarbageAsZero(t *testing.T) {
	const code = "SDG-FIN-SOP-01"

	assert.Equal(t, "0.1", NextVersionNumber([]Document{{DocumentCode: code, VersionNumber: "draft"}}, code))
	assert.Equal(t, "0.1", NextVersionNumber([]Document{{DocumentCode: code}}, code))
	assert.Equal(t, "2.1", NextVersionNumber([]Document{
		{DocumentCode: code, VersionNumber: "n/a"},
		{DocumentCode: code, VersionNumber: "2.0"},
	}, code))
}

func TestIncrementVersion(t *testing.T) {
	assert.Equal(t, "1.1", IncrementVersion("1.0"))
	assert.Equal(t, "2.0", IncrementVersion("1.9"))
	assert.Equal(t, "0.1", IncrementVersion(""))
}

func TestIncrementVersionReadsLeadingNumber(t *testing.T) {
	assert.Equal(t, "1.4", IncrementVersion("1.3-rc"))
	assert.Equal(t, "2.1", IncrementVersion(" 2.0 final"))
	assert.Equal(t, "1.1", IncrementVersion("1."))
	assert.Equal(t, "0.1", IncrementVersion("v2"))
	assert.Equal(t, "1.4", NextVersionNumber([]Document{
		{DocumentCode: "SDG-FIN-SOP-01", VersionNumber: "1.3-rc"},
	}, "SDG-FIN-SOP-01"))
}
