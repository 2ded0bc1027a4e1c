package parser

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/xmlnode"
)

const (
	workbookXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <workbookPr date1904="1"/>
  <sheets>
    <sheet name="Data" sheetId="1" r:id="rId1"/>
    <sheet name="O'Brien" sheetId="2" r:id="rId2"/>
  </sheets>
  <definedNames>
    <definedName name="_xlnm.Print_Area" localSheetId="0">Data!$A$1:$B$3</definedName>
    <definedName name="_xlnm.Print_Area" localSheetId="1">'O''Brien'!$A$1:$C$2,'O''Brien'!$E$5</definedName>
    <definedName name="Total">Data!$B$3</definedName>
  </definedNames>
</workbook>`

	relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="/xl/worksheets/sheet2.xml"/>
  <Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

	sharedStringsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="6" uniqueCount="5">
  <si><t>first name</t></si>
  <si><t>age</t></si>
  <si><r><t>Bo</t></r><r><rPr><b/></rPr><t xml:space="preserve"> Smith</t></r></si>
  <si><t/></si>
  <si><t>東京</t><rPh sb="0" eb="2"><t>トウキョウ</t></rPh><phoneticPr fontId="1"/></si>
</sst>`

	stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <numFmts count="1"><numFmt numFmtId="164" formatCode="DD/MM/YYYY"/></numFmts>
  <fonts count="1"><font><sz val="11"/></font></fonts>
  <cellStyleXfs count="1"><xf numFmtId="0" fontId="0"/></cellStyleXfs>
  <cellXfs count="4">
    <xf numFmtId="0"/>
    <xf numFmtId="164" applyNumberFormat="1"/>
    <xf numFmtId="14"><alignment horizontal="left"/></xf>
    <xf numFmtId="49"/>
  </cellXfs>
  <dxfs count="1"><dxf><numFmt numFmtId="165" formatCode="0.000"/></dxf></dxfs>
</styleSheet>`
)

// parts returns a node source over an XML document.
func parts(doc string) NodeSource {
	return xmlnode.New(strings.NewReader(doc), xmlnode.Options{})
}

// nodeSlice replays synthetic nodes, then err or io.EOF.
type nodeSlice struct {
	nodes []xmlnode.Node
	err   error
}

func (s *nodeSlice) Next() (xmlnode.Node, error) {
	if len(s.nodes) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	n := s.nodes[0]
	s.nodes = s.nodes[1:]
	return n, nil
}

func el(name string, depth int, attrs ...string) xmlnode.Item {
	m := make(map[string]string, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		m[attrs[i]] = attrs[i+1]
	}
	return xmlnode.NewElement(name, depth, m)
}

// newTestWorkbook returns a ready workbook with the shared strings and
// styles fixtures loaded.
func newTestWorkbook(t *testing.T, opts WorkbookOptions) *Workbook {
	t.Helper()
	wb := NewWorkbook(opts)
	require.NoError(t, wb.ParseRelationships(parts(relsXML)))
	require.NoError(t, wb.ParseSharedStrings(parts(sharedStringsXML)))
	require.NoError(t, wb.ParseStyles(parts(stylesXML)))
	return wb
}

func sheet(wb *Workbook, doc string) *Worksheet {
	return NewWorksheet(wb, WorksheetConfig{ID: 1, Name: "Data", Path: "xl/worksheets/sheet1.xml"}, strings.NewReader(doc))
}
