package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/freelancedao/escrow-service/internal/model"
)

// Generator renders contracts with the built-in Helvetica face. Text outside
// cp1252 is transliterated by gofpdf's translator.
type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

func (g *Generator) Generate(doc model.ContractDocument) ([]byte, error) {
	c := doc.Contract

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle(fmt.Sprintf("Contract %s", c.ID), true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(g.fontName, "B", 16)
	pdf.CellFormat(0, 10, tr("Freelance Service Agreement"), "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Contract %s", c.ID), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Status: %s   Generated: %s", statusLabel(c.Status), formatDate(doc.GeneratedAt)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	section(pdf, g.fontName, "Project")
	pdf.SetFont(g.fontName, "", 10)
	pdf.MultiCell(0, 5, tr(safeValue(c.Title)), "", "L", false)
	if strings.TrimSpace(c.Description) != "" {
		pdf.MultiCell(0, 5, tr(c.Description), "", "L", false)
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Client: %s", c.ClientID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Freelancer: %s", c.FreelancerID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Start date: %s", formatDatePtr(c.StartDate)), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	section(pdf, g.fontName, "Milestones")
	headers := []string{"#", "Milestone", "Duration", "Amount", "Done"}
	colWidths := []float64{10, 90, 30, 30, 20}
	drawTableRow(pdf, g.fontName, headers, colWidths, true)
	for i, ms := range c.Milestones {
		done := "no"
		if ms.Completed {
			done = "yes"
		}
		drawTableRow(pdf, g.fontName, []string{
			fmt.Sprintf("%d", i+1),
			tr(ms.Name),
			tr(safeValue(ms.Duration)),
			formatAmount(ms.Amount, 2),
			done,
		}, colWidths, false)
	}
	pdf.Ln(2)

	section(pdf, g.fontName, "Payment terms")
	pdf.SetFont(g.fontName, "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Budget: %s %s", formatAmount(c.Budget.Amount, 2), c.Budget.Currency), "", 1, "L", false, 0, "")
	escrow := "not funded"
	if c.Escrow.Funded {
		escrow = "funded " + formatDatePtr(c.Escrow.FundedAt)
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Escrow: %s %s (%s)", formatAmount(c.PaymentTerms.EscrowAmount, 2), c.Escrow.Currency, escrow), "", 1, "L", false, 0, "")
	pdf.MultiCell(0, 5, tr(safeValue(c.PaymentTerms.ReleaseConditions)), "", "L", false)
	pdf.MultiCell(0, 5, tr(safeValue(c.PaymentTerms.PenaltyClause)), "", "L", false)

	if c.Status == model.ContractStatusDisputed {
		pdf.SetTextColor(200, 0, 0)
		pdf.MultiCell(0, 6, "This contract is under dispute.", "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.Ln(4)
	section(pdf, g.fontName, "Signatures")
	signatureBlock(pdf, g.fontName, tr, "Client", c.ClientSignature)
	signatureBlock(pdf, g.fontName, tr, "Freelancer", c.FreelancerSignature)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, fontName, title string) {
	pdf.SetFont(fontName, "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i == 3 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, col, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func signatureBlock(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, label string, sig model.Signature) {
	pdf.SetFont(fontName, "", 10)
	if !sig.Signed {
		pdf.CellFormat(0, 6, fmt.Sprintf("%s: ______________________ (not signed)", label), "", 1, "L", false, 0, "")
		return
	}
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s: %s, signed %s", label, sig.Signature, formatDatePtr(sig.SignedAt))), "", 1, "L", false, 0, "")
}

func statusLabel(status model.ContractStatus) string {
	return strings.ReplaceAll(string(status), "_", " ")
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatAmount(value float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, value)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatDate(*t)
}
