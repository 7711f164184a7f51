package pdf

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var ErrEmptyDocument = errors.New("empty_invoice_document")

// RowGroup is one printed row: every line sharing a baris number.
type RowGroup struct {
	Baris int
	Lines []DocumentLine
}

type MarotoProvider struct{}

func New() Provider {
	return &MarotoProvider{}
}

// GroupRows groups lines by baris, ordered by baris and then by their
// original order.
func GroupRows(lines []DocumentLine) []RowGroup {
	sorted := make([]DocumentLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Baris < sorted[j].Baris })

	groups := make([]RowGroup, 0, len(sorted))
	for _, line := range sorted {
		if n := len(groups); n > 0 && groups[n-1].Baris == line.Baris {
			groups[n-1].Lines = append(groups[n-1].Lines, line)
			continue
		}
		groups = append(groups, RowGroup{Baris: line.Baris, Lines: []DocumentLine{line}})
	}
	return groups
}

func (p *MarotoProvider) GenerateInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Number) == "" {
		return nil, ErrEmptyDocument
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Halaman {current} dari {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	addHeader(m, doc)
	addParties(m, doc)
	addLineTable(m, doc)
	addTotals(m, doc)
	addPaymentDetails(m, doc)
	addSignature(m, doc)

	out, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return out.GetBytes(), nil
}

func addHeader(m core.Maroto, doc InvoiceDocument) {
	m.AddRow(12,
		text.NewCol(8, doc.Issuer.Name, props.Text{Size: 14, Style: fontstyle.Bold}),
		text.NewCol(4, "INVOICE", props.Text{Size: 18, Style: fontstyle.Bold, Align: align.Right}),
	)

	issuer := joinNonEmpty(", ", doc.Issuer.Address, doc.Issuer.City)
	contact := joinNonEmpty(" | ", doc.Issuer.Phone, doc.Issuer.Email)
	m.AddRow(14,
		col.New(8).Add(
			text.New(issuer, props.Text{Size: 9}),
			text.New(contact, props.Text{Size: 9, Top: 4}),
			text.New(labelled("NPWP", doc.Issuer.NPWP), props.Text{Size: 9, Top: 8}),
		),
		col.New(4).Add(
			text.New(doc.Number, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
			text.New(statusLabel(doc.Status), props.Text{Size: 9, Top: 5, Align: align.Right}),
		),
	)
}

func addParties(m core.Maroto, doc InvoiceDocument) {
	due := "-"
	if doc.DueDate != nil {
		due = FormatDate(*doc.DueDate)
	}

	m.AddRow(28,
		col.New(7).Add(
			text.New("Kepada Yth.", props.Text{Size: 9, Style: fontstyle.Bold, Top: 4}),
			text.New(doc.BillTo.Name, props.Text{Size: 10, Style: fontstyle.Bold, Top: 9}),
			text.New(joinNonEmpty(", ", doc.BillTo.Address, doc.BillTo.City), props.Text{Size: 9, Top: 14}),
			text.New(labelled("NPWP", doc.BillTo.NPWP), props.Text{Size: 9, Top: 19}),
		),
		col.New(5).Add(
			text.New("Tanggal invoice: "+FormatDate(doc.InvoiceDate), props.Text{Size: 9, Top: 4, Align: align.Right}),
			text.New("Jatuh tempo: "+due, props.Text{Size: 9, Top: 9, Align: align.Right}),
		),
	)
}

func addLineTable(m core.Maroto, doc InvoiceDocument) {
	header := props.Text{Size: 9, Style: fontstyle.Bold}
	headerRight := props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}
	m.AddRow(8,
		text.NewCol(1, "No", header),
		text.NewCol(5, "Uraian", header),
		text.NewCol(1, "Qty", headerRight),
		text.NewCol(2, "Harga", headerRight),
		text.NewCol(3, "Jumlah", headerRight),
	)

	cell := props.Text{Size: 9}
	cellRight := props.Text{Size: 9, Align: align.Right}
	for _, group := range GroupRows(doc.Lines) {
		for i, line := range group.Lines {
			number := ""
			if i == 0 {
				number = strconv.Itoa(group.Baris)
			}
			m.AddRow(7,
				text.NewCol(1, number, cell),
				text.NewCol(5, lineLabel(line), cell),
				text.NewCol(1, strconv.FormatInt(line.Quantity, 10), cellRight),
				text.NewCol(2, FormatRupiah(line.UnitPrice), cellRight),
				text.NewCol(3, FormatRupiah(line.LineTotal), cellRight),
			)
		}
	}
}

func addTotals(m core.Maroto, doc InvoiceDocument) {
	label := props.Text{Size: 9}
	value := props.Text{Size: 9, Align: align.Right}
	m.AddRow(7,
		col.New(6),
		text.NewCol(3, "Subtotal", label),
		text.NewCol(3, FormatRupiah(doc.Subtotal), value),
	)
	m.AddRow(7,
		col.New(6),
		text.NewCol(3, "PPN "+FormatPercentage(doc.VATPercentage), label),
		text.NewCol(3, FormatRupiah(doc.VATAmount), value),
	)
	m.AddRow(8,
		col.New(6),
		text.NewCol(3, "Total", props.Text{Size: 10, Style: fontstyle.Bold}),
		text.NewCol(3, FormatRupiah(doc.Total), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(10,
		text.NewCol(12, "Terbilang: "+strings.ToUpper(Terbilang(doc.Total)), props.Text{Size: 9, Style: fontstyle.Italic, Top: 2}),
	)
}

func addPaymentDetails(m core.Maroto, doc InvoiceDocument) {
	if doc.Bank == nil && strings.TrimSpace(doc.Notes) == "" {
		return
	}
	if doc.Bank != nil {
		m.AddRow(22,
			col.New(12).Add(
				text.New("Pembayaran ditransfer ke:", props.Text{Size: 9, Style: fontstyle.Bold, Top: 2}),
				text.New(joinNonEmpty(" - ", doc.Bank.BankName, doc.Bank.Branch), props.Text{Size: 9, Top: 7}),
				text.New("No. Rekening: "+doc.Bank.AccountNumber, props.Text{Size: 9, Top: 11}),
				text.New("Atas Nama: "+doc.Bank.AccountHolder, props.Text{Size: 9, Top: 15}),
			),
		)
	}
	if notes := strings.TrimSpace(doc.Notes); notes != "" {
		m.AddRow(10, text.NewCol(12, "Catatan: "+notes, props.Text{Size: 9, Top: 2}))
	}
}

func addSignature(m core.Maroto, doc InvoiceDocument) {
	city := doc.Issuer.City
	if city == "" {
		city = doc.Issuer.Name
	}
	m.AddRow(36,
		col.New(8),
		col.New(4).Add(
			text.New(joinNonEmpty(", ", city, FormatDate(doc.InvoiceDate)), props.Text{Size: 9, Top: 4, Align: align.Center}),
			text.New(doc.SignatoryName, props.Text{Size: 9, Style: fontstyle.BoldItalic, Top: 26, Align: align.Center}),
			text.New(doc.SignatoryTitle, props.Text{Size: 9, Top: 30, Align: align.Center}),
		),
	)
}

func lineLabel(line DocumentLine) string {
	if desc := strings.TrimSpace(line.Description); desc != "" {
		return desc
	}
	return joinNonEmpty(" - ", line.WorkerName, line.JobTitle)
}

func statusLabel(status string) string {
	switch strings.ToUpper(status) {
	case "DRAFT":
		return "DRAFT"
	case "PAID":
		return "LUNAS"
	case "CANCELLED":
		return "DIBATALKAN"
	default:
		return ""
	}
}

func labelled(label, value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return label + ": " + value
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
