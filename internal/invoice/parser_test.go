package invoice

import (
	"testing"

	"invoicelens/internal/ocr"
)

// seg builds a positioned segment. Width/height are arbitrary but realistic
// enough for row grouping.
func seg(text string, left, top float64) ocr.Segment {
	return ocr.Segment{
		Text:       text,
		Confidence: 0.9,
		Box:        ocr.Box{Left: left, Top: top, Right: left + 80, Bottom: top + 20},
		HasBox:     true,
	}
}

func sampleInvoiceSegments() []ocr.Segment {
	return []ocr.Segment{
		seg("INVOICE", 50, 40),
		seg("請求書番号: INV-2024-001", 50, 80),
		seg("請求日: 2024-06-01", 50, 110),
		seg("お支払期限: 2024-06-30", 50, 140),
		seg("アクメ株式会社", 400, 80),

		// line items
		seg("ウェブ開発", 50, 400),
		seg("10,000", 300, 402),
		seg("1", 400, 401),
		seg("式", 450, 400),
		seg("10,000", 500, 403),

		seg("保守サポート", 50, 440),
		seg("2", 380, 441),
		seg("6,000", 500, 439),

		// totals block
		seg("小計 16,000", 400, 500),
		seg("消費税 1,600", 400, 530),
		seg("合計 ¥17,600", 400, 560),

		// bank transfer block
		seg("振込先: りそな銀行 秋葉原支店", 50, 620),
		seg("普通 1234567", 50, 650),
		seg("口座名義 カ)アクメ", 50, 680),
	}
}

func TestParse_HeaderFields(t *testing.T) {
	inv := Parse(sampleInvoiceSegments())

	if inv.InvoiceNumber != "INV-2024-001" {
		t.Errorf("invoice number = %q, want INV-2024-001", inv.InvoiceNumber)
	}
	if inv.InvoiceDate != "2024-06-01" {
		t.Errorf("invoice date = %q, want 2024-06-01", inv.InvoiceDate)
	}
	if inv.DueDate != "2024-06-30" {
		t.Errorf("due date = %q, want 2024-06-30", inv.DueDate)
	}
	if inv.VendorName != "アクメ株式会社" {
		t.Errorf("vendor = %q, want アクメ株式会社", inv.VendorName)
	}
	if inv.Subtotal != "16,000" {
		t.Errorf("subtotal = %q, want 16,000", inv.Subtotal)
	}
	if inv.Tax != "1,600" {
		t.Errorf("tax = %q, want 1,600", inv.Tax)
	}
	if inv.TotalAmount != "17,600" {
		t.Errorf("total = %q, want 17,600", inv.TotalAmount)
	}
	if inv.Currency != "JPY" {
		t.Errorf("currency = %q, want JPY", inv.Currency)
	}
	if len(inv.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", inv.Warnings)
	}
}

func TestParse_BankDetails(t *testing.T) {
	inv := Parse(sampleInvoiceSegments())

	if inv.Bank.BankName != "りそな銀行" {
		t.Errorf("bank = %q, want りそな銀行", inv.Bank.BankName)
	}
	if inv.Bank.Branch != "秋葉原支店" {
		t.Errorf("branch = %q, want 秋葉原支店", inv.Bank.Branch)
	}
	if inv.Bank.AccountType != "普通" {
		t.Errorf("account type = %q, want 普通", inv.Bank.AccountType)
	}
	if inv.Bank.AccountNumber != "1234567" {
		t.Errorf("account number = %q, want 1234567", inv.Bank.AccountNumber)
	}
	if inv.Bank.AccountHolder != "カ)アクメ" {
		t.Errorf("account holder = %q, want カ)アクメ", inv.Bank.AccountHolder)
	}
}

func TestParse_LineItems(t *testing.T) {
	inv := Parse(sampleInvoiceSegments())

	if len(inv.LineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d: %+v", len(inv.LineItems), inv.LineItems)
	}

	first := inv.LineItems[0]
	if first.Description != "ウェブ開発" {
		t.Errorf("first description = %q", first.Description)
	}
	if first.UnitPrice != "10,000" || first.Quantity != "1" || first.Amount != "10,000" {
		t.Errorf("first item columns = %q / %q / %q", first.UnitPrice, first.Quantity, first.Amount)
	}
	if first.Unit != "式" {
		t.Errorf("first unit = %q, want 式", first.Unit)
	}

	second := inv.LineItems[1]
	if second.Description != "保守サポート" {
		t.Errorf("second description = %q", second.Description)
	}
	if second.Quantity != "2" || second.Amount != "6,000" {
		t.Errorf("second item qty/amount = %q / %q", second.Quantity, second.Amount)
	}
	// unit price is back-filled from amount / quantity
	if second.UnitPrice != "3,000" {
		t.Errorf("second unit price = %q, want 3,000", second.UnitPrice)
	}
}

func TestParse_DateFallback(t *testing.T) {
	inv := Parse([]ocr.Segment{
		seg("2024/07/01", 50, 100),
		seg("2024/07/31", 50, 130),
	})

	if inv.InvoiceDate != "2024/07/01" {
		t.Errorf("invoice date = %q, want 2024/07/01", inv.InvoiceDate)
	}
	if inv.DueDate != "2024/07/31" {
		t.Errorf("due date = %q, want 2024/07/31", inv.DueDate)
	}
}

func TestParse_MissingFieldsWarn(t *testing.T) {
	inv := Parse([]ocr.Segment{seg("なにかのメモ", 50, 100)})

	want := map[string]bool{
		"missing invoice_number": true,
		"missing invoice_date":   true,
		"missing vendor_name":    true,
	}
	if len(inv.Warnings) != len(want) {
		t.Fatalf("warnings = %v", inv.Warnings)
	}
	for _, w := range inv.Warnings {
		if !want[w] {
			t.Errorf("unexpected warning %q", w)
		}
	}
}

func TestParse_EmptyInput(t *testing.T) {
	inv := Parse(nil)
	if inv == nil {
		t.Fatal("expected non-nil invoice")
	}
	if len(inv.LineItems) != 0 {
		t.Errorf("expected no line items, got %v", inv.LineItems)
	}
	if len(inv.Warnings) != 3 {
		t.Errorf("expected 3 warnings, got %v", inv.Warnings)
	}
}

func TestParse_UnboxedSegmentsSplitIntoCells(t *testing.T) {
	inv := Parse([]ocr.Segment{
		{Text: "コーヒー豆 500 2 1,000", Confidence: 1},
		{Text: "合計 ¥1,000", Confidence: 1},
	})

	if len(inv.LineItems) != 1 {
		t.Fatalf("expected 1 line item, got %d: %+v", len(inv.LineItems), inv.LineItems)
	}
	item := inv.LineItems[0]
	if item.Description != "コーヒー豆" {
		t.Errorf("description = %q", item.Description)
	}
	if item.UnitPrice != "500" || item.Quantity != "2" || item.Amount != "1,000" {
		t.Errorf("columns = %q / %q / %q", item.UnitPrice, item.Quantity, item.Amount)
	}
	if inv.TotalAmount != "1,000" {
		t.Errorf("total = %q, want 1,000", inv.TotalAmount)
	}
}

func TestParse_VendorFallbacks(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"グローバル合同会社 請求", "グローバル合同会社"},
		{"Issued by AcmeCorp. today", "AcmeCorp."},
		{"クリーニングサービス への支払い", "クリーニングサービス"},
	}
	for _, tt := range tests {
		inv := Parse([]ocr.Segment{seg(tt.text, 10, 10)})
		if inv.VendorName != tt.want {
			t.Errorf("Parse(%q).VendorName = %q, want %q", tt.text, inv.VendorName, tt.want)
		}
	}
}
