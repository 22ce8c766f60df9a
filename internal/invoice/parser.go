// Package invoice turns raw OCR segments into a structured invoice record:
// header fields, bank transfer details, and dynamically reconstructed line
// items. Patterns target the Japanese invoice layouts the service was built
// for, with English fallbacks where vendors mix both.
package invoice

import (
	"regexp"
	"strings"

	"invoicelens/internal/ocr"
)

type Invoice struct {
	InvoiceNumber string
	InvoiceDate   string
	DueDate       string
	VendorName    string
	Subtotal      string
	Tax           string
	TotalAmount   string
	Currency      string

	Bank      BankDetails
	LineItems []LineItem

	RawText  string
	Warnings []string
}

type BankDetails struct {
	BankName      string
	Branch        string
	AccountType   string
	AccountNumber string
	AccountHolder string
}

type LineItem struct {
	Description string
	UnitPrice   string
	Quantity    string
	Unit        string
	Amount      string
}

// Ordered pattern lists per header field; the first match wins.
var (
	invoiceNumberPatterns = compileAll(
		`(\d{8}-\d+)`,
		`(?:請求書|INVOICE)\s*No\.?[:：]?\s*([A-Za-z0-9\-]+)`,
		`請求\s*書\s*番号[:：]?\s*([A-Za-z0-9\-]+)`,
	)
	invoiceDatePatterns = compileAll(
		`(?:請求日|発行日)[:：]?\s*(\d{4}[/\-年]\d{1,2}[/\-月]?\d{1,2}日?)`,
		`(\d{4}/\d{1,2}/\d{1,2})`,
	)
	dueDatePatterns = compileAll(
		`(?:お?支払期限|支払期日)[:：]?\s*(\d{4}[/\-年]\d{1,2}[/\-月]?\d{1,2}日?)`,
		`(?:お?支払期限|支払期日)\s+(\d{4}年\d{1,2}月\d{1,2}日)`,
	)
	vendorPatterns = compileAll(
		`([^\s]+株式会社)`,
		`([^\s]+合同会社)`,
		`([^\s]+会社)`,
		`([^\s]+Corp\.?)`,
		`([^\s]+Ltd\.?)`,
		`([^\s]+Co\.,? ?Ltd\.?)`,
		`([^\s]+サービス)`,
	)
	totalPatterns = compileAll(
		`(?:合計|ご請求金額|総額)[:：]?\s*[¥￥半#]?\s*([\d,]+(?:\.\d{1,2})?)`,
		`小計\s*[\d,]+(?:\.\d{1,2})?\s*消費税\s*[\d,]+(?:\.\d{1,2})?\s*合計\s*([\d,]+(?:\.\d{1,2})?)`,
		`[¥￥]\s*([\d,]{4,}(?:\.\d{1,2})?)`,
	)
	subtotalPatterns = compileAll(
		`小計[:：]?\s*[¥￥半#]?\s*([\d,]+(?:\.\d{1,2})?)`,
	)
	taxPatterns = compileAll(
		`消費税[^\d¥￥]{0,8}[¥￥半#]?\s*([\d,]+(?:\.\d{1,2})?)`,
	)

	bankNamePatterns = compileAll(
		`([^\s]{1,15}銀行)`,
	)
	branchPatterns = compileAll(
		`([^\s]{1,15}支店)`,
	)
	accountTypePatterns = compileAll(
		`(普通|当座)`,
	)
	accountNumberPatterns = compileAll(
		`口座番号[:：]?\s*(\d{5,8})`,
		`(?:普通|当座)\s*(\d{5,8})`,
	)
	accountHolderPatterns = compileAll(
		`口座名義[:：]?\s*([^\s]+)`,
	)

	anyDatePattern = regexp.MustCompile(`(\d{4}[/\-年]\d{1,2}[/\-月]?\d{1,2}日?)`)
)

// requiredFields must be present for an extraction to pass validation;
// anything missing becomes a warning shown on the review page.
var requiredFields = []string{"invoice_number", "invoice_date", "vendor_name"}

// Parse extracts structured invoice data from OCR segments. It never fails:
// fields that cannot be found stay empty and are reported via Warnings.
func Parse(segments []ocr.Segment) *Invoice {
	texts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			texts = append(texts, t)
		}
	}
	allText := strings.Join(texts, " ")

	inv := &Invoice{RawText: allText}

	inv.InvoiceNumber = findFirst(invoiceNumberPatterns, allText)
	inv.InvoiceDate = findFirst(invoiceDatePatterns, allText)
	inv.DueDate = findFirst(dueDatePatterns, allText)
	inv.VendorName = findFirst(vendorPatterns, allText)
	inv.TotalAmount = cleanAmount(findFirst(totalPatterns, allText))
	inv.Subtotal = cleanAmount(findFirst(subtotalPatterns, allText))
	inv.Tax = cleanAmount(findFirst(taxPatterns, allText))
	inv.Currency = detectCurrency(allText)

	// Undated invoices still usually carry bare dates somewhere: first one
	// read is the issue date, second the due date.
	if inv.InvoiceDate == "" || inv.DueDate == "" {
		dates := anyDatePattern.FindAllString(allText, -1)
		if inv.InvoiceDate == "" && len(dates) >= 1 {
			inv.InvoiceDate = dates[0]
		}
		if inv.DueDate == "" && len(dates) >= 2 {
			inv.DueDate = dates[1]
		}
	}

	inv.Bank = parseBankDetails(allText)
	inv.LineItems = parseLineItems(segments)
	inv.Warnings = validate(inv)

	return inv
}

func parseBankDetails(text string) BankDetails {
	return BankDetails{
		BankName:      findFirst(bankNamePatterns, text),
		Branch:        findFirst(branchPatterns, text),
		AccountType:   findFirst(accountTypePatterns, text),
		AccountNumber: findFirst(accountNumberPatterns, text),
		AccountHolder: findFirst(accountHolderPatterns, text),
	}
}

func validate(inv *Invoice) []string {
	var warnings []string
	for _, field := range requiredFields {
		missing := false
		switch field {
		case "invoice_number":
			missing = inv.InvoiceNumber == ""
		case "invoice_date":
			missing = inv.InvoiceDate == ""
		case "vendor_name":
			missing = inv.VendorName == ""
		}
		if missing {
			warnings = append(warnings, "missing "+field)
		}
	}
	return warnings
}

func findFirst(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[len(m)-1])
		}
	}
	return ""
}

func detectCurrency(text string) string {
	switch {
	case strings.ContainsAny(text, "¥￥") || strings.Contains(text, "円"):
		return "JPY"
	case strings.Contains(text, "$"):
		return "USD"
	case strings.Contains(text, "€"):
		return "EUR"
	}
	return ""
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}
