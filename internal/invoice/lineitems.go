package invoice

import (
	"regexp"
	"strings"

	"invoicelens/internal/ocr"
)

// Header and footer phrases that never belong to a line item row.
var skipTerms = []string{
	"請求書番号", "請求日", "お支払期限", "振込先", "小計", "消費税", "合計",
	"INVOICE", "TEL:", "登録番号", "東京都", "御中", "様", "担当者",
	"備考", "下記のとおり", "ご請求金額",
	"年", "月", "日", "消費税対象", "口座", "銀行", "振込手数料",
	"支店", "口座番号", "口座名義", "普通", "当座", "税抜金額", "税込み",
	"商品コード", "伝票番号", "番号",
}

// Explicit column headers that may appear inside the line item area.
var columnHeaders = map[string]bool{
	"品目名": true, "商品名": true, "サービス内容": true, "明細": true,
	"単価": true, "数量": true, "金額": true, "単位": true,
}

var unitWords = map[string]bool{
	"パック": true, "kg": true, "g": true, "個": true, "本": true,
	"枚": true, "セット": true, "袋": true, "円": true, "式": true,
	"件": true, "個口": true,
}

var punctuationOnly = map[string]bool{
	"-": true, "/": true, "\\": true, "|": true, "=": true, "_": true,
	".": true, ":": true, ";": true, "(": true, ")": true, "#": true,
	"半": true, "¥": true, "￥": true,
}

var (
	bareDatePattern = regexp.MustCompile(`^\d{4}[/\-年]\d{1,2}[/\-月]?\d{1,2}日?$`)
	timePattern     = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
	numericCell     = regexp.MustCompile(`^[0-9,]+(\.[0-9]+)?$`)
	numericNoise    = regexp.MustCompile(`^[0-9\s#¥￥]+$`)
)

// parseLineItems reconstructs the invoice body: noise is filtered out,
// surviving segments are grouped into visual rows, and each row's cells are
// assigned to description / unit price / quantity / amount columns.
func parseLineItems(segments []ocr.Segment) []LineItem {
	relevant := make([]ocr.Segment, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" || punctuationOnly[text] {
			continue
		}
		if containsAny(text, skipTerms) {
			continue
		}
		if columnHeaders[text] {
			continue
		}
		if bareDatePattern.MatchString(text) || timePattern.MatchString(text) {
			continue
		}
		relevant = append(relevant, seg)
	}

	var items []LineItem
	for _, row := range groupRows(relevant) {
		if item, ok := parseRow(row); ok {
			items = append(items, item)
		}
	}
	return items
}

func parseRow(row []ocr.Segment) (LineItem, bool) {
	var descriptionParts []string
	var numbers []string
	var unit string

	for _, seg := range row {
		text := strings.TrimSpace(seg.Text)
		switch {
		case numericCell.MatchString(text):
			numbers = append(numbers, text)
		case unitWords[text]:
			unit = text
		default:
			if !numericNoise.MatchString(text) && text != "INVOICE" && text != "TEL" {
				descriptionParts = append(descriptionParts, text)
			}
		}
	}

	description := strings.TrimSpace(strings.Join(descriptionParts, " "))
	if description == "" && len(numbers) < 2 {
		return LineItem{}, false
	}

	item := LineItem{Description: description, Unit: unit}

	cleaned := make([]string, 0, len(numbers))
	values := make([]float64, 0, len(numbers))
	for _, n := range numbers {
		c := cleanAmount(n)
		if c == "" {
			continue
		}
		cleaned = append(cleaned, c)
		if v, ok := parseNumber(c); ok {
			values = append(values, v)
		}
	}

	switch {
	case len(cleaned) >= 3:
		item.UnitPrice = cleaned[0]
		item.Quantity = cleaned[1]
		item.Amount = cleaned[2]
	case len(cleaned) == 2:
		// A small leading number reads as a quantity; otherwise assume
		// unit price followed by amount.
		if len(values) == 2 && values[0] < values[1] && values[0] < 1000 {
			item.Quantity = cleaned[0]
			item.Amount = cleaned[1]
		} else {
			item.UnitPrice = cleaned[0]
			item.Amount = cleaned[1]
		}
	case len(cleaned) == 1:
		item.Amount = cleaned[0]
	}

	completeRow(&item)

	if item.Description == "" || (item.Amount == "" && item.UnitPrice == "" && item.Quantity == "") {
		return LineItem{}, false
	}
	return item, true
}

// completeRow back-fills whichever of quantity, unit price, and amount is
// missing when the other two are present.
func completeRow(item *LineItem) {
	qty, hasQty := parseNumber(item.Quantity)
	price, hasPrice := parseNumber(item.UnitPrice)
	amount, hasAmount := parseNumber(item.Amount)

	switch {
	case hasQty && hasPrice && !hasAmount:
		item.Amount = formatAmount(qty * price)
	case hasQty && hasAmount && !hasPrice && qty > 0:
		item.UnitPrice = formatNumber(amount / qty)
	case hasPrice && hasAmount && !hasQty && price > 0:
		item.Quantity = formatNumber(amount / price)
	}
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
