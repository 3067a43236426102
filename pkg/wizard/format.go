package wizard

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ibsar/voicedialog/pkg/backend"
)

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' || r == '\''
}

func runeLen(s string) int {
	return utf8.RuneCountInString(strings.ReplaceAll(s, " ", ""))
}

// Amount formats money for speech: whole amounts without decimals, others
// with at most two.
func Amount(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	return strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
}

// DescribeBalance renders a balance sentence.
func DescribeBalance(b backend.Balance) string {
	return fmt.Sprintf("رصيدك هو %s دينار.", Amount(b.Amount))
}

// DescribeTransaction renders one history entry as a sentence.
func DescribeTransaction(tx backend.Transaction) string {
	amount := Amount(math.Abs(tx.Amount))
	switch tx.Type {
	case backend.TxTransferOut:
		return fmt.Sprintf("حولت %s دينار لـ %s.", amount, orUnknown(tx.Meta.ToName))
	case backend.TxTransferIn:
		return fmt.Sprintf("وصلك %s دينار من عند %s.", amount, orUnknown(tx.Meta.FromName))
	case backend.TxCheckout:
		return fmt.Sprintf("شريت قضية بـ %s دينار.", amount)
	}
	return fmt.Sprintf("عملية بقيمة %s دينار.", amount)
}

func orUnknown(name string) string {
	if name == "" {
		return "شخص"
	}
	return name
}

// DescribeTransactions reads at most limit entries.
func DescribeTransactions(txs []backend.Transaction, limit int) string {
	if len(txs) == 0 {
		return "ما عندك حتى عملية."
	}
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	parts := make([]string, 0, len(txs)+1)
	parts = append(parts, "آخر العمليات:")
	for _, tx := range txs {
		parts = append(parts, DescribeTransaction(tx))
	}
	return strings.Join(parts, " ")
}

// DescribeProduct renders a product name and price.
func DescribeProduct(p backend.Product) string {
	return fmt.Sprintf("%s بـ %s دينار", p.Name, Amount(p.Price))
}

// DescribeProducts reads at most limit products.
func DescribeProducts(products []backend.Product, limit int) string {
	if len(products) == 0 {
		return "ما فماش منتوجات توّة."
	}
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	parts := make([]string, 0, len(products))
	for _, p := range products {
		parts = append(parts, DescribeProduct(p))
	}
	return "عندنا: " + strings.Join(parts, "، ") + "."
}

// DescribeCart reads at most limit cart lines and the total.
func DescribeCart(c backend.Cart, limit int) string {
	if c.Empty() {
		return "السلة فارغة."
	}
	lines := c.Lines
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%d %s", l.Quantity, l.Product.Name))
	}
	return fmt.Sprintf("في السلة: %s. المجموع %s دينار.", strings.Join(parts, "، "), Amount(c.Total()))
}
