package textnorm

import (
	"html"
	"strings"
)

// maxDecodePasses bounds the fixpoint loop. Every pass that changes the input
// makes it strictly shorter, so this only guards against pathological nesting.
const maxDecodePasses = 16

// mojibake maps UTF-8 sequences that were decoded as Windows-1252/Latin-1
// back to the intended characters. Longer keys come first; Replacer compares
// in argument order.
var mojibake = strings.NewReplacer(
	"â€™", "’",
	"â€˜", "‘",
	"â€œ", "“",
	"â€\u009d", "”",
	"â€“", "–",
	"â€”", "—",
	"â€¢", "•",
	"â€¦", "…",
	"â‚¬", "€",
	"â„¢", "™",
	"Ã©", "é",
	"Ã¨", "è",
	"Ãª", "ê",
	"Ã«", "ë",
	"Ã¡", "á",
	"Ã¢", "â",
	"Ã¤", "ä",
	"Ã§", "ç",
	"Ã\u00ad", "í",
	"Ã®", "î",
	"Ã¯", "ï",
	"Ã³", "ó",
	"Ã´", "ô",
	"Ã¶", "ö",
	"Ã±", "ñ",
	"Ãº", "ú",
	"Ã»", "û",
	"Ã¼", "ü",
	"Ã‰", "É",
	"ÃŸ", "ß",
	"Ã\u00a0", "à",
	"Â\u00a0", " ",
	"Â·", "·",
	"Â°", "°",
	"Â©", "©",
	"Â®", "®",
)

// DecodeHTMLEntities decodes named and numeric entities and repairs common
// mojibake. Double-encoded input ("&amp;lt;") is decoded until stable, so
// applying it twice is the same as applying it once.
func DecodeHTMLEntities(s string) string {
	for i := 0; i < maxDecodePasses; i++ {
		next := mojibake.Replace(html.UnescapeString(s))
		if next == s {
			return s
		}
		s = next
	}
	return s
}
