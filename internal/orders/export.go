package orders

import (
	"fmt"
	"strconv"
	"strings"
)

// exportHeader matches the column layout the desktop import tooling expects.
const exportHeader = "STT,Mã QR,Ngày,Giờ,Thời lượng (s),Dung lượng (MB),Số sản phẩm"

// Export renders the given orders as delimited text, one row per order. The
// code field is quoted with embedded quotes doubled.
func Export(list []Order) []byte {
	var b strings.Builder
	b.WriteString(exportHeader)
	b.WriteByte('\n')
	for i, o := range list {
		row := []string{
			strconv.Itoa(i + 1),
			quoteField(o.QRCode),
			o.Date,
			o.Time,
			strconv.Itoa(o.DurationSeconds),
			fmt.Sprintf("%.2f", o.SizeMB),
			strconv.Itoa(o.ProductCount),
		}
		b.WriteString(strings.Join(row, ","))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func quoteField(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
