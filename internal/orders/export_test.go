package orders

import (
	"strings"
	"testing"
	"time"
)

func TestExportHeaderAndRows(t *testing.T) {
	list := []Order{
		{
			ID:              2,
			QRCode:          "DH0002",
			Date:            "21/10/2025",
			Time:            "09:15:00",
			DurationSeconds: 34,
			SizeMB:          6.126,
			ProductCount:    2,
			CreatedAt:       time.Now(),
		},
		{
			ID:              1,
			QRCode:          `SP"12"`,
			Date:            "20/10/2025",
			Time:            "14:30:00",
			DurationSeconds: 12,
			SizeMB:          2.5,
			ProductCount:    1,
			CreatedAt:       time.Now(),
		},
	}

	out := string(Export(list))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "STT,Mã QR,Ngày,Giờ,Thời lượng (s),Dung lượng (MB),Số sản phẩm" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != `1,"DH0002",21/10/2025,09:15:00,34,6.13,2` {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	// Embedded quotes are doubled inside the quoted code field.
	if lines[2] != `2,"SP""12""",20/10/2025,14:30:00,12,2.50,1` {
		t.Fatalf("unexpected quoted row %q", lines[2])
	}
}

func TestExportEmptyListIsHeaderOnly(t *testing.T) {
	out := string(Export(nil))
	if out != "STT,Mã QR,Ngày,Giờ,Thời lượng (s),Dung lượng (MB),Số sản phẩm\n" {
		t.Fatalf("unexpected output %q", out)
	}
}
