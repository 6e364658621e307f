package views

import (
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// renderQR draws content as a QR code with half-block characters, two
// module rows per terminal line.
func renderQR(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "", err
	}
	bitmap := qr.Bitmap()

	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		sb.WriteString("  ")
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bot := y+1 < len(bitmap) && bitmap[y+1][x]
			sb.WriteRune(halfBlocks[btoi(top)<<1|btoi(bot)])
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// halfBlocks is indexed by top<<1 | bottom.
var halfBlocks = [4]rune{' ', '▄', '▀', '█'}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ContactURI is the link a phone scans to reach a handle: sms: for phone
// numbers, mailto: for email addresses. Group chats have none.
func ContactURI(id string, group bool) string {
	if group || id == "" {
		return ""
	}
	if strings.Contains(id, "@") {
		return "mailto:" + id
	}
	return "sms:" + id
}
