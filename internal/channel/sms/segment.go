package sms

import "unicode/utf16"

// Segment limits, in septets for GSM-7 and UTF-16 code units for UCS-2.
const (
	gsmSingle  = 160
	gsmPart    = 153
	ucs2Single = 70
	ucs2Part   = 67
)

const gsmBasic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

const gsmExtension = "\f^{}\\[~]|€"

var gsmCost = func() map[rune]int {
	m := make(map[rune]int, len(gsmBasic)+len(gsmExtension))
	for _, r := range gsmBasic {
		m[r] = 1
	}
	for _, r := range gsmExtension {
		m[r] = 2
	}
	return m
}()

// IsGSM7 reports whether text can be encoded in the GSM 03.38 alphabet.
func IsGSM7(text string) bool {
	for _, r := range text {
		if _, ok := gsmCost[r]; !ok {
			return false
		}
	}
	return true
}

// Divide splits text into parts that each fit one SMS segment. Text that fits
// a single segment is returned as one part. Escape sequences and surrogate
// pairs are never split across parts.
func Divide(text string) []string {
	if text == "" {
		return []string{""}
	}

	gsm := IsGSM7(text)
	cost := func(r rune) int {
		if gsm {
			return gsmCost[r]
		}
		return len(utf16.Encode([]rune{r}))
	}

	single, part := ucs2Single, ucs2Part
	if gsm {
		single, part = gsmSingle, gsmPart
	}

	total := 0
	for _, r := range text {
		total += cost(r)
	}
	if total <= single {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	start, used := 0, 0
	for i, r := range runes {
		c := cost(r)
		if used+c > part {
			parts = append(parts, string(runes[start:i]))
			start, used = i, 0
		}
		used += c
	}
	parts = append(parts, string(runes[start:]))
	return parts
}
