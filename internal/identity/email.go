package identity

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

// NormalizeEmail はメールアドレスを比較用の正規形に変換する。
// 前後の空白を除去し、小文字化したうえでドメイン部をIDNAのASCII形式（punycode）に変換する。
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", fmt.Errorf("invalid email address: %q", email)
	}

	local, domain := email[:at], email[at+1:]
	asciiDomain, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return "", fmt.Errorf("invalid email domain %q: %w", domain, err)
	}

	return local + "@" + asciiDomain, nil
}

// SameEmail は2つのメールアドレスが正規形で一致するかを返す。
// 正規化できないアドレスは大文字小文字を無視した単純比較にフォールバックする。
func SameEmail(a, b string) bool {
	na, errA := NormalizeEmail(a)
	nb, errB := NormalizeEmail(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return na == nb
}
