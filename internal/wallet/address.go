// Package wallet はカストディアル署名鍵の生成と代理署名を提供する。
package wallet

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

var addressRegex = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// DeriveAddress は公開鍵から署名アドレスを決定的に導出する。
func DeriveAddress(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return "0x" + hex.EncodeToString(sum[:20])
}

// ValidAddress はアドレスの形式が正しいかどうかを返す。
func ValidAddress(addr string) bool {
	return addressRegex.MatchString(addr)
}
