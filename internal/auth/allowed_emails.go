package auth

import "strings"

// AllowedEmails はサインインを許可するメールアドレスの条件。
// ドメインとアドレスのどちらも空の場合は全てのメールアドレスを許可する。
type AllowedEmails struct {
	domains   map[string]struct{}
	addresses map[string]struct{}
}

// NewAllowedEmails はAllowedEmailsを生成する。比較は大文字小文字を区別しない。
func NewAllowedEmails(domains, addresses []string) *AllowedEmails {
	a := &AllowedEmails{
		domains:   make(map[string]struct{}, len(domains)),
		addresses: make(map[string]struct{}, len(addresses)),
	}
	for _, d := range domains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			a.domains[d] = struct{}{}
		}
	}
	for _, addr := range addresses {
		if addr = strings.ToLower(strings.TrimSpace(addr)); addr != "" {
			a.addresses[addr] = struct{}{}
		}
	}
	return a
}

// Allows はemailがサインインを許可されているかを返す。
func (a *AllowedEmails) Allows(email string) bool {
	if a == nil || (len(a.domains) == 0 && len(a.addresses) == 0) {
		return true
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := a.addresses[email]; ok {
		return true
	}

	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	_, ok := a.domains[email[at+1:]]
	return ok
}
