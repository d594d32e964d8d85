package utils

import "strings"

// NormalizePhone strips spacing and the leading plus from a phone
// number, leaving the bare MSISDN digits mobile-money gateways expect.
func NormalizePhone(phone string) string {
	phone = strings.ReplaceAll(phone, " ", "")
	return strings.TrimPrefix(phone, "+")
}
