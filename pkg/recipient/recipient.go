package recipient

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

var ErrRecipientResolution = errors.New("no valid recipient address")

var validate = validator.New()

// ParseList splits a comma separated address list, as stored in Redmine
// custom fields, into valid unique addresses. Invalid entries are logged and
// dropped.
func ParseList(raw string) ([]string, error) {
	var addresses []string
	for _, part := range strings.Split(raw, ",") {
		address := strings.TrimSpace(part)
		if address == "" {
			continue
		}
		if err := validate.Var(address, "email"); err != nil {
			log.Warnf("Ignoring invalid email address %q", address)
			continue
		}
		addresses = append(addresses, address)
	}
	addresses = lo.UniqBy(addresses, strings.ToLower)
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w in %q", ErrRecipientResolution, raw)
	}
	return addresses, nil
}

// Resolve returns the addresses a report goes to. A non-empty testEmail
// replaces every real recipient without validating raw.
func Resolve(raw string, testEmail string) ([]string, error) {
	if testEmail != "" {
		log.Debugf("Redirecting report for %q to test address %s", raw, testEmail)
		return []string{testEmail}, nil
	}
	return ParseList(raw)
}

// Valid reports whether address is a syntactically valid email address.
func Valid(address string) bool {
	return validate.Var(address, "required,email") == nil
}
