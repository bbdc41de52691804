package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/filerealm/pkg/auth/trust"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the rules that span sections.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed on the '%s' tag", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	if cfg.Trust.Enabled && !cfg.API.TLS.Enabled() {
		return errors.New("invalid configuration: trust.enabled requires api.tls.cert_file and api.tls.key_file")
	}
	if cfg.API.JWT.Secret != "" && len(cfg.API.JWT.Secret) < 32 {
		return errors.New("invalid configuration: api.jwt.secret must be at least 32 characters")
	}
	if cfg.LDAP.Enabled && !strings.Contains(cfg.LDAP.UserDNTemplate, "{0}") {
		return errors.New("invalid configuration: ldap.user_dn_template must contain {0}")
	}
	return nil
}

// ValidateTrustRestrictions loads the restrictions file once so a broken
// file is reported by "config validate" instead of silently rejecting every
// client at runtime.
func ValidateTrustRestrictions(cfg *Config) error {
	if !cfg.Trust.Enabled {
		return nil
	}
	if _, err := trust.LoadNames(cfg.Trust.RestrictionsFile); err != nil {
		return fmt.Errorf("invalid trust restrictions: %w", err)
	}
	return nil
}
