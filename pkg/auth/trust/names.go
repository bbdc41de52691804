package trust

import (
	"crypto/x509"
	encasn1 "encoding/asn1"
	"errors"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/marmos91/filerealm/internal/logger"
)

var (
	oidSubjectAltName = encasn1.ObjectIdentifier{2, 5, 29, 17}
	oidCommonName     = encasn1.ObjectIdentifier{2, 5, 4, 3}

	// otherName is GeneralName [0]; its value is wrapped in [0] EXPLICIT.
	tagOtherName = cbasn1.Tag(0).Constructed().ContextSpecific()
)

// ErrMalformedSAN is returned when the subjectAltName extension cannot be parsed.
var ErrMalformedSAN = errors.New("trust: malformed subjectAltName extension")

// ExtractCommonNames returns the common names carried as subjectAltName
// otherName entries with type-id 2.5.4.3 (id-at-commonName). Entries with
// other type-ids are ignored.
func ExtractCommonNames(cert *x509.Certificate) ([]string, error) {
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oidSubjectAltName) {
			return parseOtherNameCNs(ext.Value)
		}
	}
	return nil, nil
}

func parseOtherNameCNs(der []byte) ([]string, error) {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, ErrMalformedSAN
	}

	var names []string
	for !seq.Empty() {
		var gn cryptobyte.String
		var tag cbasn1.Tag
		if !seq.ReadAnyASN1(&gn, &tag) {
			return nil, ErrMalformedSAN
		}
		if tag != tagOtherName {
			continue
		}

		var typeID encasn1.ObjectIdentifier
		var wrapped cryptobyte.String
		if !gn.ReadASN1ObjectIdentifier(&typeID) || !gn.ReadASN1(&wrapped, tagOtherName) {
			return nil, ErrMalformedSAN
		}
		if !typeID.Equal(oidCommonName) {
			logger.Debug("ignoring otherName with unsupported type-id", "type_id", typeID.String())
			continue
		}

		var value cryptobyte.String
		var valueTag cbasn1.Tag
		if !wrapped.ReadAnyASN1(&value, &valueTag) {
			return nil, ErrMalformedSAN
		}
		switch valueTag {
		case cbasn1.UTF8String, cbasn1.PrintableString, cbasn1.IA5String:
			names = append(names, string(value))
		default:
			logger.Debug("ignoring otherName common name with unsupported string type", "tag", int(valueTag))
		}
	}
	return names, nil
}
