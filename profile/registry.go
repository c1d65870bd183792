package profile

import "strings"

// Registry maps page-specific field identifiers to canonical profile keys.
// It is built once from a static alias table; the reverse lookup is total,
// so every alias and every canonical key resolves to exactly one canonical key.
// Aliases need not be disjoint across keys in the source table: the
// later-registered mapping silently overwrites the earlier one.
type Registry struct {
	reverse map[string]string
}

// NewRegistry builds a Registry from canonical key → alias list entries.
// All lookups are lower-cased; the table should already be lower-case.
func NewRegistry(entries map[string][]string, order []string) *Registry {
	r := &Registry{reverse: make(map[string]string)}
	for _, key := range order {
		r.register(key, entries[key])
	}
	return r
}

func (r *Registry) register(key string, aliases []string) {
	r.reverse[strings.ToLower(key)] = key
	for _, a := range aliases {
		r.reverse[strings.ToLower(a)] = key
	}
}

// Canonicalize resolves an identifier to a canonical key. It returns false
// when the identifier is neither a canonical key nor a registered alias.
// No side effects, no failure modes.
func (r *Registry) Canonicalize(identifier string) (string, bool) {
	key, ok := r.reverse[strings.ToLower(identifier)]
	return key, ok
}

// defaultAliases is the static alias table. Entries come from the field
// vocabularies commonly seen on signup and checkout forms.
var defaultAliases = map[string][]string{
	KeyFirstName: {
		"fname", "firstname", "first-name", "given_name", "given-name",
		"givenname", "forename",
	},
	KeyLastName: {
		"lname", "lastname", "last-name", "surname", "family_name",
		"family-name", "familyname",
	},
	KeyFullName: {
		"name", "fullname", "full-name", "your_name", "your-name",
	},
	KeyEmail: {
		"mail", "e-mail", "e_mail", "email_address", "email-address",
		"emailaddress", "user_email",
	},
	KeyPhone: {
		"tel", "telephone", "mobile", "cell", "phone_number",
		"phone-number", "phonenumber",
	},
	KeyAddressStreet: {
		"street", "address", "address1", "address_line1", "address-line1",
		"street_address", "street-address", "addr",
	},
	KeyAddressCity: {
		"city", "town", "locality",
	},
	KeyAddressState: {
		"state", "province", "region", "county",
	},
	KeyAddressZip: {
		"zip", "zipcode", "zip_code", "zip-code", "postal", "postal_code",
		"postal-code", "postcode",
	},
	KeyAddressCountry: {
		"country", "nation",
	},
}

// DefaultRegistry resolves the built-in alias table.
var DefaultRegistry = NewRegistry(defaultAliases, CanonicalKeys)
