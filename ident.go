package sqlkit

import "regexp"

// identPattern is the restricted shape accepted for every table,
// column, and database name the facade interpolates into SQL text.
// WHERE fragments and ORDER BY clauses remain trusted caller input;
// values always travel as bound parameters.
var identPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidIdent reports whether name is safe to interpolate as an
// identifier.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}

// validateIdent returns a validation error unless name has the
// restricted identifier shape. kind names the identifier's role in
// the error message ("table", "column", "database").
func validateIdent(kind, name string) error {
	if ValidIdent(name) {
		return nil
	}
	return &Error{
		Code:    CodeValidation,
		Message: "invalid " + kind + " name: " + name,
		Op:      "ValidateIdent",
	}
}

// validateIdents validates a list of identifiers of the same kind.
func validateIdents(kind string, names []string) error {
	for _, name := range names {
		if err := validateIdent(kind, name); err != nil {
			return err
		}
	}
	return nil
}
