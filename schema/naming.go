package schema

import (
	"strings"
	"unicode"
)

// =========================================================================
// Name Folding
// =========================================================================

// foldName reduces a member name to the form compared by ScopeIgnoreCase
// lookups. FirstName, firstName, FIRST_NAME and first_name fold alike.
func foldName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r != '_' {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// sameName compares a declared member name with a requested one.
func sameName(declared, requested string, scope Scope) bool {
	if declared == requested {
		return true
	}
	return scope.Has(ScopeIgnoreCase) && foldName(declared) == foldName(requested)
}

// getterNames returns the method names that read a property, in lookup order.
func getterNames(property string) []string {
	return []string{property, "Get" + property}
}

// setterName returns the method name that writes a property.
func setterName(property string) string {
	return "Set" + property
}
