package symbol

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError reports an absent domain or symbol. Read paths normally
// return nil instead; writes against a missing global domain fail with this.
type NotFoundError struct {
	Domain string
	Symbol string
}

func (e *NotFoundError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("symbol %q not found in domain %q", e.Symbol, e.Domain)
	}
	return fmt.Sprintf("domain %q not found", e.Domain)
}

// ReadOnlyError reports a write against a read-only domain. The flag binds
// regardless of caller identity or admin privilege.
type ReadOnlyError struct {
	Domain string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("domain %q is read-only", e.Domain)
}

// AdminRequiredError reports a write against a global domain by a caller
// without admin privilege.
type AdminRequiredError struct {
	Domain string
}

func (e *AdminRequiredError) Error() string {
	return fmt.Sprintf("writing global domain %q requires admin privilege", e.Domain)
}

// AccessDeniedError reports a caller-scoped domain accessed by a non-owner.
type AccessDeniedError struct {
	Domain string
	Caller string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("caller %q cannot access domain %q", e.Caller, e.Domain)
}

// ValidationError reports dangling link references or an unconstrained
// search request. Missing lists every unresolvable link target.
type ValidationError struct {
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("link targets not found: %s", strings.Join(e.Missing, ", "))
	}
	return e.Reason
}

// MalformedRecordError reports a stored record that fails to parse. Loaders
// log it and treat the domain as absent rather than failing the operation.
type MalformedRecordError struct {
	Key string
	Err error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at %s: %v", e.Key, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
