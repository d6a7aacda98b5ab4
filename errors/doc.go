/*
Package errors implements custom error interfaces for the federation.

Every error that can be returned to a client is a registered root error
with a unique numeric code, optionally wrapped with additional context:

	return errors.Wrapf(errors.ErrNotFound, "escrow %q", id)

Use Is to test the kind of an error. Wrapping does not alter the kind,
so the test works for any depth of wrapping:

	if errors.ErrNotFound.Is(err) {
		// ...
	}

The code of the root error is what travels over the wire. Clients can
rebuild an error of the same kind from the code and message using
FromCode. Errors that were not registered are reported as internal and
their message is never exposed.
*/
package errors
