// Package storeerr defines the sentinel error kinds raised by the store,
// history, and adapter packages. Callers use errors.Is against these
// values; wrapping with fmt.Errorf("...: %w", ...) is expected at call
// sites so context survives the wrap.
package storeerr

import "errors"

var (
	// ErrMutationOutsideTransaction is returned when a field mutation is
	// attempted while the store is not InTransaction.
	ErrMutationOutsideTransaction = errors.New("mutation attempted outside a transaction")

	// ErrNestedTransaction is returned by beginTransaction when a
	// transaction is already open on the store.
	ErrNestedTransaction = errors.New("transaction already in progress")

	// ErrNoTransaction is returned by endTransaction/cancelTransaction
	// when no transaction is open.
	ErrNoTransaction = errors.New("no transaction in progress")

	// ErrDuplicateRecord is returned by Table.Create when the requested
	// record id already exists in the table.
	ErrDuplicateRecord = errors.New("record already exists")

	// ErrRecordNotFound is returned when a record id has no corresponding
	// record in the table.
	ErrRecordNotFound = errors.New("record not found")

	// ErrSchemaUnknown is returned when a patch or operation references a
	// schema id the store does not know about.
	ErrSchemaUnknown = errors.New("schema unknown to store")

	// ErrFieldUnknown is returned when a patch or operation references a
	// field name absent from the schema.
	ErrFieldUnknown = errors.New("field unknown to schema")

	// ErrPositionOrder is returned by position.Between when low >= high.
	ErrPositionOrder = errors.New("low position must compare less than high position")

	// ErrMalformedPatch is returned when a remote patch fails structural
	// validation. The caller discards the patch; this error is never
	// fatal to the store.
	ErrMalformedPatch = errors.New("malformed patch")

	// ErrAdapterUnavailable is returned when the server adapter exhausts
	// its retry budget.
	ErrAdapterUnavailable = errors.New("server adapter unavailable")

	// ErrAdapterTimeout is returned when a caller-supplied timeout elapses
	// before the adapter operation completes.
	ErrAdapterTimeout = errors.New("server adapter operation timed out")

	// ErrFetchPatchNotFound is returned for ids that fetchPatches could
	// not locate.
	ErrFetchPatchNotFound = errors.New("requested patch not found")

	// ErrInvalidFieldKind is returned when a kernel receives an update or
	// patch fragment destined for a different field kind.
	ErrInvalidFieldKind = errors.New("update does not match field kind")

	// ErrReadOnlyField is returned when a caller attempts to mutate the
	// PrimaryKey field.
	ErrReadOnlyField = errors.New("field is read-only")

	// ErrNothingToUndo is returned by History.Undo when the undo stack is
	// empty.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo is returned by History.Redo when the redo stack is
	// empty.
	ErrNothingToRedo = errors.New("nothing to redo")
)
