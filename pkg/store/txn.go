package store

// Txn is a thin handle bound to one open transaction, letting callers
// chain field mutations without re-threading the Store through every call
// (spec §9's redesign note: the explicit begin/end/cancel triple stays the
// primitive; this is the convenience layered on top of it).
type Txn struct {
	store *Store
}

// Update applies update to fieldName through its kernel.
func (t *Txn) Update(schemaID, recordID, fieldName string, update interface{}) error {
	return t.store.UpdateField(schemaID, recordID, fieldName, update)
}

// Create inserts a new record.
func (t *Txn) Create(schemaID, recordID string) error {
	return t.store.CreateRecord(schemaID, recordID)
}

// Delete removes a record.
func (t *Txn) Delete(schemaID, recordID string) error {
	return t.store.DeleteRecord(schemaID, recordID)
}

// Transact opens a transaction, runs fn with a Txn handle bound to it, and
// commits on success or cancels on error or panic.
func (s *Store) Transact(fn func(*Txn) error) (err error) {
	if _, err = s.BeginTransaction(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = s.CancelTransaction()
			panic(r)
		}
	}()
	if err = fn(&Txn{store: s}); err != nil {
		_ = s.CancelTransaction()
		return err
	}
	return s.EndTransaction()
}
