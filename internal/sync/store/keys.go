package store

// ScopedKey derives the storage key for a record-set scoped to the given
// user identity. With no identity it returns the bare record-set name, which
// is the pre-migration / anonymous fallback. Deterministic for a given
// (userID, set) pair so that repeated calls are migration-idempotent.
func ScopedKey(userID, set string) Key {
	if userID == "" {
		return Key(set)
	}
	return Key("user_" + userID + "_" + set)
}

// LegacyKey returns the unscoped key a record-set lived under before a user
// identity became available. Read exactly once during migration, never
// written again.
func LegacyKey(set string) Key {
	return Key(set)
}

// UserPrefix returns the key prefix shared by all record-sets of a user.
func UserPrefix(userID string) string {
	return "user_" + userID + "_"
}
