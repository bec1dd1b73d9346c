package protocol

// Action names a request, response or signal on the browser protocol.
type Action string

const (
	ActionChangePublicKeys  Action = "change-public-keys"
	ActionAssociate         Action = "associate"
	ActionGetDatabaseHash   Action = "get-databasehash"
	ActionTestAssociate     Action = "test-associate"
	ActionGetLogins         Action = "get-logins"
	ActionSetLogin          Action = "set-login"
	ActionGetDatabaseGroups Action = "get-database-groups"
	ActionGeneratePassword  Action = "generate-password"
	ActionLockDatabase      Action = "lock-database"
	ActionCreateNewGroup    Action = "create-new-group"
	ActionGetTOTP           Action = "get-totp"
	ActionDeleteEntry       Action = "delete-entry"
	ActionRequestAutotype   Action = "request-autotype"
	ActionPasskeysRegister  Action = "passkeys-register"
	ActionPasskeysGet       Action = "passkeys-get"

	// Signals are pushed by the peer without a request.
	SignalDatabaseLocked   Action = "database-locked"
	SignalDatabaseUnlocked Action = "database-unlocked"
)

// IsSignal reports whether a is one of the unsolicited peer notifications.
func (a Action) IsSignal() bool {
	return a == SignalDatabaseLocked || a == SignalDatabaseUnlocked
}

// Bounded reports whether a response to a is expected without user
// interaction on the peer side, so waiting for it may be cut off by the
// response timeout. Everything else may sit behind a confirmation dialog and
// waits indefinitely.
func (a Action) Bounded() bool {
	switch a {
	case ActionChangePublicKeys, ActionGetDatabaseHash, ActionTestAssociate, ActionGetDatabaseGroups:
		return true
	}
	return false
}

func (a Action) String() string {
	return string(a)
}
