package protocol

// Error codes KeePassXC puts in errorCode.
const (
	CodeDatabaseNotOpened        Code = "1"
	CodeDatabaseHashMissing      Code = "2"
	CodeClientKeyMissing         Code = "3"
	CodeCannotDecrypt            Code = "4"
	CodeTimeoutOrNotConnected    Code = "5"
	CodeActionDenied             Code = "6"
	CodeCannotEncrypt            Code = "7"
	CodeAssociationFailed        Code = "8"
	CodeKeyChangeFailed          Code = "9"
	CodeKeyUnrecognized          Code = "10"
	CodeNoSavedDatabases         Code = "11"
	CodeIncorrectAction          Code = "12"
	CodeEmptyMessage             Code = "13"
	CodeNoURLProvided            Code = "14"
	CodeNoLoginsFound            Code = "15"
	CodeNoGroupsFound            Code = "16"
	CodeCannotCreateGroup        Code = "17"
	CodeNoValidUUID              Code = "18"
	CodeAccessToEntriesDenied    Code = "19"
	CodePasskeysNotSupported     Code = "20"
	CodePasskeysCredentialsEmpty Code = "21"
)
