// Package credstore persists proxy.Credentials between runs.
//
// A FileStore keeps one record per file: the client's own box secret key,
// the server key from the last exchange and the association id with its
// idKey. Records are CBOR encoded. With a Sealer the record is encrypted at
// rest under a key derived from a passphrase (PBKDF2-SHA256, AES-256-GCM,
// fresh salt per write); without one it is written in the clear with mode
// 0600.
//
// Saver debounces writes so a burst of credential changes during connect
// and associate produces one file write:
//
//	store := &credstore.FileStore{Path: path}
//	saver := credstore.NewSaver(store, credstore.DefaultSaveDelay)
//	conn, _ := proxy.NewConnection(t, cfg, proxy.WithCredentialsListener(saver.Update))
//	defer saver.Flush()
package credstore
