// Package commands defines the kpxc CLI.
//
// Commands
//
//   - associate     Pair with the open KeePassXC database
//   - hash          Print the active database hash
//   - logins        List the entries matching a URL
//   - set-login     Create or update an entry
//   - groups        List database groups
//   - generate      Generate a password with KeePassXC's generator
//   - lock          Lock the active database
//   - totp          Print the current TOTP of an entry
//   - create-group  Create a group path
//   - delete        Delete an entry
//   - autotype      Start global Auto-Type
//
// # Implementation
//
// The root command builds the transport from the factory, loads the
// credential file and connects before any subcommand runs. Every command
// except associate and hash needs an existing association.
package commands
