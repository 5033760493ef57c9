// Package secrets resolves named secrets from the environment and from
// mounted secret files.
//
// The relay needs exactly one secret at runtime: the 32-byte AES key that
// decrypts client credentials. Its name comes from credentials.secret_name
// (default "decryption-key"). NewManagerFromConfig chains the providers:
//
//  1. FileProvider, when credentials.secrets_dir is set: the file
//     <secrets_dir>/decryption-key, permissions 0600 or 0400.
//  2. EnvProvider: the variable DECRYPTION_KEY.
//
// LoadDecryptionSecret turns the resolved value into a credentials.Secret,
// reporting any failure as a *credentials.ConfigurationError.
//
// # Rotation
//
// With credentials.watch enabled, the FileProvider watches its directory
// with fsnotify. On change it clears its cache and calls its OnChange
// subscribers; the server uses this to re-resolve the key and publish it
// through a credentials.Holder.
//
// Values are returned byte for byte apart from one trailing newline in
// files, since every byte of the key matters.
package secrets
