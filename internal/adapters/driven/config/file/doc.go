// Package file keeps configuration in a TOML file under the config
// directory and can watch it for edits made outside the process.
package file
