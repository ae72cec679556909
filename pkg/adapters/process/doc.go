// Package process runs interactive-fiction interpreters as child processes.
//
// A Handle owns one interpreter: it spawns the process with piped stdio, reads
// stdout on a single goroutine and frames each command's response with a
// framer.Framer. Launcher adapts Handle to ports.Launcher, and Catalog maps
// game identifiers to story files for ports.GameCatalog.
package process
