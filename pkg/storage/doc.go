// Package storage stages downloaded reels on disk.
//
// Videos are written as <shortcode>.mp4 through a temp file and an atomic
// rename, so a crash mid-download never leaves a truncated video under its
// final name. RemoveOlderThan sweeps files a crashed run left behind.
package storage
