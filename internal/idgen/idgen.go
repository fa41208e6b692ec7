// Package idgen generates the two flavors of identifier the server needs:
// deterministic workspace ids (hash of an absolute path) and fresh opaque
// ids for everything else (nodes, edges, runs, clients, requests).
package idgen

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"

	"github.com/google/uuid"
)

// workspaceIDLen is the number of hex characters kept from the path hash.
// Short enough to stay readable in logs and URLs, long enough that
// collisions across a user's workfiles are not a practical concern.
const workspaceIDLen = 16

// Workspace derives a stable short id from a workfile path. The same path
// (after normalization) always yields the same id; different paths yield
// different ids unless their SHA-256 digests share the first
// workspaceIDLen hex characters.
func Workspace(workfilePath string) (string, error) {
	abs, err := filepath.Abs(workfilePath)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return hex.EncodeToString(sum[:])[:workspaceIDLen], nil
}

// New mints a fresh opaque id (node, edge, run, client, or request ids).
func New() string {
	return uuid.New().String()
}
