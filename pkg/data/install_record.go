package data

import (
	"strings"
	"time"
)

// InstallRecord is the ledger entry for one installed package. The set
// of records is the authoritative view of what is on disk; the install
// root is never re-scanned to infer state.
type InstallRecord struct {
	Owner       string    `json:"owner"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	InstalledAt time.Time `json:"installed_at"`
	Digest      string    `json:"digest,omitempty"`

	// Files, relative to the install root, that this package placed.
	Files []string `json:"files"`

	// Dependencies as declared, in owner-name-version key form.
	Dependencies []string `json:"dependencies"`
}

// Matches reports whether the record is for the given owner/name pair.
// Registries are inconsistent about casing, so matching is case-insensitive.
func (r *InstallRecord) Matches(owner, name string) bool {
	return strings.EqualFold(r.Owner, owner) && strings.EqualFold(r.Name, name)
}

// DependencyKey references a package as owner-name-version. The version
// component is the last hyphen-delimited segment; owner itself may
// contain hyphens, the name may not contain the final separator.
type DependencyKey string

// Split breaks a key into owner and name, dropping the trailing version
// component. Keys with fewer than 3 segments report ok=false.
func (k DependencyKey) Split() (owner, name string, ok bool) {
	parts := strings.Split(string(k), "-")
	if len(parts) < 3 {
		return "", "", false
	}

	// Version is the final segment; name the one before; anything
	// earlier belongs to the owner.
	name = parts[len(parts)-2]
	owner = strings.Join(parts[:len(parts)-2], "-")

	return owner, name, owner != "" && name != ""
}

// Version returns the trailing version component of the key, or "".
func (k DependencyKey) Version() string {
	parts := strings.Split(string(k), "-")
	if len(parts) < 3 {
		return ""
	}

	return parts[len(parts)-1]
}
