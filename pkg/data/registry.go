package data

// PackageListing is one package in a community registry, with its
// published versions newest-first.
type PackageListing struct {
	Owner    string           `json:"owner"`
	Name     string           `json:"name"`
	Versions []PackageVersion `json:"versions"`
}

type PackageVersion struct {
	VersionNumber string   `json:"version_number"`
	DownloadURL   string   `json:"download_url"`
	Dependencies  []string `json:"dependencies"`
}

// Latest returns the first published version, or nil when the listing
// has none.
func (p *PackageListing) Latest() *PackageVersion {
	if len(p.Versions) == 0 {
		return nil
	}

	return &p.Versions[0]
}
