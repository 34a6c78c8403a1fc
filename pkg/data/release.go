package data

// Release is a single tagged publication in the remote release feed.
// The tag is authoritative for version comparison.
type Release struct {
	Tag    string  `json:"tag_name"`
	Assets []Asset `json:"assets"`
}

type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
}
