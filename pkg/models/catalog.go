package models

// SiteCatalogEntry is the destination descriptor of one site.
type SiteCatalogEntry struct {
	SiteID       string `xml:"site_code" json:"site_id"`
	Address      string `xml:"site_URI" json:"address"`
	Username     string `xml:"site_uname" json:"username"`
	Credential   string `xml:"site_password" json:"-"`
	KeyFile      string `xml:"site_key_file" json:"key_file,omitempty"`
	RemotePath   string `xml:"site_remotepath" json:"remote_path"`
	RemoteName   string `xml:"site_remotename" json:"remote_name,omitempty"`
	FailureEmail string `xml:"site_contact_email" json:"contact"`
}

// MissingFields names the required descriptor fields that are empty.
func (e SiteCatalogEntry) MissingFields() []string {
	var missing []string
	if e.Address == "" {
		missing = append(missing, "site_URI")
	}
	if e.Username == "" {
		missing = append(missing, "site_uname")
	}
	if e.Credential == "" && e.KeyFile == "" {
		missing = append(missing, "site_password")
	}
	if e.RemotePath == "" {
		missing = append(missing, "site_remotepath")
	}
	return missing
}
