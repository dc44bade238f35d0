package domain

// Link is one entry on the landing page.
type Link struct {
	ID          string `json:"id"                    yaml:"id"`
	Title       string `json:"title"                 yaml:"title"`
	URL         string `json:"url"                   yaml:"url"`
	Description string `json:"description,omitempty" yaml:"description"`
	Color       string `json:"color,omitempty"       yaml:"color"`
}

// Profile is the landing page owner and their links.
type Profile struct {
	Name   string `json:"name"             yaml:"name"`
	Bio    string `json:"bio,omitempty"    yaml:"bio"`
	Avatar string `json:"avatar,omitempty" yaml:"avatar"`
	Links  []Link `json:"links"            yaml:"links"`
}

// FindLink returns the link with id.
func (p *Profile) FindLink(id string) (Link, bool) {
	for _, l := range p.Links {
		if l.ID == id {
			return l, true
		}
	}
	return Link{}, false
}
