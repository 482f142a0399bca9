package browser

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrEmptySite indicates a site map file without any pages.
var ErrEmptySite = errors.New("browser: site map has no pages")

type siteFile struct {
	Pages map[string]*Page `yaml:"pages"`
}

// LoadSite reads a scripted site map from a YAML file. Keys under
// pages are URLs; each page carries its title, content and links.
func LoadSite(path string) (map[string]*Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("browser: read site map: %w", err)
	}

	var site siteFile
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("browser: parse site map: %w", err)
	}
	if len(site.Pages) == 0 {
		return nil, ErrEmptySite
	}
	return site.Pages, nil
}
