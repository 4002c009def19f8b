package enrich

import (
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// builtinPlatforms maps hostname fragments to platform names. Matching is on
// the registrable host with "www." stripped; a fragment matches when the host
// equals it or ends in "." + fragment.
var builtinPlatforms = map[string]string{
	"facebook.com":  "facebook",
	"fb.com":        "facebook",
	"instagram.com": "instagram",
	"twitter.com":   "twitter",
	"x.com":         "twitter",
	"linkedin.com":  "linkedin",
	"youtube.com":   "youtube",
	"youtu.be":      "youtube",
	"tiktok.com":    "tiktok",
	"pinterest.com": "pinterest",
	"yelp.com":      "yelp",
	"threads.net":   "threads",
}

// PlatformRules is the optional on-disk extension of the builtin hostname
// table, one entry per extra platform.
type PlatformRules struct {
	Platforms []PlatformRule `yaml:"platforms"`
}

// PlatformRule binds a set of hostnames to a platform name.
type PlatformRule struct {
	Name  string   `yaml:"name"`
	Hosts []string `yaml:"hosts"`
}

// LoadPlatformRules reads a platform rules YAML file and returns the merged
// hostname table (builtin entries plus the file's, file entries winning).
func LoadPlatformRules(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: read platform rules %s", path)
	}
	var rules PlatformRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, eris.Wrap(err, "enrich: parse platform rules")
	}
	merged := make(map[string]string, len(builtinPlatforms)+len(rules.Platforms))
	for host, name := range builtinPlatforms {
		merged[host] = name
	}
	for _, rule := range rules.Platforms {
		for _, host := range rule.Hosts {
			merged[strings.ToLower(strings.TrimSpace(host))] = rule.Name
		}
	}
	return merged, nil
}

// classifyURL returns the platform a URL belongs to, or "" when it matches no
// known platform.
func classifyURL(raw string, table map[string]string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	for fragment, name := range table {
		if host == fragment || strings.HasSuffix(host, "."+fragment) {
			return name
		}
	}
	return ""
}
