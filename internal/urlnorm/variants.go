package urlnorm

import "strings"

// SchemeVariant returns the http counterpart of an https URL or vice versa.
// URLs on any other scheme have no variant and return "".
func SchemeVariant(url string) string {
	switch {
	case strings.HasPrefix(url, "http://"):
		return "https://" + url[len("http://"):]
	case strings.HasPrefix(url, "https://"):
		return "http://" + url[len("https://"):]
	}
	return ""
}

// TrailingSlashVariant toggles a trailing slash on the URL's path. URLs
// with a query or fragment, or with no path to speak of, return "".
func TrailingSlashVariant(url string) string {
	p := Parse(url)
	if p.Query != "" || p.Fragment != "" || p.Netloc == "" {
		return ""
	}
	switch {
	case p.Path == "" || p.Path == "/":
		return ""
	case strings.HasSuffix(p.Path, "/"):
		p.Path = strings.TrimSuffix(p.Path, "/")
	default:
		p.Path += "/"
	}
	return p.String()
}

// WWWVariant toggles a leading www label on the URL's netloc: it strips a
// www-style prefix when present, otherwise prepends "www.". Hosts with no
// netloc or no domain hierarchy return "".
func WWWVariant(url string) string {
	p := Parse(url)
	if p.Netloc == "" || IsOpaqueHost(p.Netloc) {
		return ""
	}

	if strings.HasPrefix(p.Netloc, "www") {
		stripped := RemoveWWW(p.Netloc)
		if stripped == p.Netloc {
			return ""
		}
		p.Netloc = stripped
	} else {
		p.Netloc = "www." + p.Netloc
	}
	return p.String()
}
