package securityaudit

import (
	"strings"

	"github.com/mssola/useragent"
)

// enrichDetails fills Browser and OS from the user agent string when the
// recorder did not supply them.
func enrichDetails(d Details) Details {
	if d.UserAgent == "" || (d.Browser != "" && d.OS != "") {
		return d
	}
	ua := useragent.New(d.UserAgent)
	if d.Browser == "" {
		name, version := ua.Browser()
		d.Browser = strings.TrimSpace(name + " " + version)
	}
	if d.OS == "" {
		d.OS = ua.OS()
	}
	return d
}
