package utils

import (
	"github.com/mssola/user_agent"
)

// DeviceInfo is a compact description of the client extracted from the
// User-Agent header, stored alongside verification codes and logged with
// requests
type DeviceInfo struct {
	Browser  string `json:"browser"`
	OS       string `json:"os"`
	Mobile   bool   `json:"mobile"`
	Bot      bool   `json:"bot"`
	Platform string `json:"platform"`
}

// ParseUserAgent extracts device information from a raw User-Agent string
func ParseUserAgent(raw string) DeviceInfo {
	ua := user_agent.New(raw)
	browser, version := ua.Browser()
	if version != "" {
		browser = browser + " " + version
	}
	return DeviceInfo{
		Browser:  browser,
		OS:       ua.OS(),
		Mobile:   ua.Mobile(),
		Bot:      ua.Bot(),
		Platform: ua.Platform(),
	}
}
