package rtm

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ConnectURL appends the revision and boot markers the server expects on the
// websocket URL returned by login. Marker timestamps are fractional unix seconds.
func ConnectURL(base, svnRev string, now time.Time) (string, error) {
	base = strings.TrimSpace(base)
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("rtm: connect url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("rtm: connect url: unsupported scheme %q", u.Scheme)
	}
	ts := strconv.FormatFloat(float64(now.UnixNano())/float64(time.Second), 'f', -1, 64)
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%ssvn_rev=%s&login_with_boot_data-0-%s&on_login-0-%s&connect-1-%s",
		base, sep, url.QueryEscape(svnRev), ts, ts, ts), nil
}
