package httpx

import (
	"net/http"
	"strings"
)

// UserIDHeader carries the authenticated requester. The gateway sets it after
// verifying the caller's token; this service trusts it as-is.
const UserIDHeader = "X-User-Id"

func UserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserIDHeader))
}
