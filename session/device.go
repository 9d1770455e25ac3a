package session

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"
)

// Device classification buckets. Anything that is not recognisably mobile
// or tablet falls through to desktop.
const (
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceDesktop = "Desktop"
)

// DeviceInfo is a projection of a refresh token's session metadata. It is
// not persisted on its own; distinctness is determined by DeviceID.
type DeviceInfo struct {
	Device    string `json:"device"`
	DeviceID  string `json:"deviceId"`
	UserAgent string `json:"userAgent"`
	IPAddress string `json:"ipAddress"`
}

// Describe classifies the request into a DeviceInfo. A client-supplied
// device id wins; otherwise a fresh one is generated.
func Describe(r *http.Request, clientDeviceID string) DeviceInfo {
	deviceID := clientDeviceID
	if deviceID == "" {
		deviceID = uuid.New().String()
	}

	return DeviceInfo{
		Device:    ClassifyUserAgent(r.UserAgent()),
		DeviceID:  deviceID,
		UserAgent: r.UserAgent(),
		IPAddress: ClientIP(r),
	}
}

// ClassifyUserAgent buckets a user-agent string. Mobile and tablet are
// checked before the desktop default.
func ClassifyUserAgent(userAgentString string) string {
	if userAgentString == "" {
		return DeviceDesktop
	}

	ua := useragent.Parse(userAgentString)

	switch {
	case ua.Mobile:
		return DeviceMobile
	case ua.Tablet:
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

// ClientIP prefers the first hop of X-Forwarded-For, falling back to the
// socket address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			forwarded = forwarded[:idx]
		}
		return strings.TrimSpace(forwarded)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
