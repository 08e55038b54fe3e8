//go:build !linux

package transcoder

// ResolveALSADevice has no ALSA card table outside Linux; explicit
// configuration is required, falling back to a fixed default.
func ResolveALSADevice(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return "default"
}
