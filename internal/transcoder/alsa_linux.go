//go:build linux

package transcoder

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"github.com/alcazar-iot/yeti-audio-agent/internal/util"
)

var cardsLinePattern = regexp.MustCompile(`^\s*\d+\s+\[([^\]]+)\s*\]`)

// ResolveALSADevice mirrors microphone.py's device_name property: when no
// explicit input MRL is configured, resolve the USB microphone's ALSA
// card alias from /proc/asound/cards, falling back to the first card
// found, then to a fixed default.
func ResolveALSADevice(explicit string) string {
	if explicit != "" {
		return explicit
	}
	cards, err := readALSACards("/proc/asound/cards")
	if err != nil || len(cards) == 0 {
		return "default"
	}
	for _, c := range cards {
		if strings.Contains(strings.ToLower(c), "usb") {
			return "hw:" + c
		}
	}
	return "hw:" + cards[0]
}

func readALSACards(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer util.SafeClose(f, path)

	var cards []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := cardsLinePattern.FindStringSubmatch(scanner.Text())
		if m != nil {
			cards = append(cards, strings.TrimSpace(m[1]))
		}
	}
	return cards, scanner.Err()
}
