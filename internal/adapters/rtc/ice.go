package rtc

import (
	"fmt"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// DefaultConfiguration is the public STUN setup handed to browsers when
// nothing is configured.
func DefaultConfiguration() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// ParseICEServers builds a configuration from stun:/turn: URLs. Entries that
// do not parse are skipped and logged.
func ParseICEServers(urls []string) webrtc.Configuration {
	if len(urls) == 0 {
		return DefaultConfiguration()
	}
	var cfg webrtc.Configuration
	for _, raw := range urls {
		if _, err := stun.ParseURI(raw); err != nil {
			log.Warn().Str("module", "rtc").Str("url", raw).Err(err).Msg("ice server skipped")
			continue
		}
		cfg.ICEServers = append(cfg.ICEServers, webrtc.ICEServer{URLs: []string{raw}})
	}
	if len(cfg.ICEServers) == 0 {
		return DefaultConfiguration()
	}
	return cfg
}

// ClientICEServers converts cfg into the list sent in the init snapshot.
func ClientICEServers(cfg webrtc.Configuration) []core.ICEServer {
	out := make([]core.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		srv := core.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != nil {
			srv.Credential = fmt.Sprint(s.Credential)
		}
		out = append(out, srv)
	}
	return out
}
