package notifier

import (
	"github.com/angelmondragon/khatabook-backend/pkg/config"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/khatabook-backend/pkg/redis"
)

// FromConfig builds a Notifier with the ports enabled in cfg. publisher and
// inbox may be nil when the matching port is disabled.
func FromConfig(cfg config.NotifierConfig, logg *logger.Logger, ob outboxEmitter, publisher pkgredis.Publisher, inbox inboxRepository) (*Notifier, error) {
	var ports []Port
	if cfg.RedisEnabled {
		port, err := NewRedisPort(publisher, cfg.ChannelPrefix)
		if err != nil {
			return nil, err
		}
		ports = append(ports, port)
	}
	if cfg.InboxEnabled {
		port, err := NewInboxPort(inbox)
		if err != nil {
			return nil, err
		}
		ports = append(ports, port)
	}
	return New(logg, ob, ports...)
}
