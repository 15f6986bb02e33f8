// internal/plugins/example/channelaudit/plugin.go
// Example plugin demonstrating the internal/plugins registry outside the
// built-in session/activity channels (internal/gateway/channels.go). Adapted
// from internal/plugins/example/sqltrace/plugin.go — same self-registering
// init() shape, new kind/name for the relay's channel vocabulary.
package channelaudit

import (
	"github.com/kzahel/yepanywhere/internal/logging"
	"github.com/kzahel/yepanywhere/internal/plugins"
)

// Plugin registers under kind "channel-audit" as a template for operators
// who want to observe channel registration without implementing a full
// gateway.ChannelPlugin.
type Plugin struct{}

func (p *Plugin) Kind() plugins.Kind { return "channel-audit" }
func (p *Plugin) Name() string       { return "channelaudit" }

func (p *Plugin) Init() (any, error) {
    logging.Sugar().Infow("channelaudit plugin initialized")
    return nil, nil
}

func init() {
    plugins.Register(&Plugin{})
}
