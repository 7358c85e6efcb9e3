package plugins

import (
	"firestige.xyz/siemtap/pkg/plugin"
	"firestige.xyz/siemtap/plugins/capture/afpacket"
)

func init() {
	plugin.RegisterCapturer("afpacket", afpacket.NewCapturer)
}
