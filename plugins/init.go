// Package plugins registers all built-in plugins.
package plugins

import (
	"firestige.xyz/siemtap/pkg/plugin"
	"firestige.xyz/siemtap/plugins/capture/file"
	"firestige.xyz/siemtap/plugins/capture/memory"
	"firestige.xyz/siemtap/plugins/capture/pcap"
	"firestige.xyz/siemtap/plugins/reporter/console"
	filereporter "firestige.xyz/siemtap/plugins/reporter/file"
	"firestige.xyz/siemtap/plugins/reporter/forwarder"
	"firestige.xyz/siemtap/plugins/reporter/kafka"
)

func init() {
	// Register capture plugins
	plugin.RegisterCapturer("pcap", pcap.NewCapturer)
	plugin.RegisterCapturer("file", file.NewCapturer)
	plugin.RegisterCapturer("memory", func() plugin.Capturer { return memory.NewCapturer() })

	// Register reporter plugins
	plugin.RegisterReporter("console", console.NewReporter)
	plugin.RegisterReporter("forwarder", forwarder.NewReporter)
	plugin.RegisterReporter("kafka", kafka.NewReporter)
	plugin.RegisterReporter("file", filereporter.NewReporter)
}
