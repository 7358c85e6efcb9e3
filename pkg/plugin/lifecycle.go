// Package plugin defines the capture and reporter plugin contracts and the
// registry the CLI resolves them from.
package plugin

import "context"

// Plugin is the base interface for all plugins.
//
// The lifecycle is Init → Start → Stop. Init receives the plugin's raw
// options map from configuration.
type Plugin interface {
	Name() string
	Init(cfg map[string]any) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
