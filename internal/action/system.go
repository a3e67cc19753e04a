package action

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// SystemBrowser hands URLs to the desktop's default browser.
type SystemBrowser struct {
	// run is replaceable in tests.
	run func(ctx context.Context, name string, args ...string) error
}

// NewSystemBrowser returns a browser using xdg-open, open or rundll32.
func NewSystemBrowser() *SystemBrowser {
	return &SystemBrowser{run: func(ctx context.Context, name string, args ...string) error {
		return exec.CommandContext(ctx, name, args...).Start()
	}}
}

func (b *SystemBrowser) Open(ctx context.Context, url string) error {
	name, args := openCommand(runtime.GOOS, url)
	if err := b.run(ctx, name, args...); err != nil {
		return fmt.Errorf("opening %s: %w", url, err)
	}
	return nil
}

func openCommand(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}
