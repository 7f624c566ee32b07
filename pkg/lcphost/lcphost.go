// Package lcphost checks the Linux side of LCP pairs.
package lcphost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"

	"github.com/veesix-networks/vppifd/pkg/logger"
)

var ErrLinkMissing = errors.New("host link missing")

// Checker reports whether a link exists in a network namespace. An empty
// namespace is the namespace of the calling process.
type Checker interface {
	LinkExists(namespace, name string) (bool, error)
}

type Netlink struct {
	logger *slog.Logger
}

func New() *Netlink {
	return &Netlink{logger: logger.Get(logger.LCPHost)}
}

func (n *Netlink) LinkExists(namespace, name string) (bool, error) {
	h, err := handle(namespace)
	if err != nil {
		return false, err
	}
	defer h.Close()

	_, err = h.LinkByName(name)
	if err == nil {
		return true, nil
	}
	var notFound netlink.LinkNotFoundError
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("lookup %q: %w", name, err)
}

func handle(namespace string) (*netlink.Handle, error) {
	if namespace == "" {
		return netlink.NewHandle()
	}

	nsHandle, err := netns.GetFromName(namespace)
	if err != nil {
		return nil, fmt.Errorf("get netns %q: %w", namespace, err)
	}
	defer nsHandle.Close()

	h, err := netlink.NewHandleAt(nsHandle)
	if err != nil {
		return nil, fmt.Errorf("create netlink handle for netns %q: %w", namespace, err)
	}
	return h, nil
}

// Wait polls c until the link appears or ctx is done. The device creates the
// tap asynchronously, so the first lookups may miss.
func Wait(ctx context.Context, c Checker, namespace, name string, interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := c.LinkExists(namespace, name)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s in netns %q", ErrLinkMissing, name, namespace)
		case <-ticker.C:
		}
	}
}
