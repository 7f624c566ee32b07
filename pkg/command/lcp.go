package command

import (
	"fmt"
	"strings"
)

// Linux limits interface names to 15 bytes.
const maxHostIfName = 15

type CreateLcpArgs struct {
	VppInterface  string
	HostInterface string
	Namespace     string
	Tun           bool
}

func CreateLcp(args CreateLcpArgs) (Command, error) {
	if err := validateName("interface", args.VppInterface); err != nil {
		return Command{}, err
	}
	if err := validateName("host interface", args.HostInterface); err != nil {
		return Command{}, err
	}
	if len(args.HostInterface) > maxHostIfName {
		return Command{}, invalid("host interface %q longer than %d bytes", args.HostInterface, maxHostIfName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "lcp create %s host-if %s", args.VppInterface, args.HostInterface)
	if args.Namespace != "" {
		if err := validateName("netns", args.Namespace); err != nil {
			return Command{}, err
		}
		fmt.Fprintf(&b, " netns %s", args.Namespace)
	}
	if args.Tun {
		b.WriteString(" tun")
	}
	return Command{Line: b.String(), Check: CheckMarkers}, nil
}

func DeleteLcp(vppInterface string) (Command, error) {
	if err := validateName("interface", vppInterface); err != nil {
		return Command{}, err
	}
	return write("lcp delete %s", vppInterface), nil
}

func SetLcpDefaultNetns(namespace string) (Command, error) {
	if err := validateName("netns", namespace); err != nil {
		return Command{}, err
	}
	return write("lcp default netns %s", namespace), nil
}

func SetLcpSync(enabled bool) Command {
	return write("lcp lcp-sync %s", onOff(enabled))
}

func SetLcpAutoSubint(enabled bool) Command {
	return write("lcp lcp-auto-subint %s", onOff(enabled))
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
