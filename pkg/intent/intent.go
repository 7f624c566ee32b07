// Package intent decodes declarative interface configuration from the XML
// trees handed over by a NETCONF datastore.
package intent

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"inet.af/netaddr"

	"github.com/veesix-networks/vppifd/pkg/logger"
	"github.com/veesix-networks/vppifd/pkg/models"
)

// InterfaceIntent is the declared state of one interface. Nil fields were
// not present in the tree and are left alone on the device.
type InterfaceIntent struct {
	Name        string
	Description *string
	Enabled     *bool
	MTU         *uint32
	Addresses   []netaddr.IPPrefix
}

// AddressDeletion is an address removed from an interface since the last
// commit.
type AddressDeletion struct {
	Interface string
	Prefix    netaddr.IPPrefix
}

type Intent struct {
	Interfaces []InterfaceIntent
	Deletions  []AddressDeletion
}

// Decode builds an Intent from the target tree and the list of deleted
// nodes. Either may be nil.
func Decode(target *etree.Element, deleted []*etree.Element) Intent {
	return Intent{
		Interfaces: FromTree(target),
		Deletions:  DeletedAddresses(deleted),
	}
}

// FromTree reads every interfaces/interface element under target. Entries
// without a name are dropped, as are malformed leaves.
func FromTree(target *etree.Element) []InterfaceIntent {
	if target == nil {
		return nil
	}
	log := logger.Get(logger.Intent)

	var out []InterfaceIntent
	for _, container := range interfaceContainers(target) {
		for _, e := range container.SelectElements("interface") {
			name := models.SanitizeName(leafText(e, "name"))
			if name == "" {
				log.Warn("Skipping interface without name")
				continue
			}

			ii := InterfaceIntent{Name: name}
			if d := e.SelectElement("description"); d != nil {
				text := d.Text()
				ii.Description = &text
			}
			if v := leafText(e, "enabled"); v != "" {
				enabled := v == "true"
				ii.Enabled = &enabled
			}
			if v := leafText(e, "mtu"); v != "" {
				mtu, err := strconv.ParseUint(v, 10, 32)
				if err != nil {
					log.Warn("Ignoring malformed mtu", "interface", name, "value", v)
				} else {
					m := uint32(mtu)
					ii.MTU = &m
				}
			}
			for _, family := range []string{"ipv4", "ipv6"} {
				for _, fam := range e.SelectElements(family) {
					for _, a := range fam.SelectElements("address") {
						p, err := addressPrefix(a)
						if err != nil {
							log.Warn("Ignoring malformed address", "interface", name, "error", err)
							continue
						}
						ii.Addresses = append(ii.Addresses, p)
					}
				}
			}
			out = append(out, ii)
		}
	}
	return out
}

func interfaceContainers(target *etree.Element) []*etree.Element {
	if target.Tag == "interfaces" {
		return []*etree.Element{target}
	}
	return target.FindElements(".//interfaces")
}

// DeletedAddresses turns deleted address nodes into deletions. The owning
// interface is the name leaf of the node's grandparent; nodes that are not
// addresses or cannot be placed are dropped.
func DeletedAddresses(nodes []*etree.Element) []AddressDeletion {
	log := logger.Get(logger.Intent)

	var out []AddressDeletion
	for _, n := range nodes {
		if n == nil || n.Tag != "address" {
			continue
		}
		p, err := addressPrefix(n)
		if err != nil {
			log.Warn("Ignoring malformed deleted address", "error", err)
			continue
		}
		family := n.Parent()
		if family == nil || family.Parent() == nil {
			log.Warn("Deleted address has no owning interface", "prefix", p)
			continue
		}
		ifname := models.SanitizeName(leafText(family.Parent(), "name"))
		if ifname == "" {
			log.Warn("Deleted address has no owning interface", "prefix", p)
			continue
		}
		out = append(out, AddressDeletion{Interface: ifname, Prefix: p})
	}
	return out
}

// DeletedNodes collects every address element of a tree holding the removed
// part of the configuration.
func DeletedNodes(root *etree.Element) []*etree.Element {
	if root == nil {
		return nil
	}
	return root.FindElements(".//address")
}

func addressPrefix(e *etree.Element) (netaddr.IPPrefix, error) {
	ip := leafText(e, "ip")
	bits := leafText(e, "prefix-length")
	if ip == "" || bits == "" {
		return netaddr.IPPrefix{}, fmt.Errorf("address needs ip and prefix-length")
	}
	p, err := netaddr.ParseIPPrefix(ip + "/" + bits)
	if err != nil {
		return netaddr.IPPrefix{}, err
	}
	return p, nil
}

func leafText(e *etree.Element, tag string) string {
	c := e.SelectElement(tag)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}

// Parse reads an XML document and returns its root element.
func Parse(data []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("read xml: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	return root, nil
}

// LoadFiles decodes a target file and an optional file of deleted nodes.
func LoadFiles(targetPath, deletedPath string) (Intent, error) {
	data, err := os.ReadFile(targetPath)
	if err != nil {
		return Intent{}, err
	}
	target, err := Parse(data)
	if err != nil {
		return Intent{}, fmt.Errorf("%s: %w", targetPath, err)
	}

	var deleted []*etree.Element
	if deletedPath != "" {
		data, err := os.ReadFile(deletedPath)
		if err != nil {
			return Intent{}, err
		}
		root, err := Parse(data)
		if err != nil {
			return Intent{}, fmt.Errorf("%s: %w", deletedPath, err)
		}
		deleted = DeletedNodes(root)
	}
	return Decode(target, deleted), nil
}
