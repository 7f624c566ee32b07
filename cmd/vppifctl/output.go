package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
	"inet.af/netaddr"

	"github.com/veesix-networks/vppifd/pkg/models"
	"github.com/veesix-networks/vppifd/pkg/reconciler"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// render writes v in the selected format. Table output is only defined for
// the record and report types below; anything else falls back to yaml.
func render(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		return writeYAML(w, v)
	}

	switch data := v.(type) {
	case []models.Interface:
		return interfaceTable(w, data)
	case []models.Bond:
		return bondTable(w, data)
	case []models.SubInterface:
		return subInterfaceTable(w, data)
	case []models.LcpPair:
		return lcpTable(w, data)
	case *reconciler.ApplyReport:
		return reportTable(w, data)
	case *reconciler.SyncRun:
		return syncRunTable(w, []reconciler.SyncRun{*data})
	case []reconciler.SyncRun:
		return syncRunTable(w, data)
	case []reconciler.ApplyReport:
		return reportSummaryTable(w, data)
	default:
		return writeYAML(w, v)
	}
}

// writeYAML goes through JSON so field names match the json tags.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func table(w io.Writer, headers []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func upDown(up bool) string {
	if up {
		return "up"
	}
	return "down"
}

func prefixes(ps []netaddr.IPPrefix) string {
	return dash(strings.Join(lo.Map(ps, func(p netaddr.IPPrefix, _ int) string { return p.String() }), ","))
}

func interfaceTable(w io.Writer, ifaces []models.Interface) error {
	rows := lo.Map(ifaces, func(i models.Interface, _ int) []string {
		return []string{
			i.Name,
			strconv.FormatUint(uint64(i.Index), 10),
			upDown(i.AdminUp),
			strconv.FormatUint(uint64(i.MTU), 10),
			dash(string(i.Type)),
			prefixes(append(append([]netaddr.IPPrefix(nil), i.IPv4...), i.IPv6...)),
			dash(i.Description),
		}
	})
	return table(w, []string{"NAME", "INDEX", "ADMIN", "MTU", "TYPE", "ADDRESSES", "DESCRIPTION"}, rows)
}

func bondTable(w io.Writer, bonds []models.Bond) error {
	rows := lo.Map(bonds, func(b models.Bond, _ int) []string {
		return []string{
			b.Name,
			string(b.Mode),
			string(b.LoadBalance),
			fmt.Sprintf("%d/%d", b.ActiveMemberCount, b.MemberCount),
			dash(strings.Join(b.Members, ",")),
		}
	})
	return table(w, []string{"NAME", "MODE", "LOAD-BALANCE", "ACTIVE", "MEMBERS"}, rows)
}

func subInterfaceTable(w io.Writer, subs []models.SubInterface) error {
	rows := lo.Map(subs, func(s models.SubInterface, _ int) []string {
		inner := "-"
		if s.IsQinQ() {
			inner = strconv.Itoa(int(s.InnerVlanID))
		}
		return []string{s.Name, s.Parent, strconv.Itoa(int(s.VlanID)), inner}
	})
	return table(w, []string{"NAME", "PARENT", "VLAN", "INNER"}, rows)
}

func lcpTable(w io.Writer, pairs []models.LcpPair) error {
	rows := lo.Map(pairs, func(p models.LcpPair, _ int) []string {
		return []string{p.VppInterface, p.HostInterface, p.HostType(), dash(p.Namespace)}
	})
	return table(w, []string{"VPP", "HOST", "TYPE", "NETNS"}, rows)
}

func reportTable(w io.Writer, rep *reconciler.ApplyReport) error {
	fmt.Fprintf(w, "Apply %s: %d succeeded, %d failed, %d skipped\n",
		rep.ID, rep.Succeeded, rep.Failed, rep.Skipped)
	if rep.PersistError != "" {
		fmt.Fprintf(w, "Store not saved: %s\n", rep.PersistError)
	}
	rows := lo.Map(rep.Operations, func(op reconciler.OperationResult, _ int) []string {
		detail := op.Error
		if detail == "" {
			detail = op.Detail
		}
		return []string{op.Interface, op.Operation, string(op.Status), dash(detail)}
	})
	return table(w, []string{"INTERFACE", "OPERATION", "STATUS", "DETAIL"}, rows)
}

func reportSummaryTable(w io.Writer, reps []reconciler.ApplyReport) error {
	rows := lo.Map(reps, func(r reconciler.ApplyReport, _ int) []string {
		return []string{
			r.ID.String(),
			r.Started.Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Skipped),
		}
	})
	return table(w, []string{"ID", "STARTED", "SUCCEEDED", "FAILED", "SKIPPED"}, rows)
}

func syncRunTable(w io.Writer, runs []reconciler.SyncRun) error {
	rows := lo.Map(runs, func(r reconciler.SyncRun, _ int) []string {
		return []string{
			r.ID.String(),
			r.Started.Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.Interfaces),
			strconv.Itoa(r.Bonds),
			strconv.Itoa(r.SubInterfaces),
			strconv.Itoa(r.LcpPairs),
			strconv.FormatBool(r.Persisted),
			dash(r.Error),
		}
	})
	return table(w, []string{"ID", "STARTED", "INTERFACES", "BONDS", "SUBIFS", "LCPS", "PERSISTED", "ERROR"}, rows)
}
