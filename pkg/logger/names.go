package logger

const (
	Main       = "main"
	Southbound = "southbound"
	Reconciler = "reconciler"
	Store      = "store"
	Journal    = "journal"
	Metrics    = "metrics"
	CLI        = "cli"
	LCPHost    = "lcphost"
	Intent     = "intent"

	SouthboundVppctl = "southbound.vppctl"
	SouthboundVPP    = "southbound.vpp"
	SouthboundSSH    = "southbound.ssh"
)
